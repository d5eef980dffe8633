package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/DianeXD/BetterQuesting/internal/config"
	"github.com/DianeXD/BetterQuesting/internal/serverapp"
)

func main() {
	path := os.Getenv("BQ_CONFIG")
	if path == "" {
		path = "betterquesting.yml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.FromEnv(cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	app, err := serverapp.New(serverapp.Options{
		Config: cfg,
		Logger: log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	if cfg.Content.Watch {
		go func() {
			if err := app.WatchContent(context.Background()); err != nil && err != context.Canceled {
				log.Printf("warn: content watcher stopped: %v", err)
			}
		}()
	}

	log.Printf("listening on %s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, app.Handler))
}
