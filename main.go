// Dev server: seeds a small demo quest database in a temp data dir so the
// API can be exercised without authoring content first. Production runs
// cmd/server against real config.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/DianeXD/BetterQuesting/internal/config"
	"github.com/DianeXD/BetterQuesting/internal/quest"
	"github.com/DianeXD/BetterQuesting/internal/serverapp"
)

const demoContent = `
quests:
  - id: 1
    name: First Steps
    description: Check in with the questing board.
    tasks:
      - kind: checkbox
    rewards:
      - kind: xp
        amount: 10
  - id: 2
    name: Gather Supplies
    description: Collect ten supplies.
    requirements: [1]
    tasks:
      - kind: counter
        target: 10
    rewards:
      - kind: item
        item: supply_crate
  - id: 3
    name: Fork In The Road
    description: Pick a side. Unlocks while exactly one prior quest is done.
    logic: xor
    requirements: [1, 2]
    visibility: unlocked
    tasks:
      - kind: checkbox
lines:
  - id: 1
    name: Getting Started
    entries:
      - quest: 1
        x: 0
        y: 0
      - quest: 2
        x: 1
        y: 0
      - quest: 3
        x: 2
        y: 0
`

func main() {
	logger := log.Default()

	db, lines, err := quest.ParseContent([]byte(demoContent), logger)
	if err != nil {
		log.Fatal(err)
	}

	dataDir, err := os.MkdirTemp("", "betterquesting-dev-")
	if err != nil {
		log.Fatal(err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Addr: ":8080", DataDir: dataDir},
		Users: []config.User{
			{ID: "8f9b2b51-6a67-4f7c-9b1e-0d9a3c6e1a01", Name: "player", Token: "player-token"},
			{ID: "2c4d7e83-1b5f-4c2a-8d6e-7f1a9b3c5d02", Name: "editor", Token: "editor-token", Editor: true},
		},
	}
	cfg.ApplyDefaults()

	app, err := serverapp.New(serverapp.Options{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Lines:  lines,
	})
	if err != nil {
		log.Fatal(err)
	}

	logger.Printf("dev server listening on %s (data dir %s)", cfg.Server.Addr, dataDir)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, app.Handler))
}
