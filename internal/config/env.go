package config

import (
	"github.com/caarlos0/env/v11"
)

// Env carries deployment overrides. Values set in the environment win over
// the YAML file so the same config can ship across environments.
type Env struct {
	Addr        string `env:"BQ_ADDR"`
	DataDir     string `env:"BQ_DATA_DIR"`
	ContentPath string `env:"BQ_CONTENT"`
	Watch       *bool  `env:"BQ_WATCH_CONTENT"`
}

// FromEnv parses the environment and applies any set overrides to cfg.
func FromEnv(cfg *Config) error {
	var e Env
	if err := env.Parse(&e); err != nil {
		return err
	}
	if e.Addr != "" {
		cfg.Server.Addr = e.Addr
	}
	if e.DataDir != "" {
		cfg.Server.DataDir = e.DataDir
	}
	if e.ContentPath != "" {
		cfg.Content.Path = e.ContentPath
	}
	if e.Watch != nil {
		cfg.Content.Watch = *e.Watch
	}
	return nil
}
