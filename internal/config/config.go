package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version string       `yaml:"version" json:"version"`
	Server  ServerConfig `yaml:"server" json:"server"`
	Content Content      `yaml:"content" json:"content"`
	Users   []User       `yaml:"users" json:"users"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr" json:"addr"`
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

type Content struct {
	// Path to the authored quest content YAML.
	Path string `yaml:"path" json:"path"`
	// Watch reloads the content file on change.
	Watch bool `yaml:"watch" json:"watch"`
}

// User is a configured player account. Editors see hidden content and get
// forced chapter flags; tokens authenticate API requests.
type User struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Token  string `yaml:"token" json:"-"`
	Editor bool   `yaml:"editor" json:"editor"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Content.Path == "" {
		c.Content.Path = "questing.yml"
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	r.ApplyDefaults()
	return &r, nil
}
