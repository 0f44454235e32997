// Package xconfig loads the nexus server configuration from a TOML or YAML
// file, merged onto the built-in defaults. It does not read CLI flags.
package xconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	// Storage selects the KV backend: "memory" or "bolt".
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend"` // "memory" | "bolt"
	Path    string `toml:"path" yaml:"path"`        // bbolt file path, ignored for memory
}

type ServerConfig struct {
	BindAddr          string `toml:"bind_addr" yaml:"bind_addr"`
	WebsocketPath     string `toml:"websocket_path" yaml:"websocket_path"`
	MaxNotifyBacklog  int    `toml:"max_notify_backlog" yaml:"max_notify_backlog"`
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Console bool   `toml:"console" yaml:"console"`
}

// Default returns the configuration used when no file is supplied: an
// in-memory backend, a loopback bind address, and INFO-level JSON logs.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: "memory"},
		Server: ServerConfig{
			BindAddr:         "127.0.0.1:8000",
			WebsocketPath:    "/rpc",
			MaxNotifyBacklog: 256,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (TOML or YAML, selected by extension) and merges it onto
// Default(). An empty path returns Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xconfig: read %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("xconfig: parse toml %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("xconfig: parse yaml %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("xconfig: unsupported config extension %q", ext)
	}
	return cfg, nil
}
