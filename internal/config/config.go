package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config models whsper.yml.
type Config struct {
	Storage struct {
		Backend    string `yaml:"backend"`
		Path       string `yaml:"path"`
		SyncWrites bool   `yaml:"sync_writes"`
	} `yaml:"storage"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Query struct {
		DefaultLimit uint32 `yaml:"default_limit"`
	} `yaml:"query"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with whsper config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("config.storage.backend must be %q or %q", BackendSQLite, BackendBadger)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("config.log.level %q is invalid", level)
	}
	return l, nil
}

// StoragePath resolves the storage location relative to the workspace.
// An empty path means the backend's default inside the workspace.
func (c *Config) StoragePath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	p := c.Storage.Path
	if p == "" {
		switch c.Storage.Backend {
		case BackendBadger:
			return filepath.Join(workspace, ".whsper", "badger")
		default:
			return ""
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "whsper.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `storage:
  # sqlite keeps everything in .whsper/whsper.db; badger in .whsper/badger
  backend: sqlite
  path: ""
  sync_writes: true

server:
  addr: 127.0.0.1:8080
  base_path: /v0

query:
  # page size used when a caller does not pass a limit; clamped to 1..100
  default_limit: 20

log:
  level: info
  format: text
`
