// Package config loads the application configuration: a yaml file with
// environment variable expansion and per-section defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/papertrove/papertrove/internal/auth"
	"github.com/papertrove/papertrove/internal/blob/s3"
	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/embeddings"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/ingest"
	"github.com/papertrove/papertrove/internal/llm"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/reindex"
	"github.com/papertrove/papertrove/internal/search"
	redissuggest "github.com/papertrove/papertrove/internal/suggest/redis"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Database   DatabaseConfig           `yaml:"database"`
	Redis      redissuggest.Config      `yaml:"redis"`
	Blob       BlobConfig               `yaml:"blob"`
	Embeddings embeddings.Config        `yaml:"embeddings"`
	LLM        llm.Config               `yaml:"llm"`
	Auth       auth.Config              `yaml:"auth"`
	Ingest     ingest.Config            `yaml:"ingest"`
	Chunker    chunker.Config           `yaml:"chunker"`
	Extract    extract.Config           `yaml:"extract"`
	Search     search.Config            `yaml:"search"`
	Reindex    reindex.Config           `yaml:"reindex"`
	Logging    observability.LogConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the document store. An empty URL selects
// the in-memory store (single-binary dev mode).
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	RunMigrations  bool   `yaml:"run_migrations"`
}

// BlobConfig selects and configures the blob backend.
type BlobConfig struct {
	// Backend is "fs", "s3", or "memory".
	Backend string `yaml:"backend"`

	// Root is the filesystem root for the fs backend.
	Root string `yaml:"root"`

	// S3 configures the s3 backend.
	S3 s3.Config `yaml:"s3"`
}

// Load reads and parses the configuration file. Environment variables
// in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given: memory
// backends, no auth, text logging.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Blob.Backend == "" {
		if cfg.Blob.Root != "" {
			cfg.Blob.Backend = "fs"
		} else {
			cfg.Blob.Backend = "memory"
		}
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "none"
	}
	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
