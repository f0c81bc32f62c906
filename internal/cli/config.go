package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/squealog/squealogd/internal/store"
)

// Resolution defaults. The database location follows flag > environment
// > config file > default; the retention bound follows flag > config
// file > default.
const (
	DefaultDatabasePath = "/var/log/log.db"

	databaseEnv = "SQUEALOG_DB"
)

// Config is the optional daemon configuration file.
type Config struct {
	// Database is the SQLite backing file location.
	Database string `yaml:"database"`

	// RetentionRows bounds the logs table; the oldest excess rows are
	// pruned on every insert.
	RetentionRows int `yaml:"retention_rows"`
}

// LoadConfig reads and validates a yaml configuration file. Unknown
// keys are rejected so typos fail at startup instead of being silently
// ignored.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.RetentionRows < 0 {
		return nil, fmt.Errorf("config %s: retention_rows must not be negative", path)
	}
	return &cfg, nil
}

// resolveDatabase picks the backing file location.
func resolveDatabase(flagValue string, cfg *Config) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(databaseEnv); env != "" {
		return env
	}
	if cfg != nil && cfg.Database != "" {
		return cfg.Database
	}
	return DefaultDatabasePath
}

// resolveRetention picks the retention bound in rows.
func resolveRetention(flagValue int, cfg *Config) int {
	if flagValue > 0 {
		return flagValue
	}
	if cfg != nil && cfg.RetentionRows > 0 {
		return cfg.RetentionRows
	}
	return store.DefaultRetentionRows
}
