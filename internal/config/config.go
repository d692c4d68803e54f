package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for threadkeep.
type Config struct {
	// DatabaseURL selects the backend: mongodb:// / mongodb+srv:// for the
	// MongoDB store, anything else is treated as a sqlite path.
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	// DatabaseName applies to server backends only.
	DatabaseName string `json:"database_name,omitempty" yaml:"database_name,omitempty"`

	// DebugURLTemplate is a fmt template with one %s verb for the thread id.
	DebugURLTemplate string `json:"debug_url_template,omitempty" yaml:"debug_url_template,omitempty"`

	// AuditDir enables the mutation audit trail when non-empty.
	AuditDir string `json:"audit_dir,omitempty" yaml:"audit_dir,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("missing database_url")
	}
	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.DebugURLTemplate != "" && strings.Count(c.DebugURLTemplate, "%s") != 1 {
		return errors.New("debug_url_template must contain exactly one %s")
	}
	return nil
}

// DefaultConfigPath returns the default config path:
//
//	~/.threadkeep/config.json
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "threadkeep.config.json"
	}
	return filepath.Join(home, ".threadkeep", "config.json")
}

// Load reads the config from path. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON. Environment variables THREADKEEP_DB_URL
// and THREADKEEP_DB_NAME override the file values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("THREADKEEP_DB_URL")); v != "" {
		c.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("THREADKEEP_DB_NAME")); v != "" {
		c.DatabaseName = v
	}
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	var b []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	default:
		b, err = json.MarshalIndent(cfg, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
