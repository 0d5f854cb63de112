// Package config loads the host's TOML configuration. The file lives at
// ~/.mergehost/config.toml unless --config names another one. CLI flags
// always win over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
)

// Config is the configuration file. Field names map to snake_case keys.
type Config struct {
	// Addr is the host:port for the WebSocket server.
	Addr string `toml:"addr"`

	// DBPath is the SQLite database for drafts and the commit log.
	// Default: ~/.mergehost/mergehost.db
	DBPath string `toml:"db_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// ProviderURL is the diff provider's base URL. When empty, clients must
	// send the conflict files themselves in session.open.
	ProviderURL string `toml:"provider_url"`

	// SyncURL is the sync service's base URL. Commits fail without it.
	SyncURL string `toml:"sync_url"`

	// BothOrder decides which side comes first for "both":
	// theirs_first (default) or yours_first.
	BothOrder string `toml:"both_order"`

	// CommitMaxRetries is how often a failed provider or sync request is
	// retried. Negative disables retries.
	CommitMaxRetries int `toml:"commit_max_retries"`

	// RequestTimeoutMs bounds a single provider or sync request.
	RequestTimeoutMs int `toml:"request_timeout_ms"`

	// RateLimit is the sustained messages per second allowed per client,
	// RateBurst the burst on top of it.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`

	// TLSCert and TLSKey enable TLS when both are set.
	TLSCert string `toml:"tls_cert"`
	TLSKey  string `toml:"tls_key"`

	// TLSSelfSigned serves wss:// with a generated certificate kept next
	// to the database. Ignored when TLSCert is set.
	TLSSelfSigned bool `toml:"tls_self_signed"`
}

// DataDir returns ~/.mergehost.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dataDirName), nil
}

// DefaultConfigPath returns ~/.mergehost/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultDBPath returns ~/.mergehost/mergehost.db.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mergehost.db"), nil
}

// Load reads the config file at path.
//
// With an empty path the default location is tried, and a missing default
// file yields an empty Config. An explicit path must exist. Parse errors
// are always fatal.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn("unknown config key", "key", key.String(), "file", path)
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return err
		}
		c.DBPath = path
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.BothOrder == "" {
		c.BothOrder = DefaultBothOrder
	}
	if c.CommitMaxRetries == 0 {
		c.CommitMaxRetries = DefaultCommitMaxRetries
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = DefaultRequestTimeoutMs
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	return nil
}

// Validate checks values that can't be defaulted.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return apperrors.InvalidOption("log_level", c.LogLevel, "debug", "info", "warn", "error")
	}
	if _, err := resolve.ParseBothOrder(c.BothOrder); err != nil {
		return err
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	return nil
}

// ResolveOptions returns the reconstruction options the config selects.
func (c *Config) ResolveOptions() resolve.Options {
	order, err := resolve.ParseBothOrder(c.BothOrder)
	if err != nil {
		order = resolve.TheirsFirst
	}
	return resolve.Options{BothOrder: order}
}

// RequestTimeout returns RequestTimeoutMs as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// WriteDefault creates a commented config file at path. An existing file is
// left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# mergehost configuration

addr = %q
log_level = %q

# Where conflict files come from and where merged files go.
# provider_url = "http://localhost:8080/api"
# sync_url = "http://localhost:8080/api"

# Order of the two sides when a hunk is resolved with "both".
both_order = %q

commit_max_retries = %d

# Serve wss:// with a certificate generated next to the database.
# tls_self_signed = true
`, DefaultAddr, DefaultLogLevel, DefaultBothOrder, DefaultCommitMaxRetries)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
