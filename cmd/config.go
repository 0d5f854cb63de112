package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/config"
	"github.com/veroide/mergehost/internal/storage"
)

// loadConfig reads the config file named by --config (or the default one),
// applies string flag overrides that were set explicitly, fills defaults and
// validates. Logging is configured from the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	fields := map[string]*string{
		"addr":         &cfg.Addr,
		"db":           &cfg.DBPath,
		"provider-url": &cfg.ProviderURL,
		"sync-url":     &cfg.SyncURL,
		"both-order":   &cfg.BothOrder,
		"tls-cert":     &cfg.TLSCert,
		"tls-key":      &cfg.TLSKey,
	}
	for name, dst := range fields {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		*dst = f.Value.String()
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the database at path, creating its directory.
func openStore(path string) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return storage.NewSQLiteStore(path)
}
