package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/veroide/mergehost/internal/errors"
	"github.com/veroide/mergehost/internal/resolve"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

// TestLoad_AllFields verifies that every field is parsed from TOML.
func TestLoad_AllFields(t *testing.T) {
	path := writeConfig(t, `
addr = "0.0.0.0:9000"
db_path = "/tmp/merge.db"
log_level = "debug"
provider_url = "http://provider"
sync_url = "http://sync"
both_order = "yours_first"
commit_max_retries = 5
request_timeout_ms = 2500
rate_limit = 5.5
rate_burst = 7
tls_cert = "/path/cert.pem"
tls_key = "/path/key.pem"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Addr", cfg.Addr, "0.0.0.0:9000"},
		{"DBPath", cfg.DBPath, "/tmp/merge.db"},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"ProviderURL", cfg.ProviderURL, "http://provider"},
		{"SyncURL", cfg.SyncURL, "http://sync"},
		{"BothOrder", cfg.BothOrder, "yours_first"},
		{"CommitMaxRetries", cfg.CommitMaxRetries, 5},
		{"RequestTimeoutMs", cfg.RequestTimeoutMs, 2500},
		{"RateLimit", cfg.RateLimit, 5.5},
		{"RateBurst", cfg.RateBurst, 7},
		{"TLSCert", cfg.TLSCert, "/path/cert.pem"},
		{"TLSKey", cfg.TLSKey, "/path/key.pem"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if cfg.ResolveOptions().BothOrder != resolve.YoursFirst {
		t.Errorf("ResolveOptions() = %+v", cfg.ResolveOptions())
	}
	if cfg.RequestTimeout() != 2500*time.Millisecond {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `addr = `)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_DefaultPathMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Addr != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestApplyDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != DefaultAddr || cfg.LogLevel != DefaultLogLevel || cfg.BothOrder != DefaultBothOrder {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.DBPath != filepath.Join(home, ".mergehost", "mergehost.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.CommitMaxRetries != DefaultCommitMaxRetries || cfg.RateBurst != DefaultRateBurst {
		t.Errorf("numeric defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	// Explicit negative retries survive defaults.
	cfg = &Config{CommitMaxRetries: -1}
	_ = cfg.ApplyDefaults()
	if cfg.CommitMaxRetries != -1 {
		t.Errorf("CommitMaxRetries = %d, want -1", cfg.CommitMaxRetries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code string
	}{
		{"bad log level", Config{LogLevel: "loud", BothOrder: "theirs_first"}, apperrors.CodeConfigInvalidOption},
		{"bad both order", Config{LogLevel: "info", BothOrder: "mine_first"}, apperrors.CodeConfigInvalidOption},
		{"cert without key", Config{LogLevel: "info", BothOrder: "theirs_first", TLSCert: "c.pem"}, apperrors.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := apperrors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("written config doesn't load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.BothOrder != DefaultBothOrder {
		t.Errorf("cfg = %+v", cfg)
	}

	// Never overwrites.
	if err := os.WriteFile(path, []byte(`addr = "x:1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	cfg, _ = Load(path)
	if cfg.Addr != "x:1" {
		t.Error("WriteDefault overwrote an existing file")
	}
}
