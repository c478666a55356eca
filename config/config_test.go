package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := `instance_url: https://gitlab.example.com
token: glpat-abc123
rate_limit:
  permits_per_second: 10
  jitter: 500ms
`
	if err := os.WriteFile(filepath.Join(dir, ".cim-monitor.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, filename, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if filename != ".cim-monitor.yaml" {
		t.Errorf("expected .cim-monitor.yaml, got %s", filename)
	}
	if cfg.InstanceURL != "https://gitlab.example.com" {
		t.Errorf("expected instance url, got %q", cfg.InstanceURL)
	}
	if cfg.Token != "glpat-abc123" {
		t.Errorf("unexpected token %q", cfg.Token)
	}
	if cfg.RateLimit.PermitsPerSecond != 10 {
		t.Errorf("expected 10 permits/s, got %v", cfg.RateLimit.PermitsPerSecond)
	}
	if cfg.RateLimit.Jitter.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms jitter, got %v", cfg.RateLimit.Jitter.Duration())
	}
	// Defaults applied on top of the explicit values above.
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("expected burst to default to permits/s (10), got %d", cfg.RateLimit.Burst)
	}
	if cfg.MaxInFlight != 50 {
		t.Errorf("expected MaxInFlight default 50, got %d", cfg.MaxInFlight)
	}
	if cfg.Ledger.Driver != "sqlite" {
		t.Errorf("expected ledger driver to default to sqlite, got %q", cfg.Ledger.Driver)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	content := `instance_url = "https://gitlab.example.com"
token = "glpat-abc123"

[rate_limit]
permits_per_second = 25.0
burst = 100
`
	if err := os.WriteFile(filepath.Join(dir, "cim_monitor.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RateLimit.Burst != 100 {
		t.Errorf("expected burst 100, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.Jitter.Duration() != 2*time.Second {
		t.Errorf("expected default jitter 2s, got %v", cfg.RateLimit.Jitter.Duration())
	}
}

func TestLoadMissingReturnsErrNoConfig(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Load(dir); err != ErrNoConfig {
		t.Errorf("expected ErrNoConfig, got %v", err)
	}
}

func TestValidateRequiresInstanceURLAndToken(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing instance url", Config{Token: "x"}},
		{"missing token", Config{InstanceURL: "https://gitlab.example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateRejectsUnknownLedgerDriver(t *testing.T) {
	cfg := Config{InstanceURL: "https://gitlab.example.com", Token: "x", Ledger: Ledger{Driver: "dynamodb"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown ledger driver")
	}
}

func TestEncryptedTokenRoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		InstanceURL: "https://gitlab.example.com",
		Token:       "glpat-super-secret",
		Encryption:  "passphrase",
	}
	path := filepath.Join(dir, "cim_monitor.toml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Token must not be written to disk in plaintext.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "glpat-super-secret") {
		t.Error("plaintext token was written to disk despite Encryption being set")
	}

	loaded, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Token != "glpat-super-secret" {
		t.Errorf("decrypted token = %q, want glpat-super-secret", loaded.Token)
	}

	// The original cfg passed to Save must be left untouched.
	if cfg.Token != "glpat-super-secret" {
		t.Errorf("Save mutated caller's config token to %q", cfg.Token)
	}
}
