// Package config loads cim-monitor's configuration: which forge instance
// to crawl, how hard to hammer it, and where to keep the object store,
// blob store, and ledger it produces.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/cinch/internal/crypto"
)

// ErrNoConfig is returned when no config file is found.
var ErrNoConfig = errors.New("no cim-monitor config file found")

// Config is the parsed cim-monitor configuration.
type Config struct {
	// InstanceURL is the base URL of the forge instance to crawl.
	InstanceURL string `yaml:"instance_url" toml:"instance_url" json:"instance_url"`

	// Token is an opaque credential for the forge instance. At rest in
	// the config file it may be stored encrypted (see Token/Encryption
	// below); once loaded it is always the plaintext the forge expects.
	Token string `yaml:"token" toml:"token" json:"token"`

	// Encryption, if set, is the passphrase used to decrypt Token (and
	// to encrypt it again on Save). Leaving it unset treats Token as
	// plaintext.
	Encryption string `yaml:"encryption" toml:"encryption" json:"encryption"`

	// RateLimit governs how fast the scheduler starts new tasks.
	RateLimit RateLimit `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`

	// MaxInFlight is validated and defaulted (Default: 50) but is not
	// passed to the scheduler, whose cap on concurrent in-flight workers
	// is the fixed scheduler.MaxInFlight.
	MaxInFlight int `yaml:"max_in_flight" toml:"max_in_flight" json:"max_in_flight"`

	// ObjectStorePath is where the typed entity object store is persisted.
	ObjectStorePath string `yaml:"object_store_path" toml:"object_store_path" json:"object_store_path"`

	// BlobStore configures content-addressed storage for large payloads
	// (job logs, artifacts).
	BlobStore BlobStore `yaml:"blob_store" toml:"blob_store" json:"blob_store"`

	// Ledger configures the audit trail of scheduler task executions.
	Ledger Ledger `yaml:"ledger" toml:"ledger" json:"ledger"`
}

// RateLimit configures the scheduler's token-bucket governor.
type RateLimit struct {
	// PermitsPerSecond is the steady-state rate new tasks may start at.
	// Default: 50.
	PermitsPerSecond float64 `yaml:"permits_per_second" toml:"permits_per_second" json:"permits_per_second"`

	// Burst is the number of permits that may accumulate while idle.
	// Default: same as PermitsPerSecond.
	Burst int `yaml:"burst" toml:"burst" json:"burst"`

	// Jitter adds up to this much random delay to every permit, to
	// avoid every worker waking in lockstep. Default: 2s.
	Jitter Duration `yaml:"jitter" toml:"jitter" json:"jitter"`
}

// BlobStore configures the filesystem-backed content-addressed store.
type BlobStore struct {
	// Root is the filesystem root blobstore writes under.
	Root string `yaml:"root" toml:"root" json:"root"`

	// Algo names the hash algorithm new blob stores are created with
	// (e.g. "sha256"). Ignored when opening an existing store, which
	// reads its algorithm from cim_persistence.toml.
	Algo string `yaml:"algo" toml:"algo" json:"algo"`
}

// Ledger configures the scheduler's audit-trail backend.
type Ledger struct {
	// Driver selects the backend: "sqlite" or "postgres". Default: sqlite.
	Driver string `yaml:"driver" toml:"driver" json:"driver"`

	// DSN is the backend-specific data source name (a file path for
	// sqlite, a connection string for postgres).
	DSN string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// Duration wraps time.Duration for custom parsing across formats.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(dur)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Load finds and parses a cim-monitor config file from the given
// directory, then decrypts Token in place if Encryption is set.
func Load(dir string) (*Config, string, error) {
	candidates := []struct {
		name   string
		parser func([]byte, *Config) error
	}{
		{".cim-monitor.yaml", parseYAML},
		{".cim-monitor.yml", parseYAML},
		{"cim_monitor.toml", parseTOML},
		{"cim-monitor.json", parseJSON},
	}

	for _, c := range candidates {
		path := filepath.Join(dir, c.name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var cfg Config
		if err := c.parser(data, &cfg); err != nil {
			return nil, c.name, fmt.Errorf("parse %s: %w", c.name, err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, c.name, fmt.Errorf("validate %s: %w", c.name, err)
		}

		cfg.ApplyDefaults()

		if cfg.Encryption != "" {
			cipher, err := crypto.NewCipher(cfg.Encryption)
			if err != nil {
				return nil, c.name, fmt.Errorf("build cipher: %w", err)
			}
			token, err := cipher.Decrypt(cfg.Token)
			if err != nil {
				return nil, c.name, fmt.Errorf("decrypt token: %w", err)
			}
			cfg.Token = token
		}

		return &cfg, c.name, nil
	}

	return nil, "", ErrNoConfig
}

func parseYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func parseTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}

func parseJSON(data []byte, cfg *Config) error {
	return json.Unmarshal(data, cfg)
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.InstanceURL == "" {
		return errors.New("instance_url is required")
	}
	if c.Token == "" {
		return errors.New("token is required")
	}
	if c.RateLimit.PermitsPerSecond < 0 {
		return errors.New("rate_limit.permits_per_second must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return errors.New("rate_limit.burst must not be negative")
	}
	if c.MaxInFlight < 0 {
		return errors.New("max_in_flight must not be negative")
	}
	switch c.Ledger.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("ledger.driver %q is not sqlite or postgres", c.Ledger.Driver)
	}
	return nil
}

// ApplyDefaults fills in zero-valued fields with their defaults. Load
// calls this automatically; callers building a Config by hand (e.g.
// from CLI flags with no config file present) should call it too.
func (c *Config) ApplyDefaults() {
	if c.RateLimit.PermitsPerSecond == 0 {
		c.RateLimit.PermitsPerSecond = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(c.RateLimit.PermitsPerSecond)
	}
	if c.RateLimit.Jitter == 0 {
		c.RateLimit.Jitter = Duration(2 * time.Second)
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 50
	}
	if c.BlobStore.Algo == "" {
		c.BlobStore.Algo = "sha256"
	}
	if c.BlobStore.Root == "" {
		c.BlobStore.Root = "cim-monitor-blobs"
	}
	if c.ObjectStorePath == "" {
		c.ObjectStorePath = "cim-monitor-store"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "sqlite"
	}
	if c.Ledger.Driver == "sqlite" && c.Ledger.DSN == "" {
		c.Ledger.DSN = "cim-monitor-ledger.db"
	}
}

// Save writes cfg to path in TOML, encrypting Token first if Encryption
// is set. The in-memory cfg is left with its plaintext Token untouched.
func Save(cfg *Config, path string) error {
	out := *cfg
	if out.Encryption != "" {
		cipher, err := crypto.NewCipher(out.Encryption)
		if err != nil {
			return fmt.Errorf("build cipher: %w", err)
		}
		token, err := cipher.Encrypt(out.Token)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		out.Token = token
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
