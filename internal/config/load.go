package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads, strictly decodes and validates the config file.
// Any problem here is a ConfigurationError: fatal at startup, before
// any delivery attempt.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse config %s: trailing data", path)
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements the decoder cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccountsFile) == "" {
		return fmt.Errorf("config: accounts_file is required")
	}
	if c.MaxAgeHours < 0 {
		return fmt.Errorf("config: max_age_hours must be >= 0")
	}
	driver := strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if (driver == "" || driver == "sqlite" || driver == "sqlite3") &&
		strings.TrimSpace(c.Ledger.Location) == "" {
		return fmt.Errorf("config: ledger.location is required for the sqlite driver")
	}
	if c.Spool != nil && strings.TrimSpace(c.Spool.Dir) == "" {
		return fmt.Errorf("config: spool.dir is required when spool is configured")
	}
	if strings.TrimSpace(c.Geo.Timezone) == "" {
		return fmt.Errorf("config: geo.timezone is required")
	}
	for path, raw := range map[string]string{
		"ledger.busy_timeout":     c.Ledger.BusyTimeout,
		"transport.post_timeout":  c.Transport.PostTimeout,
		"transport.store_timeout": c.Transport.StoreTimeout,
		"maps.timeout":            c.Maps.Timeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
