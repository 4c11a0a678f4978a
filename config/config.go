package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"swaproute/crypto"
)

// Config is the routerd service configuration, loaded from TOML.
type Config struct {
	ListenAddress string `toml:"listen_address"`
	DataDir       string `toml:"data_dir"`

	SelfAddress    string `toml:"self_address"`
	AdminAddress   string `toml:"admin_address"`
	FeeCollector   string `toml:"fee_collector"`
	AdapterAddress string `toml:"adapter_address"`

	AdapterEndpoint string `toml:"adapter_endpoint"`
	BankEndpoint    string `toml:"bank_endpoint"`

	Venues []Venue `toml:"venue"`

	RateLimit RateLimit `toml:"rate_limit"`
	Log       Log       `toml:"log"`
}

// Venue declares one executable venue and the endpoint its client talks to.
type Venue struct {
	Address  string `toml:"address"`
	Kind     string `toml:"kind"`
	Endpoint string `toml:"endpoint"`
}

// RateLimit bounds inbound gateway traffic.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Log controls structured logging and rotation.
type Log struct {
	Level      string `toml:"level"`
	Env        string `toml:"env"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the baseline configuration a bare routerd starts with.
func Default() Config {
	return Config{
		ListenAddress:   ":8545",
		DataDir:         "./routerd-data",
		AdapterEndpoint: "http://localhost:9100",
		BankEndpoint:    "http://localhost:9101",
		RateLimit: RateLimit{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads path over the defaults. A missing file returns the defaults
// untouched so routerd can start from flags alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for structural problems. Address
// fields must be well-formed bech32; venue kinds must be pool or book.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: listen_address required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: data_dir required")
	}
	for field, value := range map[string]string{
		"self_address":    c.SelfAddress,
		"admin_address":   c.AdminAddress,
		"fee_collector":   c.FeeCollector,
		"adapter_address": c.AdapterAddress,
	} {
		if _, err := crypto.ValidateAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	if strings.TrimSpace(c.AdapterEndpoint) == "" {
		return fmt.Errorf("config: adapter_endpoint required")
	}
	if strings.TrimSpace(c.BankEndpoint) == "" {
		return fmt.Errorf("config: bank_endpoint required")
	}
	seen := map[string]struct{}{}
	for i, venue := range c.Venues {
		addr, err := crypto.ValidateAddress(venue.Address)
		if err != nil {
			return fmt.Errorf("config: venue[%d].address: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("config: venue[%d] duplicates %s", i, addr)
		}
		seen[addr] = struct{}{}
		switch strings.ToLower(strings.TrimSpace(venue.Kind)) {
		case "pool", "book":
		default:
			return fmt.Errorf("config: venue[%d].kind must be pool or book, got %q", i, venue.Kind)
		}
		if strings.TrimSpace(venue.Endpoint) == "" {
			return fmt.Errorf("config: venue[%d].endpoint required", i)
		}
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: rate_limit.requests_per_second must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rate_limit.burst must be positive")
	}
	return nil
}
