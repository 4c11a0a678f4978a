package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swaproute/crypto"
)

func addr(seed byte) string {
	return crypto.NewAddress("rt", bytes.Repeat([]byte{seed}, 20)).String()
}

func validConfig() Config {
	cfg := Default()
	cfg.SelfAddress = addr(0x01)
	cfg.AdminAddress = addr(0x02)
	cfg.FeeCollector = addr(0x03)
	cfg.AdapterAddress = addr(0x04)
	cfg.Venues = []Venue{
		{Address: addr(0x10), Kind: "pool", Endpoint: "http://pool-one:9000"},
		{Address: addr(0x11), Kind: "book", Endpoint: "http://book-one:9000"},
	}
	return cfg
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routerd.toml")
	body := `
listen_address = ":9999"
data_dir = "/var/lib/routerd"
self_address = "` + addr(0x01) + `"
admin_address = "` + addr(0x02) + `"
fee_collector = "` + addr(0x03) + `"
adapter_address = "` + addr(0x04) + `"

[rate_limit]
requests_per_second = 10.0
burst = 20

[log]
level = "debug"

[[venue]]
address = "` + addr(0x10) + `"
kind = "pool"
endpoint = "http://pool-one:9000"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9999" || cfg.DataDir != "/var/lib/routerd" {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level %q", cfg.Log.Level)
	}
	// Untouched defaults survive.
	if cfg.Log.MaxSizeMB != 100 {
		t.Fatalf("default rotation size lost: %d", cfg.Log.MaxSizeMB)
	}
	if len(cfg.Venues) != 1 || cfg.Venues[0].Kind != "pool" {
		t.Fatalf("venues: %+v", cfg.Venues)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != Default().ListenAddress {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"bad admin", func(c *Config) { c.AdminAddress = "nope" }, "admin_address"},
		{"bad venue kind", func(c *Config) { c.Venues[0].Kind = "amm" }, "kind"},
		{"duplicate venue", func(c *Config) { c.Venues[1].Address = c.Venues[0].Address }, "duplicates"},
		{"missing endpoint", func(c *Config) { c.Venues[0].Endpoint = " " }, "endpoint"},
		{"zero rate", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, "requests_per_second"},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "burst"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("got %v, want error mentioning %q", err, tc.frag)
			}
		})
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
