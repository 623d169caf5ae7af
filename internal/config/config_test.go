package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/crowdsim/internal/engine"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crowdsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if c.Run.TickMillis != engine.DefaultTickMillis {
		t.Errorf("TickMillis = %d", c.Run.TickMillis)
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "run:\n  seed: 99\n  max_ticks: 500\nlogging:\n  level: debug\n")
	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.Run.Seed != 99 || c.Run.MaxTicks != 500 || c.Logging.Level != "debug" {
		t.Errorf("loaded %+v", c)
	}
	if c.Run.TickMillis != engine.DefaultTickMillis || c.Storage.StatsEverySeconds != 1 {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
	if _, err := LoadFromFile(writeFile(t, "run: [unclosed")); err == nil {
		t.Error("malformed YAML loaded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero tick", func(c *Config) { c.Run.TickMillis = 0 }, true},
		{"tick above a second", func(c *Config) { c.Run.TickMillis = 1001 }, true},
		{"one second tick", func(c *Config) { c.Run.TickMillis = 1000 }, false},
		{"paused realtime", func(c *Config) { c.Run.Realtime, c.Run.Speed = true, 0 }, true},
		{"negative stats interval", func(c *Config) { c.Storage.StatsEverySeconds = -1 }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, false},
		{"admin key without api", func(c *Config) { c.API.AdminKey = "k" }, true},
		{"admin key with api", func(c *Config) { c.API.Addr, c.API.AdminKey = ":8080", "k" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	c := Default()
	c.Run.TickMillis = -1
	if err := c.Validate(); !errors.Is(err, engine.ErrInvalidTick) {
		t.Errorf("Validate() = %v, want ErrInvalidTick", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CROWDSIM_SEED", "7")
	t.Setenv("CROWDSIM_TICK_MILLIS", "250")
	t.Setenv("CROWDSIM_LOG_LEVEL", "trace")
	t.Setenv("CROWDSIM_DB", "/tmp/run.db")
	t.Setenv("CROWDSIM_API_ADDR", ":9090")
	t.Setenv("CROWDSIM_ADMIN_KEY", "secret")
	c, err := Load(writeFile(t, "run:\n  seed: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Run.Seed != 7 || c.Run.TickMillis != 250 || c.Logging.Level != "trace" || c.Storage.DB != "/tmp/run.db" {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.API.Addr != ":9090" || c.API.AdminKey != "secret" {
		t.Errorf("api overrides not applied: %+v", c.API)
	}
}

func TestEnvOverrideRejectsMalformedSeed(t *testing.T) {
	t.Setenv("CROWDSIM_SEED", "seven")
	if _, err := Load(""); err == nil {
		t.Error("malformed CROWDSIM_SEED accepted")
	}
}
