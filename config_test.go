package orbital

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	breakages := []func(c *Config){
		func(c *Config) { c.TickΔt = 0 },
		func(c *Config) { c.PredictionΔt = -1 },
		func(c *Config) { c.MaxPredictionSteps = 0 },
		func(c *Config) { c.HyperbolicSteps = 0 },
		func(c *Config) { c.HyperbolicSteps = c.MaxPredictionSteps + 1 },
		func(c *Config) { c.ThrustBudgetDivisor = 0 },
		func(c *Config) { c.ClosureMinFrac = 1 },
		func(c *Config) { c.ClosureDistFrac = 0 },
		func(c *Config) { c.ClosureAngle = 90 },
		func(c *Config) { c.Workers = 0 },
	}
	for i, breakage := range breakages {
		cfg := DefaultConfig()
		breakage(&cfg)
		if cfg.Validate() == nil {
			t.Fatalf("breakage %d passed validation", i)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("ORBITAL_CONFIG")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("no file must mean the defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	dir := t.TempDir()
	toml := `[simulation]
tick = 0.05

[prediction]
maxsteps = 12000

[offload]
workers = 8
`
	if err := os.WriteFile(filepath.Join(dir, "conf.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickΔt != 0.05 || cfg.MaxPredictionSteps != 12000 || cfg.Workers != 8 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	// Keys the file does not set keep their defaults.
	if cfg.HyperbolicSteps != DefaultConfig().HyperbolicSteps || cfg.OutputDir != DefaultConfig().OutputDir {
		t.Fatalf("defaults lost in overlay: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	toml := "[simulation]\ntick = -1\n"
	if err := os.WriteFile(filepath.Join(dir, "conf.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil || !strings.Contains(err.Error(), "tick") {
		t.Fatalf("invalid tick must be rejected, got %v", err)
	}
}

func TestLoadConfigMissingDir(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("an explicit directory without conf.toml must error")
	}
}
