package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.MaxParallel <= 0 {
		t.Error("default max_parallel must be positive")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9000"
download_dir: /srv/videos
max_parallel: 8
probe_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %s", cfg.ListenAddr)
	}
	if cfg.DownloadDir != "/srv/videos" {
		t.Errorf("download_dir = %s", cfg.DownloadDir)
	}
	if cfg.MaxParallel != 8 {
		t.Errorf("max_parallel = %d", cfg.MaxParallel)
	}
	if cfg.ProbeTimeout != 30*time.Second {
		t.Errorf("probe_timeout = %s", cfg.ProbeTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.DefaultFormat != Default().DefaultFormat {
		t.Errorf("default_format = %s", cfg.DefaultFormat)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("probe_timeout: nonsense\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unparseable duration")
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VIDGRAB_LISTEN_ADDR", ":7070")
	t.Setenv("VIDGRAB_MAX_PARALLEL", "3")
	t.Setenv("VIDGRAB_PROBE_TIMEOUT", "90s")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen_addr = %s", cfg.ListenAddr)
	}
	if cfg.MaxParallel != 3 {
		t.Errorf("max_parallel = %d", cfg.MaxParallel)
	}
	if cfg.ProbeTimeout != 90*time.Second {
		t.Errorf("probe_timeout = %s", cfg.ProbeTimeout)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("VIDGRAB_MAX_PARALLEL", "many")
	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric VIDGRAB_MAX_PARALLEL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }},
		{"zero max parallel", func(c *Config) { c.MaxParallel = 0 }},
		{"negative probe timeout", func(c *Config) { c.ProbeTimeout = -time.Second }},
	}

	for _, test := range tests {
		cfg := Default()
		test.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}
