package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Collection.BootIntervalSeconds != 1 {
		t.Fatalf("unexpected BootIntervalSeconds: %d", cfg.Collection.BootIntervalSeconds)
	}
	if cfg.Collection.PeriodicIntervalSeconds != 10 {
		t.Fatalf("unexpected PeriodicIntervalSeconds: %d", cfg.Collection.PeriodicIntervalSeconds)
	}
	if cfg.Collection.PeriodicBufferSize != 180 {
		t.Fatalf("unexpected PeriodicBufferSize: %d", cfg.Collection.PeriodicBufferSize)
	}
	if cfg.Collection.TopPerCategory != 5 {
		t.Fatalf("unexpected TopPerCategory: %d", cfg.Collection.TopPerCategory)
	}
	if cfg.Collection.BootWindowSeconds != 60 {
		t.Fatalf("unexpected BootWindowSeconds: %d", cfg.Collection.BootWindowSeconds)
	}
	if cfg.Proc.Root != "/proc" {
		t.Fatalf("unexpected Proc.Root: %q", cfg.Proc.Root)
	}
	if !cfg.DBus.Enabled {
		t.Fatal("DBus.Enabled = false, want true")
	}
	if cfg.Metrics.ListenAddr != "" {
		t.Fatalf("unexpected Metrics.ListenAddr: %q", cfg.Metrics.ListenAddr)
	}

	if _, err := NormalizeAndValidate(cfg); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[collection]
periodic_interval_seconds = 30
top_per_category = 10
boot_window_seconds = 0

[proc]
root = "/host/proc"

[metrics]
listen_addr = "127.0.0.1:9143"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Collection.PeriodicIntervalSeconds != 30 {
		t.Fatalf("PeriodicIntervalSeconds = %d, want 30", cfg.Collection.PeriodicIntervalSeconds)
	}
	if cfg.Collection.TopPerCategory != 10 {
		t.Fatalf("TopPerCategory = %d, want 10", cfg.Collection.TopPerCategory)
	}
	if cfg.Collection.BootWindowSeconds != 0 {
		t.Fatalf("BootWindowSeconds = %d, want 0", cfg.Collection.BootWindowSeconds)
	}
	// Untouched keys keep their defaults.
	if cfg.Collection.BootIntervalSeconds != 1 {
		t.Fatalf("BootIntervalSeconds = %d, want default 1", cfg.Collection.BootIntervalSeconds)
	}
	if cfg.Proc.Root != "/host/proc" {
		t.Fatalf("Proc.Root = %q, want /host/proc", cfg.Proc.Root)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9143" {
		t.Fatalf("Metrics.ListenAddr = %q, want 127.0.0.1:9143", cfg.Metrics.ListenAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() of missing file succeeded, want error")
	}
}

func TestNormalizeAndValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "interval too small",
			mutate:  func(c *Config) { c.Collection.PeriodicIntervalSeconds = 0 },
			wantMsg: "periodic_interval_seconds",
		},
		{
			name:    "interval too large",
			mutate:  func(c *Config) { c.Collection.BootIntervalSeconds = 4000 },
			wantMsg: "boot_interval_seconds",
		},
		{
			name:    "buffer size zero",
			mutate:  func(c *Config) { c.Collection.PeriodicBufferSize = 0 },
			wantMsg: "periodic_buffer_size",
		},
		{
			name:    "top per category zero",
			mutate:  func(c *Config) { c.Collection.TopPerCategory = 0 },
			wantMsg: "top_per_category",
		},
		{
			name:    "relative proc root",
			mutate:  func(c *Config) { c.Proc.Root = "proc" },
			wantMsg: "proc.root",
		},
		{
			name:    "empty proc root",
			mutate:  func(c *Config) { c.Proc.Root = "  " },
			wantMsg: "proc.root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := NormalizeAndValidate(cfg)
			if err == nil {
				t.Fatal("NormalizeAndValidate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestNormalizeAndValidate_Nil(t *testing.T) {
	if _, err := NormalizeAndValidate(nil); err == nil {
		t.Fatal("NormalizeAndValidate(nil) succeeded, want error")
	}
}

func TestSave_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.Collection.PeriodicIntervalSeconds = 20
	cfg.Metrics.ListenAddr = "localhost:9143"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Collection.PeriodicIntervalSeconds != 20 {
		t.Fatalf("PeriodicIntervalSeconds = %d, want 20", loaded.Collection.PeriodicIntervalSeconds)
	}
	if loaded.Metrics.ListenAddr != "localhost:9143" {
		t.Fatalf("Metrics.ListenAddr = %q, want localhost:9143", loaded.Metrics.ListenAddr)
	}
}

func TestSave_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Collection.PeriodicBufferSize = -1

	if err := Save(filepath.Join(t.TempDir(), "config.toml"), cfg); err == nil {
		t.Fatal("Save() of invalid config succeeded, want error")
	}
}
