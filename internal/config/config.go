package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	minIntervalSeconds   = 1
	maxIntervalSeconds   = 3600
	minBufferSize        = 1
	maxBufferSize        = 100000
	minTopPerCategory    = 1
	maxTopPerCategory    = 100
	minBootWindowSeconds = 0
	maxBootWindowSeconds = 3600
)

type Config struct {
	Collection CollectionConfig `toml:"collection"`
	Proc       ProcConfig       `toml:"proc"`
	DBus       DBusConfig       `toml:"dbus"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

type CollectionConfig struct {
	BootIntervalSeconds     int `toml:"boot_interval_seconds"`
	PeriodicIntervalSeconds int `toml:"periodic_interval_seconds"`
	PeriodicBufferSize      int `toml:"periodic_buffer_size"`
	TopPerCategory          int `toml:"top_per_category"`
	// BootWindowSeconds is how long after start the daemon keeps
	// boot-time collection before switching to periodic on its own.
	// 0 disables the automatic switch; integrators then signal boot
	// completion over D-Bus.
	BootWindowSeconds int `toml:"boot_window_seconds"`
}

type ProcConfig struct {
	Root string `toml:"root"`
}

type DBusConfig struct {
	Enabled bool `toml:"enabled"`
}

type MetricsConfig struct {
	// ListenAddr serves Prometheus metrics when non-empty.
	ListenAddr string `toml:"listen_addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Collection: CollectionConfig{
			BootIntervalSeconds:     1,
			PeriodicIntervalSeconds: 10,
			PeriodicBufferSize:      180,
			TopPerCategory:          5,
			BootWindowSeconds:       60,
		},
		Proc: ProcConfig{
			Root: "/proc",
		},
		DBus: DBusConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	var err error
	sanitized.Proc.Root, err = sanitizePath("proc.root", sanitized.Proc.Root)
	if err != nil {
		return nil, err
	}

	if err := validateRange("collection.boot_interval_seconds", sanitized.Collection.BootIntervalSeconds, minIntervalSeconds, maxIntervalSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("collection.periodic_interval_seconds", sanitized.Collection.PeriodicIntervalSeconds, minIntervalSeconds, maxIntervalSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("collection.periodic_buffer_size", sanitized.Collection.PeriodicBufferSize, minBufferSize, maxBufferSize); err != nil {
		return nil, err
	}
	if err := validateRange("collection.top_per_category", sanitized.Collection.TopPerCategory, minTopPerCategory, maxTopPerCategory); err != nil {
		return nil, err
	}
	if err := validateRange("collection.boot_window_seconds", sanitized.Collection.BootWindowSeconds, minBootWindowSeconds, maxBootWindowSeconds); err != nil {
		return nil, err
	}

	return &sanitized, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}
