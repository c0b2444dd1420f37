package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxChecks != 8 {
		t.Errorf("Expected max_checks 8, got %d", cfg.MaxChecks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config is invalid: %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framefix.yaml")
	data := "block_size: 4\nstep_size: 8\nshow_stats: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BlockSize != 4 || cfg.StepSize != 8 || !cfg.ShowStats {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.MaxChecks != DefaultMaxChecks || cfg.FrameExt != ".png" {
		t.Errorf("Defaults lost: %+v", cfg)
	}
}

func TestWriteLoad(t *testing.T) {
	cfg := Default()
	cfg.Workspace = "/tmp/ws"
	cfg.LastFrame = 120

	path := filepath.Join(t.TempDir(), "framefix.yaml")
	if err := Write(cfg, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	read, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *read != *cfg {
		t.Errorf("Expected %+v, got %+v", cfg, read)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero block", func(c *Config) { c.BlockSize = 0 }, true},
		{"zero step", func(c *Config) { c.StepSize = 0 }, true},
		{"zero checks", func(c *Config) { c.MaxChecks = 0 }, false},
		{"negative checks", func(c *Config) { c.MaxChecks = -1 }, true},
		{"negative workers", func(c *Config) { c.Workers = -2 }, true},
		{"inverted range", func(c *Config) { c.FirstFrame, c.LastFrame = 10, 5 }, true},
		{"open range", func(c *Config) { c.FirstFrame, c.LastFrame = 10, 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error, got nil")
	}
}
