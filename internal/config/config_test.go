package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("unexpected default capture resolution %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Preview.JPEGQuality != 65 {
		t.Errorf("unexpected default jpeg quality %d", cfg.Preview.JPEGQuality)
	}
	if cfg.Storage.MaxClips != 5 {
		t.Errorf("unexpected default max clips %d", cfg.Storage.MaxClips)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldcam.yaml")
	data := []byte("camera:\n  device: mock\nstorage:\n  output_dir: /tmp/clips\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Camera.Device != "mock" {
		t.Errorf("expected device mock, got %q", cfg.Camera.Device)
	}
	if cfg.Storage.OutputDir != "/tmp/clips" {
		t.Errorf("expected output dir override, got %q", cfg.Storage.OutputDir)
	}
	if cfg.Camera.FPS != 50 {
		t.Errorf("expected default capture fps 50, got %d", cfg.Camera.FPS)
	}
	if cfg.Preview.Width != 640 || cfg.Preview.Height != 360 {
		t.Errorf("expected default preview resolution, got %dx%d", cfg.Preview.Width, cfg.Preview.Height)
	}
	if cfg.Server.Listen != ":5000" {
		t.Errorf("expected default listen address, got %q", cfg.Server.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative capture width", func(c *Config) { c.Camera.Width = -1 }},
		{"capture fps too high", func(c *Config) { c.Camera.FPS = 500 }},
		{"preview faster than capture", func(c *Config) { c.Preview.FPS = c.Camera.FPS + 1 }},
		{"jpeg quality out of range", func(c *Config) { c.Preview.JPEGQuality = 101 }},
		{"bad instance id", func(c *Config) { c.InstanceID = "Field Cam!" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
