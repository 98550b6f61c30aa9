package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults for unset fields.
func Validate(cfg *Config) error {
	def := Default()

	if cfg.InstanceID == "" {
		cfg.InstanceID = def.InstanceID
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = def.ShutdownTimeoutS
	}

	// Camera
	if cfg.Camera.Device == "" {
		cfg.Camera.Device = def.Camera.Device
	}
	if cfg.Camera.Width == 0 && cfg.Camera.Height == 0 {
		cfg.Camera.Width = def.Camera.Width
		cfg.Camera.Height = def.Camera.Height
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution must be positive, got %dx%d",
			cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = def.Camera.FPS
	}
	if cfg.Camera.FPS < 0 || cfg.Camera.FPS > 120 {
		return fmt.Errorf("camera.fps must be 1-120, got %d", cfg.Camera.FPS)
	}
	if cfg.Camera.BitrateBPS <= 0 {
		cfg.Camera.BitrateBPS = def.Camera.BitrateBPS
	}
	if cfg.Camera.FrameTimeoutMS <= 0 {
		cfg.Camera.FrameTimeoutMS = def.Camera.FrameTimeoutMS
	}
	if cfg.Camera.FailureThreshold <= 0 {
		cfg.Camera.FailureThreshold = def.Camera.FailureThreshold
	}

	// Preview
	if cfg.Preview.Width == 0 && cfg.Preview.Height == 0 {
		cfg.Preview.Width = def.Preview.Width
		cfg.Preview.Height = def.Preview.Height
	}
	if cfg.Preview.Width <= 0 || cfg.Preview.Height <= 0 {
		return fmt.Errorf("preview resolution must be positive, got %dx%d",
			cfg.Preview.Width, cfg.Preview.Height)
	}
	if cfg.Preview.FPS == 0 {
		cfg.Preview.FPS = def.Preview.FPS
	}
	if cfg.Preview.FPS < 0 || cfg.Preview.FPS > cfg.Camera.FPS {
		return fmt.Errorf("preview.fps must be 1-%d (capture rate), got %d",
			cfg.Camera.FPS, cfg.Preview.FPS)
	}
	if cfg.Preview.JPEGQuality == 0 {
		cfg.Preview.JPEGQuality = def.Preview.JPEGQuality
	}
	if cfg.Preview.JPEGQuality < 1 || cfg.Preview.JPEGQuality > 100 {
		return fmt.Errorf("preview.jpeg_quality must be 1-100, got %d", cfg.Preview.JPEGQuality)
	}

	// Storage
	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = def.Storage.OutputDir
	}
	if cfg.Storage.MaxClips == 0 {
		cfg.Storage.MaxClips = def.Storage.MaxClips
	}
	if cfg.Storage.MaxClips < 1 {
		return fmt.Errorf("storage.max_clips must be >= 1, got %d", cfg.Storage.MaxClips)
	}

	// Server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = def.Server.Listen
	}

	return nil
}
