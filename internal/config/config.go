package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete fieldcam configuration.
// All values are fixed for the process lifetime; there is no hot-reload.
type Config struct {
	InstanceID       string        `yaml:"instance_id"`
	ShutdownTimeoutS int           `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig  `yaml:"camera"`
	Preview          PreviewConfig `yaml:"preview"`
	Storage          StorageConfig `yaml:"storage"`
	Server           ServerConfig  `yaml:"server"`
}

// CameraConfig contains capture settings for the sensor.
type CameraConfig struct {
	Device           string `yaml:"device"`            // V4L2 device path, or "mock" for a synthetic source
	Width            int    `yaml:"width"`             // capture width in pixels
	Height           int    `yaml:"height"`            // capture height in pixels
	FPS              int    `yaml:"fps"`               // capture frame rate
	BitrateBPS       int    `yaml:"bitrate_bps"`       // hardware encoder bitrate
	FrameTimeoutMS   int    `yaml:"frame_timeout_ms"`  // max wait for a frame before declaring a miss
	FailureThreshold int    `yaml:"failure_threshold"` // consecutive misses before camera_connected flips false
}

// PreviewConfig contains preview stream settings.
type PreviewConfig struct {
	Width       int `yaml:"width"`        // preview width in pixels
	Height      int `yaml:"height"`       // preview height in pixels
	FPS         int `yaml:"fps"`          // preview encode cadence
	JPEGQuality int `yaml:"jpeg_quality"` // JPEG quality 1-100
}

// StorageConfig contains clip storage settings.
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"` // directory for raw and finalized clips
	MaxClips  int    `yaml:"max_clips"`  // retained finalized clip bound
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"` // listen address, e.g. ":5000"
}

// Default returns the built-in configuration matching the appliance defaults.
func Default() *Config {
	return &Config{
		InstanceID:       "fieldcam",
		ShutdownTimeoutS: 5,
		Camera: CameraConfig{
			Device:           "/dev/video0",
			Width:            1280,
			Height:           720,
			FPS:              50,
			BitrateBPS:       8_000_000,
			FrameTimeoutMS:   500,
			FailureThreshold: 3,
		},
		Preview: PreviewConfig{
			Width:       640,
			Height:      360,
			FPS:         25,
			JPEGQuality: 65,
		},
		Storage: StorageConfig{
			OutputDir: "recordings",
			MaxClips:  5,
		},
		Server: ServerConfig{
			Listen: ":5000",
		},
	}
}

// Load reads and parses a YAML configuration file.
// Unset fields fall back to defaults during validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// PreviewTick returns the preview encode interval derived from the preview FPS.
func (c *Config) PreviewTick() time.Duration {
	return time.Second / time.Duration(c.Preview.FPS)
}

// FrameTimeout returns the bounded wait for frame acquisition.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Camera.FrameTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
