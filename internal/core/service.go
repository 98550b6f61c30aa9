// Package core orchestrates the capture pipeline: one service instance
// owns the frame source, the capture loop, the recording session manager
// and the health telemetry. Callers obtain everything through this one
// handle; there are no package-level globals.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zredlined/frc-ai-camera/internal/camera"
	"github.com/zredlined/frc-ai-camera/internal/clipstore"
	"github.com/zredlined/frc-ai-camera/internal/config"
	"github.com/zredlined/frc-ai-camera/internal/preview"
	"github.com/zredlined/frc-ai-camera/internal/recorder"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// Service is the appliance orchestrator.
type Service struct {
	cfg *config.Config

	source    camera.FrameSource
	publisher *preview.Publisher
	store     *clipstore.Store
	sessions  *recorder.Manager
	telemetry *Telemetry
	loop      *CaptureLoop

	mu        sync.Mutex
	isRunning bool
	started   time.Time
}

// NewService builds the full pipeline from configuration. The finalizer
// may be nil to use the default ffmpeg remux.
func NewService(cfg *config.Config, finalize recorder.Finalizer) (*Service, error) {
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var source camera.FrameSource
	if cfg.Camera.Device == "mock" {
		source = camera.NewMockSource(cfg.Camera)
		slog.Info("using mock camera source")
	} else {
		source = camera.NewGstSource(cfg.Camera)
		slog.Info("using v4l2 camera source", "device", cfg.Camera.Device)
	}

	s := &Service{
		cfg:       cfg,
		source:    source,
		publisher: preview.NewPublisher(),
		store:     clipstore.New(cfg.Storage.OutputDir, cfg.Storage.MaxClips),
		telemetry: NewTelemetry(),
	}

	s.sessions = recorder.NewManager(source, s.store, finalize, cfg.Camera.FPS,
		func(clipPath string, err error) {
			if err != nil {
				s.telemetry.RecordError(err)
			}
		})

	s.loop = NewCaptureLoop(source, preview.NewPipeline(cfg.Preview), s.publisher,
		s.sessions, s.telemetry,
		cfg.PreviewTick(), cfg.FrameTimeout(), cfg.Camera.FailureThreshold)

	return s, nil
}

// Run starts the capture loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	slog.Info("fieldcam service starting",
		"instance_id", s.cfg.InstanceID,
		"output_dir", s.cfg.Storage.OutputDir,
		"max_clips", s.cfg.Storage.MaxClips,
	)

	return s.loop.Run(ctx)
}

// Shutdown stops any active recording, waits for in-flight finalize work,
// then tears down the camera. Finalize is bounded by its own timeout, so
// this terminates even when ffmpeg hangs.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	slog.Info("shutting down fieldcam service")

	done := make(chan struct{})
	go func() {
		s.sessions.StopAndWait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timeout while finalizing, abandoning remux")
	}

	if err := s.source.Close(); err != nil {
		slog.Error("failed to close camera", "error", err)
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("fieldcam service stopped", "uptime", uptime)
	return nil
}

// Status returns a consistent health snapshot for the status endpoint.
func (s *Service) Status() types.HealthSnapshot {
	return s.telemetry.Snapshot(s.sessions.Recording())
}

// Clips enumerates finalized clips, newest first.
func (s *Service) Clips() []clipstore.ClipRecord {
	return s.store.List()
}

// StartRecording begins a new recording session with the given label.
func (s *Service) StartRecording(label string) (string, error) {
	return s.sessions.Start(label)
}

// StopRecording ends the active session and dispatches finalize.
func (s *Service) StopRecording() error {
	return s.sessions.Stop()
}

// LatestPreview returns the current preview frame, nil before the first
// publish.
func (s *Service) LatestPreview() *types.PreviewFrame {
	return s.publisher.Latest()
}

// NextPreview blocks for the next preview frame after the given sequence.
func (s *Service) NextPreview(ctx context.Context, after uint64) (*types.PreviewFrame, error) {
	return s.publisher.Next(ctx, after)
}

// ClipPath resolves a clip name to its path inside the storage directory.
// Names carrying separators, traversal, or a foreign extension are
// rejected so downloads can never escape the configured directory.
func (s *Service) ClipPath(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".mp4") {
		return "", false
	}
	path := filepath.Join(s.cfg.Storage.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
