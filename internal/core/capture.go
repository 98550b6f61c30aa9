package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zredlined/frc-ai-camera/internal/camera"
	"github.com/zredlined/frc-ai-camera/internal/preview"
	"github.com/zredlined/frc-ai-camera/internal/recorder"
)

// reopenInterval rate-limits attempts to reopen a failed sensor.
const reopenInterval = 2 * time.Second

// fpsWindow is the wall-time window over which measured_fps is recomputed.
const fpsWindow = time.Second

// CaptureLoop runs the continuous capture cycle on one goroutine for the
// process lifetime. Each tick acquires the latest frame, renders and
// publishes a preview, and updates health telemetry. A bad cycle degrades
// telemetry and continues; it never terminates the loop.
type CaptureLoop struct {
	source    camera.FrameSource
	pipeline  *preview.Pipeline
	publisher *preview.Publisher
	sessions  *recorder.Manager
	telemetry *Telemetry

	tick             time.Duration
	frameTimeout     time.Duration
	failureThreshold int

	// loop-local state, touched only by Run's goroutine
	opened          bool
	lastOpenAttempt time.Time
	failures        int
	lastSeq         uint64
	frameDelta      uint64
	windowStart     time.Time
}

// NewCaptureLoop wires the loop to its collaborators.
func NewCaptureLoop(source camera.FrameSource, pipeline *preview.Pipeline, publisher *preview.Publisher,
	sessions *recorder.Manager, telemetry *Telemetry,
	tick, frameTimeout time.Duration, failureThreshold int) *CaptureLoop {
	return &CaptureLoop{
		source:           source,
		pipeline:         pipeline,
		publisher:        publisher,
		sessions:         sessions,
		telemetry:        telemetry,
		tick:             tick,
		frameTimeout:     frameTimeout,
		failureThreshold: failureThreshold,
	}
}

// Run blocks until ctx is cancelled. If a cycle overruns the tick the
// next one simply starts late; ticks are never skipped mid-render.
func (c *CaptureLoop) Run(ctx context.Context) error {
	slog.Info("capture loop starting",
		"tick", c.tick,
		"frame_timeout", c.frameTimeout,
		"failure_threshold", c.failureThreshold,
	)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("capture loop stopping")
			return nil
		case <-ticker.C:
			c.cycle()
		}
	}
}

// cycle runs one iteration. Panics are contained here so a single bad
// cycle cannot take the process down.
func (c *CaptureLoop) cycle() {
	defer func() {
		if r := recover(); r != nil {
			c.telemetry.RecordError(fmt.Errorf("capture cycle panic: %v", r))
			slog.Error("capture cycle panic recovered", "panic", r)
		}
	}()

	if !c.opened {
		if time.Since(c.lastOpenAttempt) < reopenInterval {
			return
		}
		c.lastOpenAttempt = time.Now()
		if err := c.source.Open(); err != nil {
			c.telemetry.RecordError(err)
			slog.Warn("camera open failed, will retry", "error", err)
			return
		}
		c.opened = true
		c.failures = 0
	}

	frame, err := c.source.LatestFrame(c.frameTimeout)
	if err != nil {
		c.failures++
		c.telemetry.RecordError(err)
		if c.failures >= c.failureThreshold {
			c.telemetry.SetConnected(false)
			c.resetRateWindow()
		}
		slog.Debug("frame acquisition failed", "consecutive", c.failures, "error", err)
		return
	}

	c.failures = 0
	c.telemetry.SetConnected(true)
	c.measureRate(frame.Seq)

	snapshot := c.telemetry.Snapshot(c.sessions.Recording())
	previewFrame, err := c.pipeline.Render(frame, snapshot.MeasuredFPS, snapshot.Recording)
	if err != nil {
		c.telemetry.RecordError(err)
		slog.Warn("preview render failed", "frame_seq", frame.Seq, "error", err)
		return
	}
	c.publisher.Publish(previewFrame)
}

// measureRate recomputes measured_fps over a rolling one-second window.
// Counting sequence-number deltas rather than loop iterations keeps the
// measurement honest when the sensor runs faster than the preview tick.
func (c *CaptureLoop) measureRate(seq uint64) {
	if c.windowStart.IsZero() {
		c.windowStart = time.Now()
		c.lastSeq = seq
		return
	}

	if seq > c.lastSeq {
		c.frameDelta += seq - c.lastSeq
	}
	c.lastSeq = seq

	elapsed := time.Since(c.windowStart)
	if elapsed >= fpsWindow {
		c.telemetry.SetFPS(float64(c.frameDelta) / elapsed.Seconds())
		c.frameDelta = 0
		c.windowStart = time.Now()
	}
}

func (c *CaptureLoop) resetRateWindow() {
	c.frameDelta = 0
	c.windowStart = time.Time{}
}
