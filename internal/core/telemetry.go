package core

import (
	"math"
	"sync"

	"github.com/zredlined/frc-ai-camera/internal/types"
)

// Telemetry is the live health state of the capture pipeline.
//
// The capture loop is the sole writer; status readers take a consistent
// snapshot under the same lock so camera_connected, measured_fps and
// last_error are never observed half-updated.
type Telemetry struct {
	mu          sync.Mutex
	connected   bool
	measuredFPS float64
	lastError   string
}

// NewTelemetry returns telemetry in the disconnected initial state.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// SetConnected marks the camera link up or down. Going down zeroes the
// measured rate; stale rates are worse than none on a dead link.
func (t *Telemetry) SetConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	if !connected {
		t.measuredFPS = 0
	}
	t.mu.Unlock()
}

// SetFPS publishes a freshly computed frame rate.
func (t *Telemetry) SetFPS(fps float64) {
	t.mu.Lock()
	t.measuredFPS = fps
	t.mu.Unlock()
}

// RecordError stores the most recent failure text for the status feed.
func (t *Telemetry) RecordError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.lastError = err.Error()
	t.mu.Unlock()
}

// Snapshot returns a consistent view combined with the recording flag.
func (t *Telemetry) Snapshot(recording bool) types.HealthSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.HealthSnapshot{
		CameraConnected: t.connected,
		MeasuredFPS:     math.Round(t.measuredFPS*10) / 10,
		Recording:       recording,
		LastError:       t.lastError,
	}
}
