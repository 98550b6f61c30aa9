// Package camera abstracts the physical sensor behind a narrow interface.
//
// A FrameSource produces the latest captured frame and controls a
// hardware-encoded full-resolution output stream. The capture loop is the
// sole frame consumer; the encoder branch writes independently of it once
// started.
package camera

import (
	"errors"
	"time"

	"github.com/zredlined/frc-ai-camera/internal/types"
)

var (
	// ErrDeviceUnavailable means the sensor or hardware encoder could not
	// be opened. Fatal to the requested operation, not to the process.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrDeviceDisconnected means no frame arrived within the bounded
	// wait. Transient; callers should degrade telemetry and retry.
	ErrDeviceDisconnected = errors.New("camera: device disconnected")

	// ErrInvalidState means an encoder call violated the contract:
	// starting while a session is active, or stopping without one.
	ErrInvalidState = errors.New("camera: invalid encoder state")
)

// FrameSource is the contract the capture loop depends on.
type FrameSource interface {
	// Open establishes the capture session at the configured resolution
	// and rate. Returns ErrDeviceUnavailable if the sensor cannot be opened.
	Open() error

	// LatestFrame returns the most recently captured frame, waiting at
	// most timeout for a frame newer than the previous call's result.
	// Returns ErrDeviceDisconnected if none arrives in time.
	LatestFrame(timeout time.Duration) (types.Frame, error)

	// StartEncoder begins writing a hardware-encoded elementary stream to
	// path at the source's native resolution and rate. Returns
	// ErrInvalidState if an encoder session is already active.
	StartEncoder(path string) error

	// StopEncoder flushes and closes the active encoder output. Returns
	// ErrInvalidState if no encoder session is active.
	StopEncoder() error

	// Close releases the capture session. Safe to call multiple times.
	Close() error
}
