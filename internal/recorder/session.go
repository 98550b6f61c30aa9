// Package recorder owns the recording session lifecycle: one bounded
// session at a time, from hardware encoder start through the finalize
// remux into a playable container.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zredlined/frc-ai-camera/internal/clipstore"
)

var (
	// ErrAlreadyRecording is returned by Start while a session exists.
	ErrAlreadyRecording = errors.New("recorder: already recording")

	// ErrNotRecording is returned by Stop when no session is recording.
	ErrNotRecording = errors.New("recorder: not recording")
)

// State is the recording session state.
type State int

const (
	// Idle means no session exists.
	Idle State = iota
	// Recording means the raw hardware output is being written.
	Recording
	// Finalizing means the raw output is being remuxed into a container.
	Finalizing
	// Completed is terminal: the clip was finalized and registered.
	Completed
	// Failed is terminal: finalize failed, raw output preserved.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is one bounded-lifetime recording.
type Session struct {
	ID        string
	Label     string
	StartedAt time.Time
	RawPath   string
	ClipPath  string
	state     State
}

// EncoderControl is the slice of the camera contract the recorder needs.
type EncoderControl interface {
	StartEncoder(path string) error
	StopEncoder() error
}

// Finalizer remuxes a raw elementary stream into a playable container.
type Finalizer func(ctx context.Context, rawPath, clipPath string, fps int) error

// Manager serializes session commands and drives the state machine.
// At most one session exists at a time; concurrent Start calls are
// rejected, never queued.
type Manager struct {
	encoder  EncoderControl
	store    *clipstore.Store
	finalize Finalizer
	fps      int

	// onFinalized surfaces finalize outcomes to telemetry; err is nil on
	// success. Invoked off the caller's goroutine.
	onFinalized func(clipPath string, err error)

	mu      sync.Mutex
	session *Session
	wg      sync.WaitGroup
}

// NewManager creates a session manager writing clips through store.
// fps is the capture rate the raw stream was encoded at, needed by the
// remux step. onFinalized may be nil.
func NewManager(encoder EncoderControl, store *clipstore.Store, finalize Finalizer, fps int, onFinalized func(string, error)) *Manager {
	if finalize == nil {
		finalize = FFmpegRemux
	}
	if onFinalized == nil {
		onFinalized = func(string, error) {}
	}
	return &Manager{
		encoder:     encoder,
		store:       store,
		finalize:    finalize,
		fps:         fps,
		onFinalized: onFinalized,
	}
}

// Start begins a new recording. Only valid when no session exists.
// Returns the finalized clip path the session will produce.
func (m *Manager) Start(label string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return "", fmt.Errorf("%w: session %s is %s", ErrAlreadyRecording, m.session.ID, m.session.state)
	}

	safe := SanitizeLabel(label)
	ts := time.Now().Format("20060102_150405")
	clipPath := filepath.Join(m.store.Dir(), fmt.Sprintf("%s_%s.mp4", ts, safe))
	rawPath := strings.TrimSuffix(clipPath, ".mp4") + ".h264"

	if err := m.encoder.StartEncoder(rawPath); err != nil {
		// Session is discarded; state stays Idle for the next attempt.
		return "", fmt.Errorf("recorder: failed to start hardware encoder: %w", err)
	}

	m.session = &Session{
		ID:        uuid.New().String(),
		Label:     safe,
		StartedAt: time.Now(),
		RawPath:   rawPath,
		ClipPath:  clipPath,
		state:     Recording,
	}

	slog.Info("recorder: recording started",
		"session_id", m.session.ID,
		"label", safe,
		"raw_path", rawPath,
	)

	return clipPath, nil
}

// Stop ends the active recording and dispatches finalize off the calling
// goroutine. Only valid while Recording; a no-op error otherwise.
func (m *Manager) Stop() error {
	m.mu.Lock()

	if m.session == nil || m.session.state != Recording {
		state := Idle
		if m.session != nil {
			state = m.session.state
		}
		m.mu.Unlock()
		return fmt.Errorf("%w: session state is %s", ErrNotRecording, state)
	}

	session := m.session
	if err := m.encoder.StopEncoder(); err != nil {
		// The raw file may still be usable; log and continue to finalize.
		slog.Error("recorder: encoder stop failed", "session_id", session.ID, "error", err)
	}
	session.state = Finalizing
	m.mu.Unlock()

	slog.Info("recorder: finalizing",
		"session_id", session.ID,
		"raw_path", session.RawPath,
		"clip_path", session.ClipPath,
	)

	// Finalize runs on its own goroutine so a multi-second remux never
	// touches the capture loop. Not cancellable once dispatched.
	m.wg.Add(1)
	go m.runFinalize(session)

	return nil
}

func (m *Manager) runFinalize(session *Session) {
	defer m.wg.Done()

	err := m.finalize(context.Background(), session.RawPath, session.ClipPath, m.fps)

	m.mu.Lock()
	if err != nil {
		// Keep the raw file for forensic recovery.
		session.state = Failed
		m.session = nil
		m.mu.Unlock()

		slog.Error("recorder: finalize failed",
			"session_id", session.ID,
			"raw_path", session.RawPath,
			"error", err,
		)
		m.onFinalized(session.ClipPath, err)
		return
	}

	session.state = Completed
	m.session = nil
	m.mu.Unlock()

	if err := os.Remove(session.RawPath); err != nil {
		slog.Warn("recorder: failed to remove raw intermediate", "path", session.RawPath, "error", err)
	}
	m.store.Register(session.ClipPath)

	slog.Info("recorder: recording finalized",
		"session_id", session.ID,
		"clip_path", session.ClipPath,
		"duration", time.Since(session.StartedAt),
	)
	m.onFinalized(session.ClipPath, nil)
}

// Recording reports whether a session is actively writing raw output.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.state == Recording
}

// State returns the current session state, Idle when no session exists.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Idle
	}
	return m.session.state
}

// StopAndWait stops any active recording and blocks until in-flight
// finalize work completes. Used during shutdown.
func (m *Manager) StopAndWait() {
	if err := m.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		slog.Error("recorder: stop during shutdown failed", "error", err)
	}
	m.wg.Wait()
}
