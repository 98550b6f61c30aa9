package camera

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zredlined/frc-ai-camera/internal/config"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// MockSource generates synthetic frames for development and tests.
// Selected with camera.device: mock so the appliance runs without hardware.
type MockSource struct {
	width  int
	height int
	fps    int

	mu            sync.Mutex
	opened        bool
	suspended     bool
	latest        types.Frame
	haveFrame     bool
	lastDelivered uint64
	notify        chan struct{}
	seq           uint64

	encoderFile *os.File

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMockSource creates a synthetic frame source at the configured rate.
func NewMockSource(cfg config.CameraConfig) *MockSource {
	return &MockSource{
		width:  cfg.Width,
		height: cfg.Height,
		fps:    cfg.FPS,
		notify: make(chan struct{}),
	}
}

// Open starts the synthetic frame generator.
func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opened {
		return nil
	}
	m.opened = true
	m.stopCh = make(chan struct{})

	slog.Info("camera: mock source started",
		"resolution", fmt.Sprintf("%dx%d", m.width, m.height),
		"fps", m.fps,
	)

	m.wg.Add(1)
	go m.generateFrames()

	return nil
}

func (m *MockSource) generateFrames() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.suspended {
				m.mu.Unlock()
				continue
			}
			m.seq++
			m.latest = types.Frame{
				Seq:       m.seq,
				Timestamp: time.Now(),
				Width:     m.width,
				Height:    m.height,
				Data:      m.createPattern(m.seq),
				TraceID:   uuid.New().String(),
			}
			m.haveFrame = true
			close(m.notify)
			m.notify = make(chan struct{})
			m.mu.Unlock()
		}
	}
}

// createPattern fills an RGB24 buffer with a moving gradient so preview
// output is visually distinguishable frame to frame.
func (m *MockSource) createPattern(seq uint64) []byte {
	data := make([]byte, m.width*m.height*3)
	shift := byte(seq)
	for y := 0; y < m.height; y++ {
		row := y * m.width * 3
		g := byte(y * 255 / m.height)
		for x := 0; x < m.width; x++ {
			i := row + x*3
			data[i] = byte(x*255/m.width) + shift
			data[i+1] = g
			data[i+2] = shift
		}
	}
	return data
}

// LatestFrame waits for a frame newer than the previous call's result.
func (m *MockSource) LatestFrame(timeout time.Duration) (types.Frame, error) {
	deadline := time.Now().Add(timeout)

	m.mu.Lock()
	for {
		if !m.opened {
			m.mu.Unlock()
			return types.Frame{}, fmt.Errorf("%w: mock source not running", ErrDeviceDisconnected)
		}
		if m.haveFrame && m.latest.Seq > m.lastDelivered {
			frame := m.latest
			m.lastDelivered = frame.Seq
			m.mu.Unlock()
			return frame, nil
		}
		notify := m.notify
		m.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return types.Frame{}, fmt.Errorf("%w: no frame within %v", ErrDeviceDisconnected, timeout)
		}
		timer := time.NewTimer(wait)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return types.Frame{}, fmt.Errorf("%w: no frame within %v", ErrDeviceDisconnected, timeout)
		}
		m.mu.Lock()
	}
}

// StartEncoder writes a synthetic elementary stream to path.
func (m *MockSource) StartEncoder(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return fmt.Errorf("%w: mock source not running", ErrDeviceUnavailable)
	}
	if m.encoderFile != nil {
		return fmt.Errorf("%w: encoder already active", ErrInvalidState)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: failed to create output: %v", ErrDeviceUnavailable, err)
	}
	// Annex-B start code so the file is recognizably an H.264 stand-in.
	if _, err := f.Write([]byte{0x00, 0x00, 0x00, 0x01, 0x67}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to write output: %v", ErrDeviceUnavailable, err)
	}
	m.encoderFile = f

	slog.Info("camera: mock encoder started", "path", path)
	return nil
}

// StopEncoder closes the synthetic stream.
func (m *MockSource) StopEncoder() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.encoderFile == nil {
		return fmt.Errorf("%w: encoder not active", ErrInvalidState)
	}
	err := m.encoderFile.Close()
	m.encoderFile = nil

	slog.Info("camera: mock encoder stopped")
	if err != nil {
		return fmt.Errorf("%w: failed to close output: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

// SetSuspended pauses or resumes frame generation. Used by tests to
// simulate a disconnected sensor.
func (m *MockSource) SetSuspended(suspended bool) {
	m.mu.Lock()
	m.suspended = suspended
	m.mu.Unlock()
}

// Close stops the generator. Idempotent.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if !m.opened {
		m.mu.Unlock()
		return nil
	}
	m.opened = false
	if m.encoderFile != nil {
		m.encoderFile.Close()
		m.encoderFile = nil
	}
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	slog.Info("camera: mock source stopped", "frames_emitted", m.seq)
	return nil
}
