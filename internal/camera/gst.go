package camera

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/zredlined/frc-ai-camera/internal/config"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// GstSource captures frames from a V4L2 device through GStreamer.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → capsfilter(RGB,WxH@fps) → tee ─→ queue → appsink
//	                                                       └→ [record branch, attached on demand]
//
// The appsink keeps only the latest buffer (max-buffers=1, drop=true) so a
// slow consumer can never apply backpressure to the sensor. The record
// branch (queue → videoconvert → v4l2h264enc → h264parse → filesink) is
// added and removed at runtime by StartEncoder/StopEncoder.
type GstSource struct {
	cfg config.CameraConfig

	mu       sync.Mutex
	pipeline *gst.Pipeline
	tee      *gst.Element
	appsink  *app.Sink
	opened   bool

	// latest frame slot, written only by the appsink callback
	latest        types.Frame
	haveFrame     bool
	lastDelivered uint64
	notify        chan struct{}

	// active record branch, nil when idle
	record *recordBranch

	frameSeq uint64
}

type recordBranch struct {
	teePad   *gst.Pad
	queue    *gst.Element
	convert  *gst.Element
	encoder  *gst.Element
	parser   *gst.Element
	filesink *gst.Element
	path     string
}

// NewGstSource creates an unopened GStreamer-backed frame source.
func NewGstSource(cfg config.CameraConfig) *GstSource {
	return &GstSource{
		cfg:    cfg,
		notify: make(chan struct{}),
	}
}

// Open builds and starts the capture pipeline.
func (s *GstSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("%w: failed to create pipeline: %v", ErrDeviceUnavailable, err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("%w: failed to create v4l2src: %v", ErrDeviceUnavailable, err)
	}
	src.SetProperty("device", s.cfg.Device)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("%w: failed to create videoconvert: %v", ErrDeviceUnavailable, err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("%w: failed to create capsfilter: %v", ErrDeviceUnavailable, err)
	}
	capsStr := fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		s.cfg.Width, s.cfg.Height, s.cfg.FPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	tee, err := gst.NewElement("tee")
	if err != nil {
		return fmt.Errorf("%w: failed to create tee: %v", ErrDeviceUnavailable, err)
	}
	tee.SetProperty("allow-not-linked", true)

	queue, err := gst.NewElement("queue")
	if err != nil {
		return fmt.Errorf("%w: failed to create queue: %v", ErrDeviceUnavailable, err)
	}
	queue.SetProperty("leaky", 2) // leak downstream, never block the tee

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("%w: failed to create appsink: %v", ErrDeviceUnavailable, err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only latest frame
	appsink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, capsfilter, tee, queue, appsink.Element)
	if err := gst.ElementLinkMany(src, convert, capsfilter, tee, queue, appsink.Element); err != nil {
		return fmt.Errorf("%w: failed to link pipeline elements: %v", ErrDeviceUnavailable, err)
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("%w: failed to start pipeline: %v", ErrDeviceUnavailable, err)
	}

	s.pipeline = pipeline
	s.tee = tee
	s.appsink = appsink
	s.opened = true

	slog.Info("camera: capture pipeline started",
		"device", s.cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"fps", s.cfg.FPS,
	)

	return nil
}

// onNewSample copies the latest buffer into the frame slot and wakes any
// waiter. Runs on a GStreamer streaming thread; must never block.
func (s *GstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("camera: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("camera: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("camera: empty buffer received")
		return gst.FlowOK
	}

	// Copy out; GStreamer reuses the buffer after the callback returns.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	s.mu.Lock()
	s.frameSeq++
	s.latest = types.Frame{
		Seq:       s.frameSeq,
		Timestamp: time.Now(),
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Data:      frameData,
		TraceID:   uuid.New().String(),
	}
	s.haveFrame = true
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	return gst.FlowOK
}

// LatestFrame waits for a frame newer than the previous call's result.
func (s *GstSource) LatestFrame(timeout time.Duration) (types.Frame, error) {
	deadline := time.Now().Add(timeout)

	s.mu.Lock()
	for {
		if !s.opened {
			s.mu.Unlock()
			return types.Frame{}, fmt.Errorf("%w: pipeline not running", ErrDeviceDisconnected)
		}
		if s.haveFrame && s.latest.Seq > s.lastDelivered {
			frame := s.latest
			s.lastDelivered = frame.Seq
			s.mu.Unlock()
			return frame, nil
		}
		notify := s.notify
		s.mu.Unlock()

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
		s.mu.Lock()
	}
}

// StartEncoder attaches the hardware-encode branch to the tee.
func (s *GstSource) StartEncoder(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return fmt.Errorf("%w: pipeline not running", ErrDeviceUnavailable)
	}
	if s.record != nil {
		return fmt.Errorf("%w: encoder already active", ErrInvalidState)
	}

	queue, err := gst.NewElement("queue")
	if err != nil {
		return fmt.Errorf("%w: failed to create record queue: %v", ErrDeviceUnavailable, err)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("%w: failed to create record videoconvert: %v", ErrDeviceUnavailable, err)
	}

	// Prefer the V4L2 stateful hardware encoder; fall back to x264 when
	// the platform has none.
	encoder, err := gst.NewElement("v4l2h264enc")
	if err != nil {
		slog.Warn("camera: v4l2h264enc not available, using software x264enc", "error", err)
		encoder, err = gst.NewElement("x264enc")
		if err != nil {
			return fmt.Errorf("%w: no H.264 encoder available: %v", ErrDeviceUnavailable, err)
		}
		encoder.SetProperty("bitrate", uint(s.cfg.BitrateBPS/1000)) // x264enc takes kbit/s
		encoder.SetProperty("speed-preset", 1)                      // ultrafast
	}

	parser, err := gst.NewElement("h264parse")
	if err != nil {
		return fmt.Errorf("%w: failed to create h264parse: %v", ErrDeviceUnavailable, err)
	}

	filesink, err := gst.NewElement("filesink")
	if err != nil {
		return fmt.Errorf("%w: failed to create filesink: %v", ErrDeviceUnavailable, err)
	}
	filesink.SetProperty("location", path)
	filesink.SetProperty("sync", false)

	s.pipeline.AddMany(queue, convert, encoder, parser, filesink)
	if err := gst.ElementLinkMany(queue, convert, encoder, parser, filesink); err != nil {
		return fmt.Errorf("%w: failed to link record branch: %v", ErrDeviceUnavailable, err)
	}

	teePad := s.tee.GetRequestPad("src_%u")
	if teePad == nil {
		return fmt.Errorf("%w: failed to request tee pad", ErrDeviceUnavailable)
	}
	queuePad := queue.GetStaticPad("sink")
	if ret := teePad.Link(queuePad); ret != gst.PadLinkOK {
		s.tee.ReleaseRequestPad(teePad)
		return fmt.Errorf("%w: failed to link tee to record branch: %v", ErrDeviceUnavailable, ret)
	}

	for _, el := range []*gst.Element{queue, convert, encoder, parser, filesink} {
		el.SyncStateWithParent()
	}

	s.record = &recordBranch{
		teePad:   teePad,
		queue:    queue,
		convert:  convert,
		encoder:  encoder,
		parser:   parser,
		filesink: filesink,
		path:     path,
	}

	slog.Info("camera: hardware encoder started", "path", path, "bitrate_bps", s.cfg.BitrateBPS)

	return nil
}

// StopEncoder flushes the record branch and detaches it from the tee.
func (s *GstSource) StopEncoder() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return fmt.Errorf("%w: encoder not active", ErrInvalidState)
	}
	branch := s.record
	s.record = nil

	// Detach from the tee first so the live capture path is unaffected,
	// then push EOS through the branch so the encoder flushes its tail.
	branch.teePad.Unlink(branch.queue.GetStaticPad("sink"))
	branch.queue.GetStaticPad("sink").SendEvent(gst.NewEOSEvent())

	elements := []*gst.Element{branch.queue, branch.convert, branch.encoder, branch.parser, branch.filesink}
	for _, el := range elements {
		el.SetState(gst.StateNull)
	}
	s.pipeline.RemoveMany(elements...)
	s.tee.ReleaseRequestPad(branch.teePad)

	slog.Info("camera: hardware encoder stopped", "path", branch.path)

	return nil
}

// Close stops the pipeline and releases all resources. Idempotent.
func (s *GstSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}

	if s.record != nil {
		slog.Warn("camera: closing with encoder still active", "path", s.record.path)
		s.record.queue.GetStaticPad("sink").SendEvent(gst.NewEOSEvent())
		s.record = nil
	}

	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		slog.Error("camera: failed to stop pipeline", "error", err)
	}
	s.pipeline = nil
	s.tee = nil
	s.appsink = nil
	s.opened = false
	s.haveFrame = false

	slog.Info("camera: capture pipeline stopped")

	return nil
}
