package types

import "time"

// Frame represents a single captured video frame.
//
// Frames are produced by the camera source and are read-only to all
// consumers. Only the latest frame matters; a new frame supersedes the
// previous one rather than mutating it.
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the raw pixel data (RGB24, 3 bytes per pixel)
	Data []byte
	// TraceID is a unique identifier for tracing a frame through the pipeline
	TraceID string
}

// PreviewFrame is a JPEG-encoded preview derived from a Frame.
//
// PreviewFrames are immutable once published. The publisher swaps the
// current handle atomically; readers never observe a partially written
// buffer.
type PreviewFrame struct {
	// Seq is the publish sequence number (monotonic per publisher)
	Seq uint64
	// Timestamp is the capture time of the source frame
	Timestamp time.Time
	// Width of the encoded image in pixels
	Width int
	// Height of the encoded image in pixels
	Height int
	// JPEG contains the encoded image bytes
	JPEG []byte
}
