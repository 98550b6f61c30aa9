// Package preview derives the low-latency JPEG stream from captured frames.
//
// On every capture-loop tick the pipeline downsamples the current frame to
// the preview resolution, overlays live telemetry text, encodes to JPEG and
// publishes the result. The pipeline never blocks capture: a slow encode
// only delays the next tick, and publishing swaps an immutable handle so
// mid-read consumers never observe a torn buffer.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/zredlined/frc-ai-camera/internal/config"
	"github.com/zredlined/frc-ai-camera/internal/types"
)

// Pipeline converts raw frames into published preview JPEGs.
type Pipeline struct {
	width   int
	height  int
	quality int
}

// NewPipeline creates a preview pipeline at the configured resolution and
// JPEG quality.
func NewPipeline(cfg config.PreviewConfig) *Pipeline {
	return &Pipeline{
		width:   cfg.Width,
		height:  cfg.Height,
		quality: cfg.JPEGQuality,
	}
}

// Render downsamples the frame, overlays the FPS readout and recording
// indicator, and encodes the result as a JPEG preview frame.
func (p *Pipeline) Render(frame types.Frame, fps float64, recording bool) (*types.PreviewFrame, error) {
	img, err := scaleRGB24(frame.Data, frame.Width, frame.Height, p.width, p.height)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	drawOverlay(img, fps, recording)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("preview: jpeg encode failed: %w", err)
	}

	return &types.PreviewFrame{
		Timestamp: frame.Timestamp,
		Width:     p.width,
		Height:    p.height,
		JPEG:      buf.Bytes(),
	}, nil
}

// scaleRGB24 downsamples a raw RGB24 buffer to dw x dh using
// nearest-neighbor sampling. Quality is secondary to speed here; the
// preview is a monitoring aid, not an archival artifact.
func scaleRGB24(data []byte, sw, sh, dw, dh int) (*image.RGBA, error) {
	if sw <= 0 || sh <= 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", sw, sh)
	}
	if len(data) < sw*sh*3 {
		return nil, fmt.Errorf("short frame buffer: got %d bytes, need %d", len(data), sw*sh*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		srcY := y * sh / dh
		srcRow := srcY * sw * 3
		dstRow := y * img.Stride
		for x := 0; x < dw; x++ {
			srcX := x * sw / dw
			si := srcRow + srcX*3
			di := dstRow + x*4
			img.Pix[di] = data[si]
			img.Pix[di+1] = data[si+1]
			img.Pix[di+2] = data[si+2]
			img.Pix[di+3] = 0xff
		}
	}
	return img, nil
}
