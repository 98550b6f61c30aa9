package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// remuxTimeout bounds the external ffmpeg invocation. Stream copy of a
// short clip completes in well under this; a hung ffmpeg must not leak.
const remuxTimeout = 30 * time.Second

// CheckFFmpeg verifies ffmpeg is installed and reachable on PATH.
func CheckFFmpeg() error {
	if err := exec.Command("ffmpeg", "-version").Run(); err != nil {
		return fmt.Errorf("recorder: ffmpeg is not installed or not in PATH: %w", err)
	}
	return nil
}

// FFmpegRemux wraps the raw H.264 elementary stream into an MP4 container
// without re-encoding. This is the default Finalizer.
func FFmpegRemux(ctx context.Context, rawPath, clipPath string, fps int) error {
	ctx, cancel := context.WithTimeout(ctx, remuxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", rawPath,
		"-c", "copy",
		clipPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		slog.Debug("recorder: ffmpeg output", "output", string(output))
		return fmt.Errorf("recorder: ffmpeg remux failed: %w", err)
	}
	return nil
}
