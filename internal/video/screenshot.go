package video

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// MaxScreenshotWidth bounds the proof image width; height keeps the aspect ratio.
const MaxScreenshotWidth = 1024

// Screenshot grabs one JPEG frame at offset seconds into the clip.
func Screenshot(ctx context.Context, ffmpegPath, path string, offset float64) ([]byte, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if offset < 0 {
		offset = 0
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", MaxScreenshotWidth),
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("screenshot: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screenshot: no frame at %.3fs", offset)
	}
	return out, nil
}

// MidpointOffset picks the middle of a clip, or its first frame when the
// duration is unknown.
func MidpointOffset(durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	return durationSec / 2
}
