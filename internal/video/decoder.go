package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// DefaultMaxFrames caps decoding at roughly a minute of 30 fps footage.
const DefaultMaxFrames = 1800

type DecodeConfig struct {
	FFmpegPath  string // defaults to "ffmpeg"
	FFprobePath string // defaults to "ffprobe"
	MaxFrames   int

	// ROI crops frames inside ffmpeg, so only the region is held in memory.
	// nil keeps the full frame.
	ROI *models.ROI
}

// Clip is a decoded video: grayscale frames cropped to Region plus the
// container metadata used to interpret them.
type Clip struct {
	Frames []image.Image
	Meta   Metadata
	Region models.ROI // source-frame area covered by Frames
}

// FrameROI is the whole of a decoded frame, for detectors that work on
// already-cropped frames.
func (c *Clip) FrameROI() models.ROI {
	return models.ROI{Width: c.Region.Width, Height: c.Region.Height}
}

// clampRegion intersects roi with a width x height frame. A nil roi selects
// the full frame.
func clampRegion(roi *models.ROI, width, height int) (models.ROI, error) {
	frame := image.Rect(0, 0, width, height)
	if roi == nil {
		return models.ROI{Width: width, Height: height}, nil
	}
	r := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height).Intersect(frame)
	if roi.Width <= 0 || roi.Height <= 0 || r.Empty() {
		return models.ROI{}, fmt.Errorf("%w: roi %+v outside %dx%d frame", models.ErrInvalidRegion, *roi, width, height)
	}
	return models.ROI{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}, nil
}

// Decode probes a media file and reads every frame as 8-bit luma. The
// luminance detector only needs Y, so ffmpeg crops and converts to gray
// directly. A stream that yields no frames gives an empty Clip.
func Decode(ctx context.Context, path string, cfg DecodeConfig) (*Clip, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}

	meta, err := Probe(ctx, cfg.FFprobePath, path)
	if err != nil {
		return nil, err
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", models.ErrVideoDecode, meta.Width, meta.Height)
	}
	region, err := clampRegion(cfg.ROI, meta.Width, meta.Height)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		cfg.FFmpegPath,
		"-v", "error",
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("crop=%d:%d:%d:%d:exact=1,format=gray", region.Width, region.Height, region.X, region.Y),
		"-frames:v", fmt.Sprint(cfg.MaxFrames),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"pipe:1",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrVideoDecode, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", models.ErrVideoDecode, err)
	}

	frames, readErr := readGrayFrames(bufio.NewReaderSize(stdout, 1<<20), region.Width, region.Height, cfg.MaxFrames)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if readErr != nil {
		return nil, readErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v (%s)", models.ErrVideoDecode, waitErr, strings.TrimSpace(stderr.String()))
	}

	return &Clip{Frames: frames, Meta: *meta, Region: region}, nil
}

// readGrayFrames slices a raw gray8 stream into frames. A trailing partial
// frame is dropped.
func readGrayFrames(r io.Reader, width, height, maxFrames int) ([]image.Image, error) {
	size := width * height
	var frames []image.Image
	for maxFrames <= 0 || len(frames) < maxFrames {
		img := image.NewGray(image.Rect(0, 0, width, height))
		_, err := io.ReadFull(r, img.Pix[:size])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading frames: %v", models.ErrVideoDecode, err)
		}
		frames = append(frames, img)
	}
	// Drain so ffmpeg is never blocked on a full pipe.
	_, _ = io.Copy(io.Discard, r)
	return frames, nil
}
