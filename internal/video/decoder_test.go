package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

const ffprobeJSON = `{"format":{"filename":"clip.mp4","duration":"5.0","format_name":"mov,mp4"},` +
	`"streams":[{"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"30/1"}]}`

// fakeTools writes stand-in ffprobe and ffmpeg scripts. The ffmpeg script
// records its arguments and prints frameBytes zero bytes.
func fakeTools(t *testing.T, frameBytes int) (cfg DecodeConfig, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")

	ffprobe := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'EOF'\n" + ffprobeJSON + "\nEOF\n"
	if err := os.WriteFile(ffprobe, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write ffprobe: %v", err)
	}

	ffmpeg := filepath.Join(dir, "ffmpeg")
	script = fmt.Sprintf("#!/bin/sh\necho \"$@\" > %s\nhead -c %d /dev/zero\n", argsFile, frameBytes)
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write ffmpeg: %v", err)
	}
	return DecodeConfig{FFmpegPath: ffmpeg, FFprobePath: ffprobe}, argsFile
}

func TestClampRegion(t *testing.T) {
	tests := []struct {
		name    string
		roi     *models.ROI
		want    models.ROI
		wantErr bool
	}{
		{"full frame", nil, models.ROI{Width: 1920, Height: 1080}, false},
		{"inside", &models.ROI{X: 100, Y: 100, Width: 200, Height: 200}, models.ROI{X: 100, Y: 100, Width: 200, Height: 200}, false},
		{"overhangs edge", &models.ROI{X: 1900, Y: 1000, Width: 200, Height: 200}, models.ROI{X: 1900, Y: 1000, Width: 20, Height: 80}, false},
		{"outside", &models.ROI{X: 2000, Y: 0, Width: 10, Height: 10}, models.ROI{}, true},
		{"zero size", &models.ROI{X: 0, Y: 0, Width: 0, Height: 10}, models.ROI{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clampRegion(tt.roi, 1920, 1080)
			if tt.wantErr {
				if !errors.Is(err, models.ErrInvalidRegion) {
					t.Errorf("expected ErrInvalidRegion, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("clampRegion failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("clampRegion = %+v, expected %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeCropsBeforeReading(t *testing.T) {
	const frames = 150
	roi := models.ROI{X: 100, Y: 50, Width: 8, Height: 4}
	cfg, argsFile := fakeTools(t, frames*roi.Width*roi.Height)
	cfg.ROI = &roi

	clip, err := Decode(context.Background(), "clip.mp4", cfg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(clip.Frames) != frames {
		t.Fatalf("expected %d frames, got %d", frames, len(clip.Frames))
	}
	if b := clip.Frames[0].Bounds(); b.Dx() != roi.Width || b.Dy() != roi.Height {
		t.Errorf("frame bounds %v, expected %dx%d", b, roi.Width, roi.Height)
	}
	if clip.Region != roi {
		t.Errorf("Region = %+v, expected %+v", clip.Region, roi)
	}
	if got := clip.FrameROI(); got != (models.ROI{Width: 8, Height: 4}) {
		t.Errorf("FrameROI = %+v", got)
	}
	if clip.Meta.Width != 1920 || clip.Meta.Height != 1080 {
		t.Errorf("Meta size = %dx%d, expected source size", clip.Meta.Width, clip.Meta.Height)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("ffmpeg args not recorded: %v", err)
	}
	if !strings.Contains(string(args), "crop=8:4:100:50:exact=1,format=gray") {
		t.Errorf("ffmpeg not asked to crop: %s", args)
	}
}

func TestDecodeRejectsRegionOutsideFrame(t *testing.T) {
	cfg, argsFile := fakeTools(t, 0)
	cfg.ROI = &models.ROI{X: 4000, Y: 0, Width: 10, Height: 10}

	_, err := Decode(context.Background(), "clip.mp4", cfg)
	if !errors.Is(err, models.ErrInvalidRegion) {
		t.Fatalf("expected ErrInvalidRegion, got %v", err)
	}
	if _, err := os.Stat(argsFile); err == nil {
		t.Error("ffmpeg ran for a region outside the frame")
	}
}

func TestDecodeEmptyStream(t *testing.T) {
	cfg, _ := fakeTools(t, 0)

	clip, err := Decode(context.Background(), "clip.mp4", cfg)
	if err != nil {
		t.Fatalf("expected an empty clip, got error %v", err)
	}
	if len(clip.Frames) != 0 {
		t.Errorf("expected no frames, got %d", len(clip.Frames))
	}
	if clip.Meta.FrameRate != 30 {
		t.Errorf("FrameRate = %f, expected 30", clip.Meta.FrameRate)
	}
}

func TestReadGrayFrames(t *testing.T) {
	const w, h = 4, 2
	raw := make([]byte, w*h*3+5) // three frames plus a partial one
	for i := range raw {
		raw[i] = byte(i / (w * h) * 100)
	}

	frames, err := readGrayFrames(bytes.NewReader(raw), w, h, 0)
	if err != nil {
		t.Fatalf("readGrayFrames failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		g, ok := f.(*image.Gray)
		if !ok {
			t.Fatalf("frame %d is %T, expected *image.Gray", i, f)
		}
		if g.Bounds().Dx() != w || g.Bounds().Dy() != h {
			t.Errorf("frame %d bounds %v", i, g.Bounds())
		}
		if got := g.GrayAt(1, 1).Y; got != byte(i*100) {
			t.Errorf("frame %d pixel = %d, expected %d", i, got, i*100)
		}
	}
}

func TestReadGrayFramesCap(t *testing.T) {
	raw := make([]byte, 10*4)
	frames, err := readGrayFrames(bytes.NewReader(raw), 2, 2, 4)
	if err != nil {
		t.Fatalf("readGrayFrames failed: %v", err)
	}
	if len(frames) != 4 {
		t.Errorf("expected cap of 4 frames, got %d", len(frames))
	}
}

func TestDecodeGeneratedClip(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found on PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found on PATH")
	}

	clip := filepath.Join(t.TempDir(), "clip.mkv")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "color=c=gray:s=160x120:r=10:d=1", "-c:v", "ffv1", clip)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Fatalf("Failed to generate clip: %v (%s)", err, out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	decoded, err := Decode(ctx, clip, DecodeConfig{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Meta.Width != 160 || decoded.Meta.Height != 120 {
		t.Errorf("size = %dx%d", decoded.Meta.Width, decoded.Meta.Height)
	}
	if n := len(decoded.Frames); n < 9 || n > 11 {
		t.Errorf("expected ~10 frames, got %d", n)
	}
	if decoded.Meta.FrameRate != 10 {
		t.Errorf("FrameRate = %f, expected 10", decoded.Meta.FrameRate)
	}

	cropped, err := Decode(ctx, clip, DecodeConfig{ROI: &models.ROI{X: 150, Y: 100, Width: 40, Height: 40}})
	if err != nil {
		t.Fatalf("Decode with region failed: %v", err)
	}
	if b := cropped.Frames[0].Bounds(); b.Dx() != 10 || b.Dy() != 20 {
		t.Errorf("cropped frame bounds %v, expected 10x20", b)
	}

	jpg, err := Screenshot(ctx, "", clip, MidpointOffset(decoded.Meta.DurationSec))
	if err != nil {
		t.Fatalf("Screenshot failed: %v", err)
	}
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Error("screenshot is not a JPEG")
	}
}
