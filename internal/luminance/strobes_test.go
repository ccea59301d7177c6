package luminance

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

var flashROI = models.ROI{X: 100, Y: 100, Width: 200, Height: 200}

// syntheticClip builds a dark 30 fps clip with 3-frame white flashes inside
// flashROI starting at each of flashStarts (seconds).
func syntheticClip(durSec float64, fps int, flashStarts []float64) []image.Image {
	n := int(durSec * float64(fps))
	flashFrames := make(map[int]bool)
	for _, ts := range flashStarts {
		start := int(ts * float64(fps))
		for i := start; i < start+3; i++ {
			flashFrames[i] = true
		}
	}

	frames := make([]image.Image, n)
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 640, 480))
		if flashFrames[i] {
			for y := flashROI.Y; y < flashROI.Y+flashROI.Height; y++ {
				for x := flashROI.X; x < flashROI.X+flashROI.Width; x++ {
					img.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
		frames[i] = img
	}
	return frames
}

func TestDetectStrobesSyntheticFlashes(t *testing.T) {
	truth := []float64{1.0, 2.5, 4.0}
	frames := syntheticClip(5.0, 30, truth)

	got, err := DetectStrobes(frames, flashROI, 30, nil)
	if err != nil {
		t.Fatalf("DetectStrobes failed: %v", err)
	}
	if len(got) != len(truth) {
		t.Fatalf("expected %d strobes, got %v", len(truth), got)
	}
	for i, ts := range got {
		if math.Abs(ts-truth[i]) > 0.1 {
			t.Errorf("strobe %d at %.3fs, expected %.1fs", i, ts, truth[i])
		}
		if ts <= WarmupSeconds {
			t.Errorf("strobe %d at %.3fs is inside warm-up", i, ts)
		}
	}
}

func TestDetectStrobesDropsWarmup(t *testing.T) {
	frames := syntheticClip(3.0, 30, []float64{0.05, 1.5})
	got, err := DetectStrobes(frames, flashROI, 30, nil)
	if err != nil {
		t.Fatalf("DetectStrobes failed: %v", err)
	}
	if len(got) != 1 || math.Abs(got[0]-1.5) > 0.1 {
		t.Errorf("expected only the 1.5s strobe, got %v", got)
	}
}

func TestDetectStrobesEmpty(t *testing.T) {
	got, err := DetectStrobes(nil, flashROI, 30, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no strobes, got %v", got)
	}
}

func TestDetectStrobesNearConstantFootage(t *testing.T) {
	frames := make([]image.Image, 90)
	for i := range frames {
		img := image.NewGray(image.Rect(0, 0, 320, 240))
		// one grey level of flicker, well under the threshold floor
		level := uint8(120 + i%2)
		for p := range img.Pix {
			img.Pix[p] = level
		}
		frames[i] = img
	}
	got, err := DetectStrobes(frames, models.ROI{X: 0, Y: 0, Width: 320, Height: 240}, 30, nil)
	if err != nil {
		t.Fatalf("DetectStrobes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no strobes in near-constant footage, got %v", got)
	}
}

func TestDetectStrobesInvalidRegion(t *testing.T) {
	frames := syntheticClip(1.0, 30, nil)
	_, err := DetectStrobes(frames, models.ROI{X: 1000, Y: 1000, Width: 10, Height: 10}, 30, nil)
	if !errors.Is(err, models.ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion, got %v", err)
	}
}

func TestDetectImplausibleFrameRate(t *testing.T) {
	frames := syntheticClip(5.0, 30, []float64{1.0, 2.5, 4.0})

	det, err := Detect(frames, flashROI, 1000, func() (float64, error) { return 5.0, nil })
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.ProbeErr != nil {
		t.Errorf("unexpected probe error: %v", det.ProbeErr)
	}
	if math.Abs(det.FPS-30) > 1e-9 {
		t.Errorf("effective fps = %f, expected 30", det.FPS)
	}
	if len(det.Timestamps) != 3 {
		t.Errorf("expected 3 strobes, got %v", det.Timestamps)
	}
}

func TestEffectiveFPS(t *testing.T) {
	failing := func() (float64, error) { return 0, errors.New("no duration") }
	tests := []struct {
		name     string
		nominal  float64
		frames   int
		probe    DurationProbe
		want     float64
		fallback bool
	}{
		{"plausible", 29.97, 150, nil, 29.97, false},
		{"limit", 100, 150, nil, 100, false},
		{"timebase reported", 1000, 150, func() (float64, error) { return 6.0, nil }, 25, false},
		{"zero rate", 0, 120, func() (float64, error) { return 4.0, nil }, 30, false},
		{"probe fails", 1000, 150, failing, FallbackFPS, true},
		{"no probe", -1, 150, nil, FallbackFPS, true},
		{"zero duration", 1000, 150, func() (float64, error) { return 0, nil }, FallbackFPS, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectiveFPS(tt.nominal, tt.frames, tt.probe)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("fps = %f, expected %f", got, tt.want)
			}
			if tt.fallback != (err != nil) {
				t.Errorf("fallback error = %v, expected fallback=%v", err, tt.fallback)
			}
			if err != nil && !errors.Is(err, models.ErrDurationProbe) {
				t.Errorf("expected ErrDurationProbe, got %v", err)
			}
		})
	}
}

func TestMeanLuminanceColorFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	got, err := MeanLuminance(img, models.ROI{X: 1, Y: 1, Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("MeanLuminance failed: %v", err)
	}
	if got != 255 {
		t.Errorf("mean luminance = %f, expected 255", got)
	}
}

func TestDiffAndStdDev(t *testing.T) {
	d := Diff([]float64{1, 4, 4, 2})
	want := []float64{0, 3, 0, -2}
	for i := range want {
		if d[i] != want[i] {
			t.Fatalf("Diff = %v, expected %v", d, want)
		}
	}
	if got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got != 2 {
		t.Errorf("StdDev = %f, expected 2", got)
	}
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev(nil) = %f", got)
	}
}
