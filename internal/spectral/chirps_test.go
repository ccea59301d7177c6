package spectral

import (
	"math"
	"path/filepath"
	"testing"
)

const testRate = 44100

// tone returns a buffer of durSec seconds of silence with a sine at freq
// between start and start+length seconds.
func tone(durSec, start, length, freq, amp float64) []float64 {
	out := make([]float64, int(durSec*testRate))
	from := int(start * testRate)
	to := int((start + length) * testRate)
	for i := from; i < to && i < len(out); i++ {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func TestDetectChirpsPureTone(t *testing.T) {
	tests := []struct {
		freq  float64
		start float64
	}{
		{900, 1.0},
		{1200, 2.5},
		{1500, 4.0},
		{1999, 2.0},
	}

	step := float64(HopSize) / testRate
	for _, tt := range tests {
		samples := tone(5.0, tt.start, 0.1, tt.freq, 0.5)
		got := DetectChirps(samples, testRate, []float64{tt.freq}, DefaultToleranceHz)
		if len(got) == 0 {
			t.Errorf("%.0f Hz at %.1fs: no detections", tt.freq, tt.start)
			continue
		}
		near := false
		halfWindow := float64(WindowSize/2) / testRate
		for _, ts := range got {
			if ts >= tt.start-step && ts <= tt.start+0.1+step {
				near = true
			}
			if ts < tt.start-halfWindow-step || ts > tt.start+0.1+halfWindow+step {
				t.Errorf("%.0f Hz at %.1fs: detection %.3fs far from tone", tt.freq, tt.start, ts)
			}
		}
		if !near {
			t.Errorf("%.0f Hz at %.1fs: no detection within one step of the tone: %v", tt.freq, tt.start, got)
		}
	}
}

func TestDetectChirpsSilence(t *testing.T) {
	samples := make([]float64, 5*testRate)
	if got := DetectChirps(samples, testRate, []float64{900, 1200, 1500}, 0); len(got) != 0 {
		t.Errorf("expected no detections in silence, got %v", got)
	}
}

func TestDetectChirpsEmpty(t *testing.T) {
	if got := DetectChirps(nil, testRate, []float64{900}, 50); got != nil {
		t.Errorf("expected nil for empty buffer, got %v", got)
	}
}

func TestDetectChirpsIgnoresOffTarget(t *testing.T) {
	samples := tone(3.0, 1.0, 0.2, 600, 0.5)
	if got := DetectChirps(samples, testRate, []float64{900, 1200}, 50); len(got) != 0 {
		t.Errorf("expected no detections for a 600 Hz tone, got %v", got)
	}
}

func TestDetectChirpsSequenceAscending(t *testing.T) {
	samples := tone(5.0, 1.0, 0.1, 900, 0.5)
	second := tone(5.0, 2.5, 0.1, 1200, 0.5)
	third := tone(5.0, 4.0, 0.1, 1500, 0.5)
	for i := range samples {
		samples[i] += second[i] + third[i]
	}

	got := DetectChirps(samples, testRate, []float64{900, 1200, 1500}, 50)
	if len(got) < 3 {
		t.Fatalf("expected detections for all three chirps, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("timestamps not ascending: %v", got)
		}
	}
	for _, want := range []float64{1.0, 2.5, 4.0} {
		found := false
		for _, ts := range got {
			if math.Abs(ts-want-0.05) <= 0.1 {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no detection near %.1fs in %v", want, got)
		}
	}
}

func TestSTFTFrameCount(t *testing.T) {
	samples := make([]float64, 10*HopSize+7)
	spec, err := ComputeSpectrogram(samples, 0, 0)
	if err != nil {
		t.Fatalf("ComputeSpectrogram failed: %v", err)
	}
	if want := 1 + len(samples)/HopSize; len(spec) != want {
		t.Errorf("got %d frames, expected %d", len(spec), want)
	}
	if len(spec[0]) != WindowSize/2+1 {
		t.Errorf("got %d bins, expected %d", len(spec[0]), WindowSize/2+1)
	}
}

func TestSTFTRejectsBadWindow(t *testing.T) {
	if _, err := STFT(make([]float64, 4096), WindowSize, HopSize, make([]float64, 10)); err == nil {
		t.Error("expected error for mismatched window length")
	}
}

func TestBinFrequency(t *testing.T) {
	if got := BinFrequency(56, 44100, 2048); math.Abs(got-1205.859375) > 1e-9 {
		t.Errorf("BinFrequency = %f", got)
	}
	if got := FrameTime(86, 44100, 512); math.Abs(got-0.998458) > 1e-5 {
		t.Errorf("FrameTime = %f", got)
	}
}

func TestRenderPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spec.png")
	if err := RenderPNG(tone(1.0, 0.2, 0.3, 1000, 0.5), testRate, out, RenderConfig{Width: 256, Height: 64}); err != nil {
		t.Fatalf("RenderPNG failed: %v", err)
	}
	if err := RenderPNG(nil, testRate, out, RenderConfig{}); err == nil {
		t.Error("expected error for empty samples")
	}
}
