package liveproof

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// testHash derives frequencies [1243, 1551, 1392] and evaluated timings
// 480, 1594 and 2391 ms.
const testHash = "0x3f9a1c7be4d2085f6a1b93c0d47e2f58a9c3b1e07d6f4a2859e0c3b7a14d6f82"

var (
	testFreqs = []float64{1243, 1551, 1392}
	testTimes = []float64{0.480, 1.594, 2.391}
)

const (
	testRate     = 44100
	testFPS      = 30.0
	testDuration = 3.5
)

// synthAudio places a 150 ms tone at each start time. A frequency of 0 leaves
// that slot silent.
func synthAudio(freqs, starts []float64) []float64 {
	out := make([]float64, int(testDuration*testRate))
	for i, start := range starts {
		if freqs[i] == 0 {
			continue
		}
		from := int(start * testRate)
		to := from + int(0.15*testRate)
		for n := from; n < to && n < len(out); n++ {
			out[n] = 0.5 * math.Sin(2*math.Pi*freqs[i]*float64(n)/testRate)
		}
	}
	return out
}

// synthFrames flashes a 64x64 gray frame for 3 frames at each time.
func synthFrames(times []float64) []image.Image {
	n := int(testDuration * testFPS)
	bright := make(map[int]bool)
	for _, t := range times {
		start := int(math.Round(t * testFPS))
		for k := 0; k < 3; k++ {
			bright[start+k] = true
		}
	}
	frames := make([]image.Image, n)
	for i := range frames {
		img := image.NewGray(image.Rect(0, 0, 64, 64))
		y := uint8(20)
		if bright[i] {
			y = 220
		}
		for p := range img.Pix {
			img.Pix[p] = y
		}
		frames[i] = img
	}
	return frames
}

func testParams() Params {
	return Params{ROI: models.ROI{X: 0, Y: 0, Width: 64, Height: 64}}
}

func TestVerifySyntheticRecording(t *testing.T) {
	result, ev, err := Verify(testHash,
		DecodedAudio{Samples: synthAudio(testFreqs, testTimes), SampleRate: testRate},
		DecodedVideo{Frames: synthFrames(testTimes), FPS: testFPS},
		testParams(),
	)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Verified || result.Successes != 3 || result.Required != 3 {
		t.Fatalf("expected 3/3 verified, got %+v", result)
	}
	if len(ev.VideoEvents) != 3 {
		t.Errorf("expected 3 strobes, got %v", ev.VideoEvents)
	}
	if len(ev.AudioEvents) < 3 {
		t.Errorf("expected chirp detections, got %v", ev.AudioEvents)
	}
	for _, e := range ev.AudioEvents {
		if e.Modality != models.ModalityAudio {
			t.Errorf("audio event tagged %q", e.Modality)
		}
	}
	for i, e := range ev.VideoEvents {
		if i >= len(testTimes) {
			break
		}
		if e.Modality != models.ModalityVideo || math.Abs(e.Timestamp-testTimes[i]) > 0.1 {
			t.Errorf("video event %d = %+v, expected near %.2fs", i, e, testTimes[i])
		}
	}
	if ev.EffectiveFPS != testFPS || ev.ProbeErr != nil {
		t.Errorf("unexpected fps handling: %.2f, %v", ev.EffectiveFPS, ev.ProbeErr)
	}
	for i, slot := range result.Slots {
		if math.Abs(*slot.Audio-testTimes[i]) > 0.1 || math.Abs(*slot.Video-testTimes[i]) > 0.1 {
			t.Errorf("slot %d matched audio %.3f video %.3f, expected near %.3f", i, *slot.Audio, *slot.Video, testTimes[i])
		}
	}
}

func TestVerifyMissingChirpFails(t *testing.T) {
	freqs := []float64{testFreqs[0], 0, testFreqs[2]}
	result, _, err := Verify(testHash,
		DecodedAudio{Samples: synthAudio(freqs, testTimes), SampleRate: testRate},
		DecodedVideo{Frames: synthFrames(testTimes), FPS: testFPS},
		testParams(),
	)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Verified {
		t.Fatal("a missing chirp must not verify")
	}
	if result.Successes != 2 {
		t.Errorf("expected 2 consistent slots, got %d", result.Successes)
	}
	if result.Slots[1].Consistent {
		t.Error("middle slot should be inconsistent")
	}
}

func TestVerifyOffTargetChirpsFail(t *testing.T) {
	off := []float64{600, 600, 600}
	result, ev, err := Verify(testHash,
		DecodedAudio{Samples: synthAudio(off, testTimes), SampleRate: testRate},
		DecodedVideo{Frames: synthFrames(testTimes), FPS: testFPS},
		testParams(),
	)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Verified || len(ev.AudioEvents) != 0 {
		t.Errorf("off-target tones should yield nothing: verified=%t events=%v", result.Verified, ev.AudioEvents)
	}
}

func TestVerifyImplausibleRateUsesProbe(t *testing.T) {
	frames := synthFrames(testTimes)
	probe := func() (float64, error) { return testDuration, nil }

	result, ev, err := Verify(testHash,
		DecodedAudio{Samples: synthAudio(testFreqs, testTimes), SampleRate: testRate},
		DecodedVideo{Frames: frames, FPS: 1000, Probe: probe},
		testParams(),
	)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if math.Abs(ev.EffectiveFPS-float64(len(frames))/testDuration) > 1e-9 {
		t.Errorf("EffectiveFPS = %f", ev.EffectiveFPS)
	}
	if !result.Verified {
		t.Errorf("expected verification with corrected rate, got %+v", result)
	}
}

func TestVerifyProbeFailureFallsBack(t *testing.T) {
	probe := func() (float64, error) { return 0, errors.New("no duration") }
	_, ev, err := Verify(testHash,
		DecodedAudio{SampleRate: testRate},
		DecodedVideo{Frames: synthFrames(testTimes), FPS: 0, Probe: probe},
		testParams(),
	)
	if err != nil {
		t.Fatalf("probe failure must not be fatal: %v", err)
	}
	if ev.EffectiveFPS != 30 || !errors.Is(ev.ProbeErr, models.ErrDurationProbe) {
		t.Errorf("expected 30 fps fallback with ErrDurationProbe, got %.1f, %v", ev.EffectiveFPS, ev.ProbeErr)
	}
}

func TestVerifyErrors(t *testing.T) {
	tests := []struct {
		name string
		hash string
		roi  models.ROI
		want error
	}{
		{"short hash", "0x1234", models.ROI{Width: 10, Height: 10}, models.ErrInvalidChallengeHash},
		{"empty hash", "", models.ROI{Width: 10, Height: 10}, models.ErrInvalidChallengeHash},
		{"bad region", testHash, models.ROI{X: -50, Y: -50, Width: 10, Height: 10}, models.ErrInvalidRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := []image.Image{image.NewGray(image.Rect(0, 0, 32, 32))}
			_, _, err := Verify(tt.hash, DecodedAudio{}, DecodedVideo{Frames: frames, FPS: 30}, Params{ROI: tt.roi})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	result, ev, err := Verify(testHash, DecodedAudio{}, DecodedVideo{}, testParams())
	if err != nil {
		t.Fatalf("empty inputs should not error: %v", err)
	}
	if result.Verified || result.Required != 3 || len(ev.AudioEvents) != 0 || len(ev.VideoEvents) != 0 {
		t.Errorf("unexpected result for empty inputs: %+v", result)
	}
}
