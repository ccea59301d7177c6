package liveproof

import (
	"image"

	"github.com/himanishpuri/LiveProof/internal/luminance"
	"github.com/himanishpuri/LiveProof/pkg/models"
)

// VerifyRequest describes one uploaded recording.
type VerifyRequest struct {
	MediaPath     string
	ChallengeHash string
	PopAddress    string // PoP contract; falls back to the configured one

	// Window is the validity range the client claims. With a chain reader it
	// must agree with the contract; without one it is only recorded.
	Window *models.ChainChallenge

	ROI *models.ROI // overrides the configured region
}

// DecodedAudio is mono PCM normalized to [-1, 1].
type DecodedAudio struct {
	Samples    []float64
	SampleRate int
}

// DecodedVideo is a frame sequence with its nominal rate. Probe is called
// only when the nominal rate is implausible.
type DecodedVideo struct {
	Frames []image.Image
	FPS    float64
	Probe  luminance.DurationProbe
}

// Params tunes the core.
type Params struct {
	ROI         models.ROI
	Tolerance   float64
	ToleranceHz float64
}

// Evidence is what the detectors observed on the way to a verdict.
type Evidence struct {
	Challenge    models.Challenge
	AudioEvents  []models.SignalEvent
	VideoEvents  []models.SignalEvent
	EffectiveFPS float64
	ProbeErr     error // non-nil when the 30 fps fallback was used
}

// Status reports which collaborators are wired.
type Status struct {
	Chain   bool `json:"chain"`
	Store   bool `json:"content_store"`
	History bool `json:"history"`
}
