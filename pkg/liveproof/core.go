package liveproof

import (
	"fmt"

	"github.com/himanishpuri/LiveProof/internal/alignment"
	"github.com/himanishpuri/LiveProof/internal/challenge"
	"github.com/himanishpuri/LiveProof/internal/luminance"
	"github.com/himanishpuri/LiveProof/internal/spectral"
	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Verify is the pure core: derive the challenge from hash, detect chirps
// and flashes in the decoded streams, and align them. It performs no I/O
// apart from the optional duration probe carried by v.
func Verify(hash string, a DecodedAudio, v DecodedVideo, p Params) (models.VerificationResult, Evidence, error) {
	if p.Tolerance <= 0 {
		p.Tolerance = alignment.DefaultTolerance
	}
	if p.ToleranceHz <= 0 {
		p.ToleranceHz = spectral.DefaultToleranceHz
	}

	ch, err := challenge.Derive(hash)
	if err != nil {
		return models.VerificationResult{}, Evidence{}, err
	}
	ev := Evidence{Challenge: ch}

	chirps := spectral.DetectChirps(a.Samples, a.SampleRate, spectral.IntTargets(ch.Frequencies), p.ToleranceHz)
	ev.AudioEvents = models.NewEvents(models.ModalityAudio, chirps)

	det, err := luminance.Detect(v.Frames, p.ROI, v.FPS, v.Probe)
	if err != nil {
		return models.VerificationResult{}, ev, fmt.Errorf("strobe detection: %w", err)
	}
	ev.VideoEvents = models.NewEvents(models.ModalityVideo, det.Timestamps)
	ev.EffectiveFPS = det.FPS
	ev.ProbeErr = det.ProbeErr

	result := alignment.Match(ch.ExpectedTimes(), chirps, det.Timestamps, p.Tolerance)
	return result, ev, nil
}
