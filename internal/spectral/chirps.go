package spectral

import "math"

// DefaultToleranceHz is how far a spectral peak may sit from a target
// frequency and still count as that chirp.
const DefaultToleranceHz = 50.0

// peakToMeanRatio separates a narrow tone from broadband noise: the peak bin
// must exceed this multiple of the frame's mean magnitude.
const peakToMeanRatio = 2.0

// DetectChirps returns the timestamps (seconds) of every analysis window
// whose dominant frequency lies within toleranceHz of one of targets.
//
// Each window yields at most one detection. No clustering or deduplication
// is applied, so a sustained tone produces a run of consecutive timestamps;
// the matcher's tolerance window absorbs them. A tolerance <= 0 selects
// DefaultToleranceHz.
func DetectChirps(samples []float64, sampleRate int, targets []float64, toleranceHz float64) []float64 {
	if len(samples) == 0 || sampleRate <= 0 || len(targets) == 0 {
		return nil
	}
	if toleranceHz <= 0 {
		toleranceHz = DefaultToleranceHz
	}

	spec, err := ComputeSpectrogram(samples, WindowSize, HopSize)
	if err != nil {
		return nil
	}

	var detected []float64
	for i, frame := range spec {
		peakIdx, peakMag, mean := frameStats(frame)
		if peakMag <= mean*peakToMeanRatio {
			continue
		}
		peakFreq := BinFrequency(peakIdx, sampleRate, WindowSize)
		for _, target := range targets {
			if math.Abs(peakFreq-target) < toleranceHz {
				detected = append(detected, FrameTime(i, sampleRate, HopSize))
				break
			}
		}
	}
	return detected
}

// frameStats returns the argmax bin (first on ties), its magnitude and the
// mean magnitude across all bins.
func frameStats(frame []float64) (int, float64, float64) {
	if len(frame) == 0 {
		return 0, 0, 0
	}
	peakIdx := 0
	peakMag := frame[0]
	var sum float64
	for i, m := range frame {
		sum += m
		if m > peakMag {
			peakMag = m
			peakIdx = i
		}
	}
	return peakIdx, peakMag, sum / float64(len(frame))
}

// IntTargets converts challenge frequencies to detector targets.
func IntTargets(freqs []int) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = float64(f)
	}
	return out
}
