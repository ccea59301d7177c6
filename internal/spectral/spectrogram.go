package spectral

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Tunables
const (
	WindowSize = 2048
	HopSize    = 512 // 75% overlap
)

// MagnitudeSpectrum converts a complex spectrum into magnitudes for the
// non-negative frequencies, bins 0..n/2 inclusive.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	if half > len(spectrum) {
		half = len(spectrum)
	}
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes a time-major magnitude spectrogram: spectrogram[frame][bin].
// Frames are centered: frame i covers samples around i*hopSize, the signal
// being zero-padded by windowSize/2 on both ends. An empty input yields no frames.
func STFT(samples []float64, windowSize, hopSize int, win []float64) ([][]float64, error) {
	if windowSize <= 0 || hopSize <= 0 {
		return nil, errors.New("window and hop size must be positive")
	}
	if len(win) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) == 0 {
		return nil, nil
	}

	pad := windowSize / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	nFrames := 1 + (len(padded)-windowSize)/hopSize
	spectrogram := make([][]float64, 0, nFrames)
	frame := make([]float64, windowSize)
	for i := 0; i < nFrames; i++ {
		start := i * hopSize
		for j := 0; j < windowSize; j++ {
			frame[j] = padded[start+j] * win[j]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram, nil
}

// ComputeSpectrogram runs a Hann-windowed STFT with the package defaults
// when windowSize or hopSize are zero.
func ComputeSpectrogram(samples []float64, windowSize, hopSize int) ([][]float64, error) {
	if windowSize == 0 {
		windowSize = WindowSize
	}
	if hopSize == 0 {
		hopSize = HopSize
	}
	return STFT(samples, windowSize, hopSize, window.Hann(windowSize))
}

// BinFrequency converts an FFT bin index to Hz.
func BinFrequency(bin, sampleRate, windowSize int) float64 {
	return float64(bin) * float64(sampleRate) / float64(windowSize)
}

// FrameTime converts a frame index to its offset in seconds.
func FrameTime(frame, sampleRate, hopSize int) float64 {
	return float64(frame) * float64(hopSize) / float64(sampleRate)
}
