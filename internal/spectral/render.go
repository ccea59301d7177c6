package spectral

import (
	"errors"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"
)

// RenderConfig controls the diagnostic spectrogram image.
type RenderConfig struct {
	Width  int // pixels along time
	Height int // frequency bins drawn
}

// DefaultRenderConfig matches a 5 s clip at a readable resolution.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{Width: 2048, Height: 512}
}

// RenderPNG draws a linear-magnitude spectrogram of samples and saves it as
// a PNG at outputPath. It is a diagnosis aid for clips whose chirps were
// not detected.
func RenderPNG(samples []float64, sampleRate int, outputPath string, cfg RenderConfig) error {
	if len(samples) == 0 {
		return errors.New("no samples to render")
	}
	if sampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg = DefaultRenderConfig()
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, cfg.Width, cfg.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude, linear scale.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(cfg.Height),
		false,
		false,
		true,
		false,
	)

	return spectrogram.SavePng(img, outputPath)
}
