package luminance

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Tunables
const (
	// MinThreshold is the floor of the adaptive peak threshold. Near-constant
	// footage has a difference std of ~0.
	MinThreshold = 10.0
	// StdMultiplier scales the difference std into the peak threshold.
	StdMultiplier = 3.0
	// SeparationSeconds is the minimum gap between two accepted flashes.
	SeparationSeconds = 0.4
	// WarmupSeconds discards peaks at or before this time (encoder start-up).
	WarmupSeconds = 0.1

	// MaxPlausibleFPS bounds the nominal frame rate. Some streaming
	// containers report their timebase (e.g. 1000) instead.
	MaxPlausibleFPS = 100.0
	FallbackFPS     = 30.0
)

// DurationProbe reports the clip duration in seconds.
type DurationProbe func() (float64, error)

// Detection carries the strobe timestamps together with the intermediate
// values that produced them.
type Detection struct {
	Timestamps []float64 // seconds, ascending
	FPS        float64   // effective frame rate used for conversion
	Threshold  float64   // adaptive peak height
	Luminance  []float64 // per-frame mean ROI luminance
	ProbeErr   error     // non-nil when the 30 fps fallback was taken
}

// DetectStrobes returns the timestamps of luminance spikes inside roi.
func DetectStrobes(frames []image.Image, roi models.ROI, nominalFPS float64, probe DurationProbe) ([]float64, error) {
	det, err := Detect(frames, roi, nominalFPS, probe)
	if err != nil {
		return nil, err
	}
	return det.Timestamps, nil
}

// Detect runs strobe detection over decoded frames.
func Detect(frames []image.Image, roi models.ROI, nominalFPS float64, probe DurationProbe) (Detection, error) {
	if len(frames) == 0 {
		return Detection{}, nil
	}
	lum, err := Series(frames, roi)
	if err != nil {
		return Detection{}, err
	}
	fps, probeErr := EffectiveFPS(nominalFPS, len(frames), probe)
	det := DetectInSeries(lum, fps)
	det.ProbeErr = probeErr
	return det, nil
}

// DetectInSeries finds flashes in an already computed luminance series
// sampled at fps frames per second.
func DetectInSeries(lum []float64, fps float64) Detection {
	det := Detection{FPS: fps, Luminance: lum}
	if len(lum) == 0 || fps <= 0 {
		return det
	}

	diff := Diff(lum)
	det.Threshold = math.Max(MinThreshold, StdMultiplier*StdDev(diff))

	peaks := FindPeaks(diff, det.Threshold, SeparationSeconds*fps)
	for _, p := range peaks {
		ts := float64(p) / fps
		if ts <= WarmupSeconds {
			continue
		}
		det.Timestamps = append(det.Timestamps, ts)
	}
	sort.Float64s(det.Timestamps)
	return det
}

// EffectiveFPS returns nominal when it is plausible, otherwise frameCount
// divided by the probed duration, otherwise FallbackFPS. The returned error
// is non-nil only when the fallback was taken; the rate is valid regardless.
func EffectiveFPS(nominal float64, frameCount int, probe DurationProbe) (float64, error) {
	if nominal > 0 && nominal <= MaxPlausibleFPS {
		return nominal, nil
	}
	if probe == nil {
		return FallbackFPS, fmt.Errorf("%w: no probe for implausible rate %.2f", models.ErrDurationProbe, nominal)
	}
	duration, err := probe()
	if err != nil {
		return FallbackFPS, fmt.Errorf("%w: %v", models.ErrDurationProbe, err)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return FallbackFPS, fmt.Errorf("%w: unusable duration %v", models.ErrDurationProbe, duration)
	}
	return float64(frameCount) / duration, nil
}

// Series computes the mean luminance of roi for every frame.
func Series(frames []image.Image, roi models.ROI) ([]float64, error) {
	lum := make([]float64, len(frames))
	for i, f := range frames {
		v, err := MeanLuminance(f, roi)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		lum[i] = v
	}
	return lum, nil
}

// MeanLuminance crops img to roi (clamped to the image bounds) and returns
// the mean ITU-R 601 luma on a 0-255 scale.
func MeanLuminance(img image.Image, roi models.ROI) (float64, error) {
	b := img.Bounds()
	r := image.Rect(b.Min.X+roi.X, b.Min.Y+roi.Y, b.Min.X+roi.X+roi.Width, b.Min.Y+roi.Y+roi.Height).Intersect(b)
	if r.Empty() {
		return 0, fmt.Errorf("%w: roi %+v, frame %v", models.ErrInvalidRegion, roi, b)
	}

	var sum float64
	switch src := img.(type) {
	case *image.Gray:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := src.PixOffset(r.Min.X, y)
			for _, p := range src.Pix[off : off+r.Dx()] {
				sum += float64(p)
			}
		}
	case *image.YCbCr:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := src.YOffset(r.Min.X, y)
			for _, p := range src.Y[off : off+r.Dx()] {
				sum += float64(p)
			}
		}
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				sum += float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			}
		}
	}
	return sum / float64(r.Dx()*r.Dy()), nil
}

// Diff returns the first difference of x with d[0] = 0.
func Diff(x []float64) []float64 {
	d := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d[i] = x[i] - x[i-1]
	}
	return d
}

// StdDev returns the population standard deviation of x.
func StdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(x)))
}
