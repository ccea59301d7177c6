package alignment

import (
	"math"
	"sort"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// DefaultTolerance is the maximum offset in seconds between an expected
// event and an observation, and between the audio and video observations
// of the same slot. It absorbs device-dependent A/V desync.
const DefaultTolerance = 0.7

// Match aligns detected audio and video events against the expected times.
//
// Slots are resolved in ascending expected time. For each slot the nearest
// unused audio and the nearest unused video timestamps are taken as
// candidates; the slot is consistent when both lie within tolerance of the
// expected time and of each other. A consistent slot consumes its two
// events, so no detection can satisfy two slots. The result is verified
// only when every slot is consistent.
//
// A tolerance <= 0 selects DefaultTolerance. Match never fails: missing
// evidence yields an unverified result whose slots explain which check
// did not hold.
func Match(expected, audio, video []float64, tolerance float64) models.VerificationResult {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	times := append([]float64(nil), expected...)
	sort.Float64s(times)

	usedAudio := make(map[int]bool)
	usedVideo := make(map[int]bool)

	result := models.VerificationResult{
		Slots:    make([]models.AlignmentSlot, 0, len(times)),
		Required: len(times),
	}

	for _, t := range times {
		slot := models.AlignmentSlot{ExpectedTime: t}

		ai := nearestUnused(audio, usedAudio, t)
		vi := nearestUnused(video, usedVideo, t)
		if ai >= 0 {
			a := audio[ai]
			slot.Audio = &a
			slot.AudioInWindow = math.Abs(a-t) <= tolerance
		}
		if vi >= 0 {
			v := video[vi]
			slot.Video = &v
			slot.VideoInWindow = math.Abs(v-t) <= tolerance
		}
		if ai >= 0 && vi >= 0 {
			slot.CrossModal = math.Abs(audio[ai]-video[vi]) <= tolerance
		}

		slot.Consistent = slot.AudioInWindow && slot.VideoInWindow && slot.CrossModal
		if slot.Consistent {
			usedAudio[ai] = true
			usedVideo[vi] = true
			result.Successes++
		}
		result.Slots = append(result.Slots, slot)
	}

	result.Verified = result.Successes == result.Required
	return result
}

// nearestUnused returns the index of the value closest to t that is not in
// used, or -1 when none is left. Ties go to the lower index.
func nearestUnused(values []float64, used map[int]bool, t float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, v := range values {
		if used[i] {
			continue
		}
		if d := math.Abs(v - t); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Describe returns a short reason for an inconsistent slot, or "" when the
// slot is consistent.
func Describe(slot models.AlignmentSlot) string {
	switch {
	case slot.Consistent:
		return ""
	case slot.Audio == nil && slot.Video == nil:
		return "no audio or video events left"
	case slot.Audio == nil:
		return "no audio event left"
	case slot.Video == nil:
		return "no video event left"
	case !slot.AudioInWindow && !slot.VideoInWindow:
		return "audio and video outside tolerance"
	case !slot.AudioInWindow:
		return "audio outside tolerance"
	case !slot.VideoInWindow:
		return "video outside tolerance"
	default:
		return "audio and video disagree"
	}
}
