package challenge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Derivation constants. Client and server must agree on every one of them:
// the hash is the only thing they share.
const (
	HashHexLen = 64 // 32-byte hash rendered as hex

	FrequencyCount = 3
	MinFrequencyHz = 800
	FrequencySpan  = 1200 // frequencies land in [800, 2000)

	MinStrobes  = 3
	StrobeRange = 3 // strobe count lands in {3, 4, 5}
	WindowMs    = 5000

	IntervalMs = 1500

	sliceLen = 8
)

// Normalize strips an optional 0x prefix and validates that exactly 64 hex
// digits remain. The result is lower-cased.
func Normalize(hash string) (string, error) {
	h := strings.TrimSpace(hash)
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		h = h[2:]
	}
	if len(h) != HashHexLen {
		return "", fmt.Errorf("%w: want %d hex digits, got %d", models.ErrInvalidChallengeHash, HashHexLen, len(h))
	}
	for i := 0; i < len(h); i++ {
		if !isHex(h[i]) {
			return "", fmt.Errorf("%w: non-hex character %q at %d", models.ErrInvalidChallengeHash, h[i], i)
		}
	}
	return strings.ToLower(h), nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// sliceToUint parses the 8 hex characters at offset as a big-endian uint32.
// hash must already be normalized.
func sliceToUint(hash string, offset int) uint32 {
	v, err := strconv.ParseUint(hash[offset:offset+sliceLen], 16, 32)
	if err != nil {
		// Normalize guarantees hex input of sufficient length.
		panic(fmt.Sprintf("challenge: bad slice at %d: %v", offset, err))
	}
	return uint32(v)
}

// Derive computes the challenge for a hash. It is a pure function: the same
// hash always yields the same frequencies and timings.
func Derive(hash string) (models.Challenge, error) {
	h, err := Normalize(hash)
	if err != nil {
		return models.Challenge{}, err
	}

	freqs := make([]int, FrequencyCount)
	for i := range freqs {
		freqs[i] = MinFrequencyHz + int(sliceToUint(h, i*sliceLen)%FrequencySpan)
	}

	count := MinStrobes + int(sliceToUint(h, 24)%StrobeRange)
	timings := make([]int, count)
	for i := range timings {
		timings[i] = int(sliceToUint(h, (i+3)*sliceLen) % WindowMs)
	}
	sort.Ints(timings)

	return models.Challenge{
		Frequencies: freqs,
		Timings:     timings,
		Interval:    IntervalMs,
	}, nil
}

// MinSpacing returns the smallest gap in ms between consecutive evaluated
// timings (the first len(Frequencies)). Challenges whose spacing is below
// twice the matcher tolerance cannot always be disambiguated.
func MinSpacing(c models.Challenge) int {
	n := len(c.Frequencies)
	if n > len(c.Timings) {
		n = len(c.Timings)
	}
	if n < 2 {
		return 0
	}
	minGap := -1
	for i := 1; i < n; i++ {
		gap := c.Timings[i] - c.Timings[i-1]
		if minGap < 0 || gap < minGap {
			minGap = gap
		}
	}
	return minGap
}
