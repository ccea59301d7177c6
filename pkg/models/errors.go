package models

import "errors"

// Verification error kinds. Callers match them with errors.Is; producers wrap
// them with fmt.Errorf("%w: ...") to add detail.
var (
	// ErrInvalidChallengeHash is returned when a hash is not exactly 64 hex digits.
	ErrInvalidChallengeHash = errors.New("invalid challenge hash")

	// ErrAudioDecode is returned when the audio stream cannot be extracted or read.
	ErrAudioDecode = errors.New("audio decode failed")

	// ErrVideoDecode is returned when the video stream cannot be opened or decoded.
	ErrVideoDecode = errors.New("video decode failed")

	// ErrDurationProbe is non-fatal: the frame-rate correction falls back to 30 fps.
	ErrDurationProbe = errors.New("duration probe failed")

	// ErrInvalidRegion is returned when the region of interest misses the frame.
	ErrInvalidRegion = errors.New("region of interest outside frame")

	ErrChallengeMismatch = errors.New("challenge does not match active challenge")
	ErrChallengeExpired  = errors.New("challenge outside validity window")
	ErrChainUnavailable  = errors.New("chain query failed")

	// ErrContractNotAllowed is returned when a request names a PoP contract
	// that is neither configured, allow-listed nor minted by the factory.
	ErrContractNotAllowed = errors.New("pop contract not allowed")

	// ErrNotFound is returned when a history entry does not exist or was evicted.
	ErrNotFound = errors.New("not found")

	// ErrUploadFailed is non-fatal once a verdict exists; it is recorded as an annotation.
	ErrUploadFailed = errors.New("proof upload failed")
)
