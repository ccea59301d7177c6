package models

import "time"

// Challenge is the expected audio/visual pattern derived from a challenge hash.
type Challenge struct {
	Frequencies []int `json:"audio_frequencies"` // 3 chirp frequencies in Hz, [800, 2000)
	Timings     []int `json:"strobe_timings"`    // 3-5 strobe times in ms, ascending, [0, 5000)
	Interval    int   `json:"strobe_interval"`   // informational, always 1500 ms
}

// ExpectedTimes returns the timings the matcher evaluates, in seconds.
// Only the first len(Frequencies) timings take part in a match.
func (c Challenge) ExpectedTimes() []float64 {
	n := len(c.Frequencies)
	if n > len(c.Timings) {
		n = len(c.Timings)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(c.Timings[i]) / 1000.0
	}
	return out
}

// Modality identifies which stream produced a SignalEvent.
type Modality string

const (
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

// SignalEvent is a single detection produced by a detector.
type SignalEvent struct {
	Timestamp float64  `json:"timestamp"` // seconds from clip start
	Modality  Modality `json:"modality"`
}

// NewEvents tags detector timestamps with the stream they came from.
func NewEvents(m Modality, timestamps []float64) []SignalEvent {
	events := make([]SignalEvent, len(timestamps))
	for i, ts := range timestamps {
		events[i] = SignalEvent{Timestamp: ts, Modality: m}
	}
	return events
}

// Timestamps returns the event times in order.
func Timestamps(events []SignalEvent) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.Timestamp
	}
	return out
}

// AlignmentSlot is the resolved match for one expected timing.
// Audio and Video hold the nearest unused candidates considered for the slot
// (nil when the pool was empty). The three In* flags record which of the
// consistency checks held.
type AlignmentSlot struct {
	ExpectedTime  float64  `json:"expected_time"`
	Audio         *float64 `json:"matched_audio"`
	Video         *float64 `json:"matched_video"`
	AudioInWindow bool     `json:"audio_in_window"`
	VideoInWindow bool     `json:"video_in_window"`
	CrossModal    bool     `json:"cross_modal"`
	Consistent    bool     `json:"consistent"`
}

// VerificationResult is the verdict of the core engine.
type VerificationResult struct {
	Verified  bool            `json:"verified"`
	Slots     []AlignmentSlot `json:"slots"`
	Successes int             `json:"successes"`
	Required  int             `json:"required"`
}

// Report wraps a VerificationResult with everything the service observed
// while producing it.
type Report struct {
	ID            string             `json:"id"`
	ChallengeHash string             `json:"challenge"`
	PopAddress    string             `json:"pop_address,omitempty"`
	Challenge     Challenge          `json:"derived_challenge"`
	Result        VerificationResult `json:"result"`
	AudioEvents   []float64          `json:"audio_peaks"`
	VideoEvents   []float64          `json:"strobe_peaks"`
	EffectiveFPS  float64            `json:"effective_fps"`
	ProofCID      string             `json:"ipfs_cid,omitempty"`
	ProofURL      string             `json:"gateway_url,omitempty"`
	ProofPreview  string             `json:"screenshot_preview,omitempty"`
	Annotations   []string           `json:"annotations,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// HistoryEntry is the audit record kept for each decided verification.
type HistoryEntry struct {
	ID            string    `json:"id"`
	ChallengeHash string    `json:"challenge"`
	PopAddress    string    `json:"pop_address,omitempty"`
	Verified      bool      `json:"verified"`
	Successes     int       `json:"successes"`
	Required      int       `json:"required"`
	ProofCID      string    `json:"ipfs_cid,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryFromReport builds the history record for a report.
func EntryFromReport(r *Report) HistoryEntry {
	return HistoryEntry{
		ID:            r.ID,
		ChallengeHash: r.ChallengeHash,
		PopAddress:    r.PopAddress,
		Verified:      r.Result.Verified,
		Successes:     r.Result.Successes,
		Required:      r.Result.Required,
		ProofCID:      r.ProofCID,
		CreatedAt:     r.CreatedAt,
	}
}

// ChainChallenge is the active challenge record read from the PoP contract.
type ChainChallenge struct {
	Hash         string `json:"challenge_hash"`
	BaseBlock    uint64 `json:"base_block"`
	ExpiresBlock uint64 `json:"expires_block"`
}

// Contains reports whether block lies inside the validity window.
func (c ChainChallenge) Contains(block uint64) bool {
	return block >= c.BaseBlock && block <= c.ExpiresBlock
}

// ROI is a rectangular region of interest inside a video frame.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// StoredObject locates a blob in a content-addressed store.
type StoredObject struct {
	CID string `json:"cid"`
	URL string `json:"gateway_url"`
}
