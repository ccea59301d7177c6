package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/himanishpuri/LiveProof/internal/alignment"
	"github.com/himanishpuri/LiveProof/internal/config"
	"github.com/himanishpuri/LiveProof/pkg/liveproof"
	"github.com/himanishpuri/LiveProof/pkg/models"
)

// VerifyForm is the parsed multipart form of POST /api/verify
type VerifyForm struct {
	Challenge    string
	PopAddress   string
	BaseBlock    string
	ExpiresBlock string
	ROI          string
}

// Request builds the service request for the uploaded file at mediaPath.
func (f *VerifyForm) Request(mediaPath string) (liveproof.VerifyRequest, error) {
	req := liveproof.VerifyRequest{
		MediaPath:     mediaPath,
		ChallengeHash: strings.TrimSpace(f.Challenge),
		PopAddress:    strings.TrimSpace(f.PopAddress),
	}
	if req.ChallengeHash == "" {
		return req, errors.New("challenge is required")
	}

	base, expires := strings.TrimSpace(f.BaseBlock), strings.TrimSpace(f.ExpiresBlock)
	if (base == "") != (expires == "") {
		return req, errors.New("base_block and expires_block must be sent together")
	}
	if base != "" {
		b, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid base_block %q", base)
		}
		e, err := strconv.ParseUint(expires, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid expires_block %q", expires)
		}
		if b > e {
			return req, fmt.Errorf("base_block %d is after expires_block %d", b, e)
		}
		req.Window = &models.ChainChallenge{Hash: req.ChallengeHash, BaseBlock: b, ExpiresBlock: e}
	}

	if roi := strings.TrimSpace(f.ROI); roi != "" {
		r, err := config.ParseROI(roi)
		if err != nil {
			return req, fmt.Errorf("invalid roi: %v", err)
		}
		req.ROI = &r
	}
	return req, nil
}

// SlotDTO is one alignment slot with a readable failure reason
type SlotDTO struct {
	ExpectedTime float64  `json:"expected_time"`
	Audio        *float64 `json:"matched_audio"`
	Video        *float64 `json:"matched_video"`
	Consistent   bool     `json:"consistent"`
	Reason       string   `json:"reason,omitempty"`
}

// MetricsDTO carries the raw detector output
type MetricsDTO struct {
	AudioPeaks   []float64 `json:"audio_peaks"`
	StrobePeaks  []float64 `json:"strobe_peaks"`
	EffectiveFPS float64   `json:"effective_fps"`
}

// VerifyResponse is the response for POST /api/verify
type VerifyResponse struct {
	ID                string           `json:"id"`
	Verified          bool             `json:"verified"`
	Successes         int              `json:"successes"`
	Required          int              `json:"required"`
	Challenge         string           `json:"challenge"`
	DerivedChallenge  models.Challenge `json:"derived_challenge"`
	Slots             []SlotDTO        `json:"slots"`
	Metrics           MetricsDTO       `json:"metrics"`
	IPFSCID           string           `json:"ipfs_cid,omitempty"`
	GatewayURL        string           `json:"gateway_url,omitempty"`
	ScreenshotPreview string           `json:"screenshot_preview,omitempty"`
	Annotations       []string         `json:"annotations,omitempty"`
}

func newVerifyResponse(r *models.Report) VerifyResponse {
	slots := make([]SlotDTO, len(r.Result.Slots))
	for i, s := range r.Result.Slots {
		slots[i] = SlotDTO{
			ExpectedTime: s.ExpectedTime,
			Audio:        s.Audio,
			Video:        s.Video,
			Consistent:   s.Consistent,
			Reason:       alignment.Describe(s),
		}
	}
	return VerifyResponse{
		ID:               r.ID,
		Verified:         r.Result.Verified,
		Successes:        r.Result.Successes,
		Required:         r.Result.Required,
		Challenge:        r.ChallengeHash,
		DerivedChallenge: r.Challenge,
		Slots:            slots,
		Metrics: MetricsDTO{
			AudioPeaks:   nonNil(r.AudioEvents),
			StrobePeaks:  nonNil(r.VideoEvents),
			EffectiveFPS: r.EffectiveFPS,
		},
		IPFSCID:           r.ProofCID,
		GatewayURL:        r.ProofURL,
		ScreenshotPreview: r.ProofPreview,
		Annotations:       r.Annotations,
	}
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}

// DeriveRequest is the request body for POST /api/challenge/derive
type DeriveRequest struct {
	Hash string `json:"hash"`
}

// Validate checks if the request is valid
func (r *DeriveRequest) Validate() error {
	if strings.TrimSpace(r.Hash) == "" {
		return errors.New("hash is required")
	}
	return nil
}

// DeriveResponse is the response for POST /api/challenge/derive
type DeriveResponse struct {
	Hash string `json:"hash"`
	models.Challenge
}

// HistoryResponse is the response for GET /api/history
type HistoryResponse struct {
	Entries []models.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string           `json:"status"`
	Time    string           `json:"time"`
	Backend liveproof.Status `json:"backends"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
