package liveproof

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/internal/alignment"
	"github.com/himanishpuri/LiveProof/internal/audio"
	"github.com/himanishpuri/LiveProof/internal/chain"
	"github.com/himanishpuri/LiveProof/internal/challenge"
	"github.com/himanishpuri/LiveProof/internal/video"
	"github.com/himanishpuri/LiveProof/pkg/logger"
	"github.com/himanishpuri/LiveProof/pkg/models"
	"github.com/himanishpuri/LiveProof/pkg/utils"
)

// verifier is the default implementation of the Service interface.
type verifier struct {
	log    Logger
	config *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.History == nil {
		cfg.History = NewMemoryHistory(DefaultHistoryCapacity)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.ROI.Width <= 0 || cfg.ROI.Height <= 0 {
		return nil, fmt.Errorf("%w: empty default region", models.ErrInvalidRegion)
	}
	if err := utils.MakeDir(cfg.TempDir); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	return &verifier{log: cfg.Logger, config: cfg}, nil
}

func (s *verifier) DeriveChallenge(hash string) (models.Challenge, error) {
	return challenge.Derive(hash)
}

// Verify checks the challenge against the chain, decodes the recording,
// runs the core and records the verdict. Errors are returned only when no
// verdict could be reached; later failures become report annotations.
func (s *verifier) Verify(ctx context.Context, req VerifyRequest) (*models.Report, error) {
	hash, err := challenge.Normalize(req.ChallengeHash)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:            utils.NewID(),
		ChallengeHash: "0x" + hash,
		PopAddress:    req.PopAddress,
		CreatedAt:     time.Now().UTC(),
	}
	s.log.Infof("[%s] verifying %s for challenge %s", report.ID, req.MediaPath, report.ChallengeHash)

	notes, err := s.checkWindow(ctx, hash, req)
	if err != nil {
		s.log.Warnf("[%s] challenge rejected: %v", report.ID, err)
		return nil, err
	}
	report.Annotations = append(report.Annotations, notes...)

	workDir, err := os.MkdirTemp(s.config.TempDir, "liveproof-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer utils.DeleteDir(workDir)

	// 1. Audio track
	decoded, err := audio.Load(ctx, req.MediaPath, workDir, audio.ExtractConfig{
		SampleRate: s.config.SampleRate,
		FFmpegPath: s.config.FFmpegPath,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debugf("[%s] decoded %.2fs of audio at %d Hz", report.ID, decoded.Duration(), decoded.SampleRate)

	// 2. Video frames, cropped to the region by the decoder
	roi := s.config.ROI
	if req.ROI != nil {
		roi = *req.ROI
	}
	clip, err := video.Decode(ctx, req.MediaPath, video.DecodeConfig{
		FFmpegPath:  s.config.FFmpegPath,
		FFprobePath: s.config.FFprobePath,
		MaxFrames:   s.config.MaxFrames,
		ROI:         &roi,
	})
	if err != nil {
		return nil, err
	}
	s.log.Debugf("[%s] decoded %d frames (%dx%d region of %dx%d, nominal %.2f fps)",
		report.ID, len(clip.Frames), clip.Region.Width, clip.Region.Height,
		clip.Meta.Width, clip.Meta.Height, clip.Meta.FrameRate)

	// 3. Detect and align
	result, ev, err := Verify(hash,
		DecodedAudio{Samples: decoded.Samples, SampleRate: decoded.SampleRate},
		DecodedVideo{
			Frames: clip.Frames,
			FPS:    clip.Meta.FrameRate,
			Probe:  video.DurationProbe(ctx, s.config.FFprobePath, req.MediaPath),
		},
		Params{ROI: clip.FrameROI(), Tolerance: s.config.Tolerance, ToleranceHz: s.config.ToleranceHz},
	)
	if err != nil {
		return nil, err
	}

	report.Challenge = ev.Challenge
	report.Result = result
	report.AudioEvents = models.Timestamps(ev.AudioEvents)
	report.VideoEvents = models.Timestamps(ev.VideoEvents)
	report.EffectiveFPS = ev.EffectiveFPS
	report.Annotations = append(report.Annotations, s.diagnose(report.ID, result, ev)...)

	s.log.Infof("[%s] verified=%t (%d/%d slots, %d chirps, %d strobes)",
		report.ID, result.Verified, result.Successes, result.Required, len(ev.AudioEvents), len(ev.VideoEvents))

	// 4. Proof artifact, only for a positive verdict
	if result.Verified && s.config.Store != nil {
		if err := s.storeProof(ctx, report, req.MediaPath, clip.Meta.DurationSec); err != nil {
			s.log.Warnf("[%s] %v", report.ID, err)
			report.Annotations = append(report.Annotations, err.Error())
		}
	}

	// 5. Audit log
	if err := s.config.History.Append(ctx, models.EntryFromReport(report)); err != nil {
		s.log.Warnf("[%s] history append failed: %v", report.ID, err)
		report.Annotations = append(report.Annotations, fmt.Sprintf("history not recorded: %v", err))
	}

	return report, nil
}

// checkWindow enforces the on-chain challenge when a chain reader is wired.
func (s *verifier) checkWindow(ctx context.Context, hash string, req VerifyRequest) ([]string, error) {
	if s.config.Chain == nil {
		if req.Window != nil {
			return []string{fmt.Sprintf("challenge window [%d, %d] not checked: no chain reader configured",
				req.Window.BaseBlock, req.Window.ExpiresBlock)}, nil
		}
		return nil, nil
	}

	contract := req.PopAddress
	if contract == "" {
		contract = s.config.Contract
	}
	if contract == "" {
		return nil, fmt.Errorf("%w: no PoP contract address", models.ErrChainUnavailable)
	}
	if err := s.checkContract(ctx, contract); err != nil {
		return nil, err
	}

	active, err := s.config.Chain.CurrentChallenge(ctx, contract)
	if err != nil {
		return nil, chainErr(err)
	}
	if chain.IsZeroHash(active.Hash) {
		return nil, fmt.Errorf("%w: contract %s has no active challenge", models.ErrChallengeMismatch, contract)
	}
	activeHash, err := challenge.Normalize(active.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: contract returned %q: %v", models.ErrChainUnavailable, active.Hash, err)
	}
	if activeHash != hash {
		return nil, fmt.Errorf("%w: submitted 0x%s, active 0x%s", models.ErrChallengeMismatch, hash, activeHash)
	}
	if w := req.Window; w != nil && (w.BaseBlock != active.BaseBlock || w.ExpiresBlock != active.ExpiresBlock) {
		return nil, fmt.Errorf("%w: window [%d, %d] differs from contract [%d, %d]",
			models.ErrChallengeMismatch, w.BaseBlock, w.ExpiresBlock, active.BaseBlock, active.ExpiresBlock)
	}

	block, err := s.config.Chain.BlockNumber(ctx)
	if err != nil {
		return nil, chainErr(err)
	}
	if !active.Contains(block) {
		return nil, fmt.Errorf("%w: block %d outside [%d, %d]",
			models.ErrChallengeExpired, block, active.BaseBlock, active.ExpiresBlock)
	}
	s.log.Debugf("challenge 0x%s active at block %d of [%d, %d]", hash, block, active.BaseBlock, active.ExpiresBlock)
	return nil, nil
}

// checkContract stops a caller from pointing the window check at a contract
// of their own.
func (s *verifier) checkContract(ctx context.Context, contract string) error {
	if strings.EqualFold(contract, s.config.Contract) {
		return nil
	}
	for _, allowed := range s.config.AllowedContracts {
		if strings.EqualFold(contract, allowed) {
			return nil
		}
	}
	if s.config.Registry == nil || s.config.Factory == "" {
		return fmt.Errorf("%w: %s", models.ErrContractNotAllowed, contract)
	}

	ok, err := s.config.Registry.IsRegisteredPop(ctx, s.config.Factory, contract)
	if err != nil {
		return chainErr(err)
	}
	if !ok {
		return fmt.Errorf("%w: %s was not minted by factory %s", models.ErrContractNotAllowed, contract, s.config.Factory)
	}
	return nil
}

func chainErr(err error) error {
	if errors.Is(err, models.ErrChainUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrChainUnavailable, err)
}

// diagnose turns evidence and failed slots into human-readable annotations.
func (s *verifier) diagnose(id string, result models.VerificationResult, ev Evidence) []string {
	var notes []string
	if ev.ProbeErr != nil {
		s.log.Warnf("[%s] %v, assuming %.0f fps", id, ev.ProbeErr, ev.EffectiveFPS)
		notes = append(notes, fmt.Sprintf("frame rate fallback to %.0f fps: %v", ev.EffectiveFPS, ev.ProbeErr))
	}
	minGap := challenge.MinSpacing(ev.Challenge)
	if float64(minGap) < 2*s.config.Tolerance*1000 {
		notes = append(notes, fmt.Sprintf("expected strobes only %d ms apart, closer than twice the %.1fs tolerance", minGap, s.config.Tolerance))
	}
	for i, slot := range result.Slots {
		if slot.Consistent {
			continue
		}
		notes = append(notes, fmt.Sprintf("slot %d at %.2fs: %s", i+1, slot.ExpectedTime, alignment.Describe(slot)))
	}
	return notes
}

// storeProof saves a mid-clip JPEG to the content store. Any failure wraps
// models.ErrUploadFailed.
func (s *verifier) storeProof(ctx context.Context, report *models.Report, mediaPath string, duration float64) error {
	jpg, err := video.Screenshot(ctx, s.config.FFmpegPath, mediaPath, video.MidpointOffset(duration))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	obj, err := s.config.Store.Put(ctx, "proof-"+report.ID+".jpg", jpg)
	if err != nil {
		if !errors.Is(err, models.ErrUploadFailed) {
			err = fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
		}
		return err
	}
	report.ProofCID = obj.CID
	report.ProofURL = obj.URL
	report.ProofPreview = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg)
	s.log.Infof("[%s] proof stored as %s", report.ID, obj.CID)
	return nil
}

func (s *verifier) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return s.config.History.Recent(ctx, limit)
}

func (s *verifier) HistoryEntry(ctx context.Context, id string) (models.HistoryEntry, error) {
	return s.config.History.Get(ctx, id)
}

func (s *verifier) Status() Status {
	return Status{
		Chain:   s.config.Chain != nil,
		Store:   s.config.Store != nil,
		History: s.config.History != nil,
	}
}

// Close releases the history store when it holds resources.
func (s *verifier) Close() error {
	if c, ok := s.config.History.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
