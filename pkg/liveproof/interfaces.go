package liveproof

import (
	"context"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

type Service interface {
	// Verify runs the full pipeline on an uploaded recording.
	Verify(ctx context.Context, req VerifyRequest) (*models.Report, error)
	DeriveChallenge(hash string) (models.Challenge, error)
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	HistoryEntry(ctx context.Context, id string) (models.HistoryEntry, error)
	Status() Status
	Close() error
}

// ChainReader queries the PoP contract.
type ChainReader interface {
	CurrentChallenge(ctx context.Context, contract string) (models.ChainChallenge, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// PopRegistry confirms that a PoP contract was minted by a factory.
type PopRegistry interface {
	IsRegisteredPop(ctx context.Context, factory, pop string) (bool, error)
}

// ContentStore keeps proof artifacts and returns their content identifier.
type ContentStore interface {
	Put(ctx context.Context, name string, data []byte) (models.StoredObject, error)
}

// History is the bounded audit log of decided verifications.
type History interface {
	Append(ctx context.Context, e models.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	// Get returns models.ErrNotFound for unknown or evicted ids.
	Get(ctx context.Context, id string) (models.HistoryEntry, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
