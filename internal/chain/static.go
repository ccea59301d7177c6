package chain

import (
	"context"
	"strings"
	"sync"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Static is an in-process chain for development and tests. Every contract
// address sees the same challenge.
type Static struct {
	mu        sync.RWMutex
	challenge models.ChainChallenge
	block     uint64
	pops      map[string]bool
}

func NewStatic(challenge models.ChainChallenge, block uint64) *Static {
	return &Static{challenge: challenge, block: block, pops: make(map[string]bool)}
}

// RegisterPop marks pop as minted by the factory.
func (s *Static) RegisterPop(pop string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pops[strings.ToLower(pop)] = true
}

// IsRegisteredPop ignores factory; every factory shares one registry.
func (s *Static) IsRegisteredPop(ctx context.Context, factory, pop string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pops[strings.ToLower(pop)], nil
}

func (s *Static) CurrentChallenge(ctx context.Context, address string) (models.ChainChallenge, error) {
	if err := ctx.Err(); err != nil {
		return models.ChainChallenge{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.challenge, nil
}

func (s *Static) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.block, nil
}

// SetChallenge replaces the active challenge.
func (s *Static) SetChallenge(c models.ChainChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenge = c
}

// Advance moves the block height forward by n.
func (s *Static) Advance(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block += n
}
