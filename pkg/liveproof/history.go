package liveproof

import (
	"context"
	"fmt"
	"sync"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// DefaultHistoryCapacity bounds every history implementation.
const DefaultHistoryCapacity = 100

// MemoryHistory is an in-process History. Appends are serialized, and past
// capacity the oldest entry is dropped.
type MemoryHistory struct {
	mu       sync.Mutex
	entries  []models.HistoryEntry // oldest first
	capacity int
}

func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &MemoryHistory{capacity: capacity}
}

func (h *MemoryHistory) Append(ctx context.Context, e models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.capacity; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.HistoryEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

// Get returns the entry recorded under id.
func (h *MemoryHistory) Get(ctx context.Context, id string) (models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.HistoryEntry{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ID == id {
			return h.entries[i], nil
		}
	}
	return models.HistoryEntry{}, fmt.Errorf("%w: verdict %s", models.ErrNotFound, id)
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
