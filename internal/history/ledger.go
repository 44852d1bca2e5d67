package history

import (
	"context"
	"sync"

	"github.com/example/naijago/internal/models"
)

// Ledger records completed services for one session, most recent first.
// Append never deduplicates and the sequence is unbounded.
type Ledger interface {
	Append(ctx context.Context, e models.HistoryEntry) error
	List(ctx context.Context) ([]models.HistoryEntry, error)
	Clear(ctx context.Context) error
}

type MemoryLedger struct {
	mu      sync.RWMutex
	entries []models.HistoryEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (m *MemoryLedger) Append(_ context.Context, e models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]models.HistoryEntry{e}, m.entries...)
	return nil
}

func (m *MemoryLedger) List(_ context.Context) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.HistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryLedger) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}
