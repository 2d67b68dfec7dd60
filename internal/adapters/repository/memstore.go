package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/pkg/metrics"
)

// MemoryStore keeps ledgers in process memory. Ledgers are copied in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	version string
	players map[string]map[ledger.ChartID]ledger.Record
}

// NewMemoryStore returns an empty store for the given game version.
func NewMemoryStore(version string) *MemoryStore {
	return &MemoryStore{
		version: version,
		players: make(map[string]map[ledger.ChartID]ledger.Record),
	}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, refID string) (*ledger.Ledger, error) {
	const op = "repository.memory.load"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("memory", "load", msSince(start)) }()

	if !ValidRefID(refID) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefID)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadLedger, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	recs, ok := s.players[refID]
	if !ok {
		return ledger.New(), nil
	}
	return ledger.FromRecords(recs), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, refID string, lg *ledger.Ledger) error {
	const op = "repository.memory.save"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("memory", "save", msSince(start)) }()

	if !ValidRefID(refID) {
		return fmt.Errorf("%s: %w", op, ErrInvalidRefID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}

	recs := make(map[ledger.ChartID]ledger.Record, lg.Len())
	lg.Range(func(c ledger.ChartID, r ledger.Record) bool {
		recs[c] = r
		return true
	})

	s.mu.Lock()
	s.players[refID] = recs
	n := len(s.players)
	s.mu.Unlock()

	metrics.UpdateStoredPlayers(n)
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Version implements Store.
func (s *MemoryStore) Version() string { return s.version }

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
