// Package dedupe tracks write sessions that were already applied so a
// retried submission does not merge the same plays twice.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const defaultMaxSize = 50000

// Deduper records seen session keys to ensure at-most-once merging.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the session can be retried. Used when a write
	// was recorded but failed before the ledger was saved.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Key builds the dedupe key of a player's write session.
func Key(refID, sessionID string) string {
	return refID + "/" + sessionID
}

// NewInMemoryDeduper creates a deduper. With a positive max size the oldest
// keys are evicted first; otherwise keys are kept forever.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := config{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize <= 0 {
		return &unboundedDeduper{seen: make(map[string]struct{})}
	}
	c, err := lru.New(cfg.maxSize)
	if err != nil {
		// lru.New only fails for non-positive sizes, handled above.
		panic(err)
	}
	return &lruDeduper{cache: c}
}

type lruDeduper struct {
	cache *lru.Cache
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}

type unboundedDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (d *unboundedDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *unboundedDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

func (d *unboundedDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
