// Package repository persists score ledgers per player and game version.
package repository

import (
	"context"
	"regexp"

	"github.com/okian/hiscore/internal/domain/ledger"
)

// Store loads and saves a player's ledger. Implementations are safe for
// concurrent use but do not serialise a load/merge/save cycle; callers that
// merge must hold their own per-player lock.
type Store interface {
	// Load returns the player's ledger. An unknown player yields an empty
	// ledger, not an error.
	Load(ctx context.Context, refID string) (*ledger.Ledger, error)

	// Save replaces the player's ledger.
	Save(ctx context.Context, refID string, lg *ledger.Ledger) error

	// Count returns the number of players with a stored ledger.
	Count(ctx context.Context) int

	// Version returns the game version the ledgers are stored under.
	Version() string
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

var refIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRefID reports whether refID may be used as a storage key.
func ValidRefID(refID string) bool {
	return refIDPattern.MatchString(refID)
}
