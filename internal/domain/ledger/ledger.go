// Package ledger models a player's per-chart score records and the merge
// policy applied to every reported play.
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/hiscore/internal/domain/tier"
)

// SlotsPerSong is the number of difficulty charts a song carries.
const SlotsPerSong = 4

// ScoreBits is the width of a packed score field.
const ScoreBits = 17

// MaxScore is the largest score representable in a packed field.
const MaxScore = 1<<ScoreBits - 1

// ChartID identifies a (song, difficulty slot) pair.
type ChartID struct {
	Song int
	Slot int
}

// Index returns the linear index song*4 + slot used by the packed arrays.
func (c ChartID) Index() int {
	return c.Song*SlotsPerSong + c.Slot
}

// Key renders the chart as "song:slot", the form used by persisted documents.
func (c ChartID) Key() string {
	return strconv.Itoa(c.Song) + ":" + strconv.Itoa(c.Slot)
}

func (c ChartID) String() string { return c.Key() }

// ParseKey is the inverse of Key.
func ParseKey(key string) (ChartID, error) {
	song, slot, ok := strings.Cut(key, ":")
	if !ok {
		return ChartID{}, fmt.Errorf("chart key %q: missing separator", key)
	}
	s, err := strconv.Atoi(song)
	if err != nil {
		return ChartID{}, fmt.Errorf("chart key %q: song: %w", key, err)
	}
	sl, err := strconv.Atoi(slot)
	if err != nil {
		return ChartID{}, fmt.Errorf("chart key %q: slot: %w", key, err)
	}
	return ChartID{Song: s, Slot: sl}, nil
}

// Record is the best-known result for one chart.
type Record struct {
	BestScore uint32
	PlayCount uint32
	ClearTier tier.Tier
}

// Bounds carries the version-specific catalog limit.
type Bounds struct {
	// MaxSongID is the highest song id accepted on the write path. Packed
	// arrays cover song ids [0, MaxSongID).
	MaxSongID int
}

// Accepts reports whether c may be stored in a ledger bounded by b.
func (b Bounds) Accepts(c ChartID) bool {
	if c.Song < 0 || c.Song > b.MaxSongID {
		return false
	}
	return c.Slot >= 0 && c.Slot < SlotsPerSong
}

// Ledger maps charts to records. The zero value is not usable; use New.
type Ledger struct {
	records map[ChartID]Record
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{records: make(map[ChartID]Record)}
}

// FromRecords builds a ledger holding a copy of recs.
func FromRecords(recs map[ChartID]Record) *Ledger {
	l := &Ledger{records: make(map[ChartID]Record, len(recs))}
	for k, v := range recs {
		l.records[k] = v
	}
	return l
}

// Get returns the record for c.
func (l *Ledger) Get(c ChartID) (Record, bool) {
	r, ok := l.records[c]
	return r, ok
}

// Put stores r under c unconditionally. It is meant for storage adapters
// rebuilding a ledger; plays go through Merge.
func (l *Ledger) Put(c ChartID, r Record) {
	l.records[c] = r
}

// Len returns the number of charts with a record.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Charts returns every chart in the ledger ordered by linear index.
func (l *Ledger) Charts() []ChartID {
	out := make([]ChartID, 0, len(l.records))
	for c := range l.records {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index() != out[j].Index() {
			return out[i].Index() < out[j].Index()
		}
		// Only reachable for slots outside [0,4) loaded from storage.
		return out[i].Song < out[j].Song
	})
	return out
}

// Range calls fn for every record in index order until fn returns false.
func (l *Ledger) Range(fn func(ChartID, Record) bool) {
	for _, c := range l.Charts() {
		if !fn(c, l.records[c]) {
			return
		}
	}
}

// Clone returns an independent copy of l.
func (l *Ledger) Clone() *Ledger {
	return FromRecords(l.records)
}
