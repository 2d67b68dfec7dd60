// Package codec projects a score ledger into the two fixed-size blobs the
// game client reads at login: the clear medal array and the hiscore array.
//
// Both blobs are rebuilt from scratch on every call. Charts missing from the
// ledger decode as zero.
package codec

import (
	"encoding/binary"

	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/tier"
)

const (
	medalBits  = 4
	medalMask  = 1<<medalBits - 1
	scoreMask  = uint32(ledger.MaxScore)
	wordBytes  = 2
	fieldBytes = 3 // a 17-bit field shifted by up to 7 bits spans 3 bytes
)

// Layout fixes the catalog size the blobs are built for.
type Layout struct {
	MaxSongID int
}

// NewLayout returns a Layout for songs [0, maxSongID).
func NewLayout(maxSongID int) Layout {
	if maxSongID < 0 {
		maxSongID = 0
	}
	return Layout{MaxSongID: maxSongID}
}

// Bounds returns the write-path bounds matching the layout.
func (l Layout) Bounds() ledger.Bounds {
	return ledger.Bounds{MaxSongID: l.MaxSongID}
}

// MedalSize is the byte length of the medal array: one u16 per song.
func (l Layout) MedalSize() int {
	return l.MaxSongID * wordBytes
}

// ScoreSize is the byte length of the hiscore array: every 17-bit field
// rounded up to whole bytes plus one trailing slack byte.
func (l Layout) ScoreSize() int {
	bits := l.MaxSongID * ledger.SlotsPerSong * ledger.ScoreBits
	return (bits+7)/8 + 1
}

// covers reports whether c has a position in the packed arrays.
func (l Layout) covers(c ledger.ChartID) bool {
	return c.Song >= 0 && c.Song < l.MaxSongID && c.Slot >= 0 && c.Slot < ledger.SlotsPerSong
}

// MedalWords builds the per-song medal words. Bits 0-3 hold slot 0, bits
// 4-7 slot 1 and so on.
func (l Layout) MedalWords(lg *ledger.Ledger) []uint16 {
	words := make([]uint16, l.MaxSongID)
	lg.Range(func(c ledger.ChartID, r ledger.Record) bool {
		if !l.covers(c) {
			return true
		}
		nibble := uint16(r.ClearTier.Medal()) & medalMask
		words[c.Song] |= nibble << (uint(c.Slot) * medalBits)
		return true
	})
	return words
}

// PackMedals returns the medal array as little-endian u16 words.
func (l Layout) PackMedals(lg *ledger.Ledger) []byte {
	words := l.MedalWords(lg)
	out := make([]byte, l.MedalSize())
	for i, w := range words {
		binary.LittleEndian.PutUint16(out[i*wordBytes:], w)
	}
	return out
}

// PackScores returns the hiscore array. Fields are OR-merged in index order
// into a zeroed buffer since neighbouring fields share bytes.
func (l Layout) PackScores(lg *ledger.Ledger) []byte {
	out := make([]byte, l.ScoreSize())
	lg.Range(func(c ledger.ChartID, r ledger.Record) bool {
		if !l.covers(c) {
			return true
		}
		putField(out, c.Index(), r.BestScore)
		return true
	})
	return out
}

func putField(buf []byte, index int, score uint32) {
	bitOff := uint(index) * ledger.ScoreBits
	pos := bitOff / 8
	v := (score & scoreMask) << (bitOff % 8)
	for i := uint(0); i < fieldBytes; i++ {
		buf[pos+i] |= byte(v >> (8 * i))
	}
}

// DecodeScore reads the 17-bit field for c out of a hiscore array. Charts
// outside the layout or beyond the buffer decode as 0.
func (l Layout) DecodeScore(buf []byte, c ledger.ChartID) uint32 {
	if !l.covers(c) {
		return 0
	}
	bitOff := uint(c.Index()) * ledger.ScoreBits
	pos := bitOff / 8
	if int(pos)+fieldBytes > len(buf) {
		return 0
	}
	var v uint32
	for i := uint(0); i < fieldBytes; i++ {
		v |= uint32(buf[pos+i]) << (8 * i)
	}
	return (v >> (bitOff % 8)) & scoreMask
}

// DecodeMedal reads the medal nibble for c out of a medal array.
func (l Layout) DecodeMedal(buf []byte, c ledger.ChartID) uint8 {
	if !l.covers(c) {
		return 0
	}
	off := c.Song * wordBytes
	if off+wordBytes > len(buf) {
		return 0
	}
	w := binary.LittleEndian.Uint16(buf[off:])
	return uint8(w>>(uint(c.Slot)*medalBits)) & medalMask
}

// DecodeTier resolves the medal nibble for c back to a tier.
func (l Layout) DecodeTier(buf []byte, c ledger.ChartID) tier.Tier {
	t, _ := tier.FromMedal(l.DecodeMedal(buf, c))
	return t
}
