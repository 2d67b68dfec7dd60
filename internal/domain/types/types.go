// Package types contains the request and response shapes shared by the
// profile service and the HTTP layer.
package types

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/tier"
)

// Profile is the packed view of a player's ledger sent to the client.
// ClearMedalSub is a zero-filled per-song array the client expects next to
// the medal words; both encode as JSON number arrays. Hiscore is a packed
// blob and encodes as base64.
type Profile struct {
	RefID         string   `json:"ref_id"`
	GameVersion   string   `json:"game_version"`
	ClearMedal    []uint16 `json:"clear_medal"`
	ClearMedalSub U8Array  `json:"clear_medal_sub"`
	Hiscore       []byte   `json:"hiscore"`
	Charts        int      `json:"charts"`
}

// WriteRequest carries the stages reported at the end of a session.
// SessionID is optional; when set, a repeated session is not merged again.
type WriteRequest struct {
	RefID     string
	SessionID string
	Stages    []ledger.Stage
}

// WriteResult summarises a write.
type WriteResult struct {
	WriteID      string `json:"write_id,omitempty"`
	Merged       int    `json:"merged"`
	Skipped      int    `json:"skipped"`
	UnknownTiers int    `json:"unknown_tiers"`
	Duplicate    bool   `json:"duplicate"`
}

// ChartView is the debug view of a single chart: the stored record next to
// what the packed arrays decode to.
type ChartView struct {
	Chart       ledger.ChartID
	Present     bool
	Record      ledger.Record
	Packed      bool
	PackedScore uint32
	PackedMedal uint8
	PackedTier  tier.Tier
}

// U8Array is a per-song byte array that encodes as a JSON number array
// rather than the base64 string encoding/json uses for []byte.
type U8Array []uint8

// MarshalJSON implements json.Marshaler.
func (a U8Array) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	nums := make([]uint16, len(a))
	for i, v := range a {
		nums[i] = uint16(v)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *U8Array) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	if nums == nil {
		*a = nil
		return nil
	}
	out := make(U8Array, len(nums))
	for i, n := range nums {
		if n < 0 || n > math.MaxUint8 {
			return fmt.Errorf("clear_medal_sub[%d]: %d out of range", i, n)
		}
		out[i] = uint8(n)
	}
	*a = out
	return nil
}
