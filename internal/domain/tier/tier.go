// Package tier holds the clear-medal classification shared by the read and
// write paths. A single table drives every direction of the mapping: score
// code to rank, rank to medal nibble, and medal nibble back to rank.
package tier

// Tier is the ordinal rank of a clear medal. Zero means no medal is known.
type Tier uint8

// Known tiers, ordered by quality.
const (
	None Tier = iota
	FailedCircle
	FailedDiamond
	FailedStar
	EasyClear
	ClearCircle
	ClearDiamond
	ClearStar
	FullComboCircle
	FullComboDiamond
	FullComboStar
	Perfect
)

// MaxNibble is the largest value a medal may occupy in a 4-bit slot.
const MaxNibble = 0xF

type entry struct {
	name  string
	code  int   // score-tier code persisted with the record
	medal uint8 // nibble sent to and received from the client
}

// table is indexed by Tier.
var table = [...]entry{
	None:             {name: "none", code: 0, medal: 0},
	FailedCircle:     {name: "failed_circle", code: 100, medal: 1},
	FailedDiamond:    {name: "failed_diamond", code: 200, medal: 2},
	FailedStar:       {name: "failed_star", code: 300, medal: 3},
	EasyClear:        {name: "easy_clear", code: 400, medal: 5},
	ClearCircle:      {name: "clear_circle", code: 500, medal: 5},
	ClearDiamond:     {name: "clear_diamond", code: 600, medal: 6},
	ClearStar:        {name: "clear_star", code: 700, medal: 7},
	FullComboCircle:  {name: "full_combo_circle", code: 800, medal: 9},
	FullComboDiamond: {name: "full_combo_diamond", code: 900, medal: 10},
	FullComboStar:    {name: "full_combo_star", code: 1000, medal: 11},
	Perfect:          {name: "perfect", code: 1100, medal: 15},
}

// byMedal is the inverse of table's medal column. When two tiers share a
// nibble the higher tier wins.
var byMedal = func() [MaxNibble + 1]Tier {
	var m [MaxNibble + 1]Tier
	for t := range table {
		if t == int(None) {
			continue
		}
		m[table[t].medal] = Tier(t)
	}
	return m
}()

// All returns every defined tier except None, lowest first.
func All() []Tier {
	out := make([]Tier, 0, len(table)-1)
	for t := FailedCircle; int(t) < len(table); t++ {
		out = append(out, t)
	}
	return out
}

// FromCode resolves a score-tier code such as 1000. ok is false for codes
// the table does not know, in which case None is returned.
func FromCode(code int) (Tier, bool) {
	if code <= 0 {
		return None, false
	}
	for t := FailedCircle; int(t) < len(table); t++ {
		if table[t].code == code {
			return t, true
		}
	}
	return None, false
}

// FromMedal resolves a 4-bit medal nibble. Nibbles with no table entry,
// including 0, yield None and ok == false.
func FromMedal(nibble uint8) (Tier, bool) {
	if nibble > MaxNibble {
		return None, false
	}
	t := byMedal[nibble]
	return t, t != None
}

// Valid reports whether t is a defined tier other than None.
func (t Tier) Valid() bool {
	return t != None && int(t) < len(table)
}

// Code returns the score-tier code, 0 for None or undefined tiers.
func (t Tier) Code() int {
	if int(t) >= len(table) {
		return 0
	}
	return table[t].code
}

// Medal returns the client nibble, 0 for None or undefined tiers.
func (t Tier) Medal() uint8 {
	if int(t) >= len(table) {
		return 0
	}
	return table[t].medal
}

func (t Tier) String() string {
	if int(t) >= len(table) {
		return "undefined"
	}
	return table[t].name
}

// Max returns the better of a and b. None ranks below every defined tier.
func Max(a, b Tier) Tier {
	if b > a {
		return b
	}
	return a
}
