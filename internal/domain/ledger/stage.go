package ledger

import "github.com/okian/hiscore/internal/domain/tier"

// Stage is one play result as reported by the client.
type Stage struct {
	// Song is the song id, -1 when the client omitted it.
	Song int
	// Slot is the difficulty chart the stage was played on.
	Slot int
	// MedalField packs one medal nibble per slot at bit offset slot*4.
	MedalField int64
	// Score is the reported score, 0 when omitted.
	Score int64
}

// Chart returns the chart the stage was played on.
func (s Stage) Chart() ChartID {
	return ChartID{Song: s.Song, Slot: s.Slot}
}

// ExtractMedal returns the 4-bit medal nibble for slot out of field.
func ExtractMedal(field int64, slot int) uint8 {
	if slot < 0 || slot >= 16 {
		return 0
	}
	return uint8((uint64(field) >> (uint(slot) * 4)) & tier.MaxNibble)
}

// ReportedTier resolves the tier a stage reports for its own slot. ok is
// false when the nibble has no table entry.
func ReportedTier(field int64, slot int) (tier.Tier, bool) {
	return tier.FromMedal(ExtractMedal(field, slot))
}

// ExtractReportedTier returns the score-tier code reported for slot, or 0
// when the nibble is not a known medal.
func ExtractReportedTier(field int64, slot int) int {
	t, _ := ReportedTier(field, slot)
	return t.Code()
}

// StageOutcome describes what happened to a single stage.
type StageOutcome struct {
	Chart       ChartID
	Accepted    bool
	UnknownTier bool
	Nibble      uint8
	Record      Record
}

// Summary aggregates the outcome of ApplyStages.
type Summary struct {
	Merged       int
	Skipped      int
	UnknownTiers int
	Outcomes     []StageOutcome
}

// ApplyStages merges every stage into l in order. Stages outside b are
// skipped; stages whose medal nibble is unknown merge with tier.None.
// Negative scores are clamped to 0.
func (l *Ledger) ApplyStages(b Bounds, stages []Stage) Summary {
	sum := Summary{Outcomes: make([]StageOutcome, 0, len(stages))}
	for _, st := range stages {
		c := st.Chart()
		out := StageOutcome{Chart: c}
		if !b.Accepts(c) {
			sum.Skipped++
			sum.Outcomes = append(sum.Outcomes, out)
			continue
		}
		out.Nibble = ExtractMedal(st.MedalField, c.Slot)
		t, ok := tier.FromMedal(out.Nibble)
		if !ok {
			out.UnknownTier = true
			sum.UnknownTiers++
		}
		rec, _ := l.Merge(b, c, clampScore(st.Score), t)
		out.Accepted = true
		out.Record = rec
		sum.Merged++
		sum.Outcomes = append(sum.Outcomes, out)
	}
	return sum
}

func clampScore(s int64) uint32 {
	switch {
	case s < 0:
		return 0
	case s > int64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(s)
}
