package ledger

import "github.com/okian/hiscore/internal/domain/tier"

// Merge folds one reported play into the ledger and returns the resulting
// record. ok is false when c falls outside b, in which case the ledger is
// left untouched.
//
// Score and clear tier keep the maximum seen so far, the play count grows
// by one. An absent tier (tier.None) never lowers an existing one.
func (l *Ledger) Merge(b Bounds, c ChartID, score uint32, t tier.Tier) (Record, bool) {
	if !b.Accepts(c) {
		return Record{}, false
	}
	cur, exists := l.records[c]
	if !exists {
		r := Record{BestScore: score, PlayCount: 1, ClearTier: t}
		l.records[c] = r
		return r, true
	}
	cur.BestScore = max(cur.BestScore, score)
	cur.PlayCount++
	cur.ClearTier = tier.Max(cur.ClearTier, t)
	l.records[c] = cur
	return cur, true
}
