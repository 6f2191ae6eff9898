package loot

import (
	"fmt"
	"slices"

	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

// UnitKey identifies one dropped unit: the item and its sequence within the
// requested quantity.
type UnitKey struct {
	Item item.ID
	Seq  int
}

// String renders the key as "item#seq".
func (k UnitKey) String() string { return fmt.Sprintf("%d#%d", k.Item, k.Seq) }

// Ranking orders every candidate for one dropped unit.
//
// Invariant: once awarded, a Ranking never re-sorts and never accepts another award.
type Ranking struct {
	key  UnitKey
	drop *item.Def
	// seeded holds every candidate in roster order; sorting starts from it so
	// equal candidates always keep roster order.
	seeded     []*Candidate
	candidates []*Candidate
	excluded   []*Candidate
	awarded    int
}

func newRanking(key UnitKey, drop *item.Def, seeded []*Candidate) *Ranking {
	return &Ranking{
		key:        key,
		drop:       drop,
		seeded:     seeded,
		candidates: slices.Clone(seeded),
		awarded:    -1,
	}
}

// Key returns the unit this ranking distributes.
func (r *Ranking) Key() UnitKey { return r.key }

// Drop returns the dropped item.
func (r *Ranking) Drop() *item.Def { return r.drop }

// Candidates returns the competing candidates, best first.
func (r *Ranking) Candidates() []*Candidate { return slices.Clone(r.candidates) }

// Excluded returns candidates removed from competition by an ignore rule.
func (r *Ranking) Excluded() []*Candidate { return slices.Clone(r.excluded) }

// Len returns the number of competing candidates.
func (r *Ranking) Len() int { return len(r.candidates) }

// At returns the competing candidate at idx.
func (r *Ranking) At(idx int) (*Candidate, bool) {
	if idx < 0 || idx >= len(r.candidates) {
		return nil, false
	}
	return r.candidates[idx], true
}

// Top returns the best-ranked competing candidate.
func (r *Ranking) Top() (*Candidate, bool) { return r.At(0) }

// IsAwarded reports whether the unit has been awarded.
func (r *Ranking) IsAwarded() bool { return r.awarded >= 0 }

// AwardedIndex returns the index of the winning candidate.
//
// Postcondition: ok is false until an award succeeds; afterwards idx never changes.
func (r *Ranking) AwardedIndex() (idx int, ok bool) {
	return r.awarded, r.awarded >= 0
}

// Resolved reports whether the unit needs no further decision: it was
// awarded, nobody competes for it, or the best candidate only greeds it.
func (r *Ranking) Resolved() bool {
	if r.IsAwarded() || len(r.candidates) == 0 {
		return true
	}
	return r.candidates[0].Category() == CategoryGreed
}

// DecidingFactor explains why the candidate at idx ranks above the one at idx+1.
//
// Postcondition: ok is false when idx+1 is out of range.
func (r *Ranking) DecidingFactor(idx int) (RuleKind, bool) {
	a, ok := r.At(idx)
	if !ok {
		return RuleNone, false
	}
	b, ok := r.At(idx + 1)
	if !ok {
		return RuleNone, false
	}
	return a.DecidingFactor(b), true
}

// rank re-evaluates every candidate and stably sorts the competitors.
// Awarded rankings are left untouched.
func (r *Ranking) rank(e *env) {
	if r.IsAwarded() {
		return
	}
	competing := make([]*Candidate, 0, len(r.seeded))
	var excluded []*Candidate
	for _, c := range r.seeded {
		c.evaluate(e)
		if c.Excluded() {
			excluded = append(excluded, c)
			continue
		}
		competing = append(competing, c)
	}
	slices.SortStableFunc(competing, comparator(activeRules(competing)))
	r.candidates = competing
	r.excluded = excluded
}

// activeRules returns the rule list shared by cs; candidates of one ranking
// are built under the same RuleSet.
func activeRules(cs []*Candidate) []Rule {
	if len(cs) == 0 {
		return nil
	}
	return cs[0].rules.Active()
}

// award marks the candidate at idx as the winner of d.
func (r *Ranking) award(idx int, d *item.Def) bool {
	if r.IsAwarded() {
		return false
	}
	c, ok := r.At(idx)
	if !ok {
		return false
	}
	r.awarded = idx
	c.awarded = d
	return true
}
