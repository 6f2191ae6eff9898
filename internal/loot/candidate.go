package loot

import (
	"slices"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
)

// Category is a candidate's claim on an item.
type Category int

const (
	// CategoryNeed means at least one applicable item is an upgrade or a missing BiS piece.
	CategoryNeed Category = iota
	// CategoryGreed means the candidate is already adequately equipped.
	CategoryGreed
)

// String returns "Need" or "Greed".
func (c Category) String() string {
	if c == CategoryNeed {
		return "Need"
	}
	return "Greed"
}

// CandidateKey identifies a candidate within a ranking.
type CandidateKey struct {
	Player string
	Job    string
}

// Candidate is one (player, job) evaluated against one dropped unit.
//
// Candidate holds handles to the player's live gear records, never copies, so
// every Evaluate reads the gear as it is at that moment.
type Candidate struct {
	Player *roster.Player
	Job    *roster.JobState
	Drop   *item.Def

	applicable []*item.Def
	roll       dice.Result
	rules      *RuleSet

	evaluated bool
	needed    []*item.Def
	category  Category
	evals     map[RuleKind]Evaluation
	excluded  bool
	awarded   *item.Def
	// awardedSlot is where a gear award was equipped; empty for credits.
	awardedSlot item.Slot
}

func newCandidate(p *roster.Player, js *roster.JobState, drop *item.Def, applicable []*item.Def, roll dice.Result, rules *RuleSet) *Candidate {
	return &Candidate{
		Player:     p,
		Job:        js,
		Drop:       drop,
		applicable: applicable,
		roll:       roll,
		rules:      rules,
		category:   CategoryGreed,
	}
}

// Key returns the (player, job) identity of c.
func (c *Candidate) Key() CandidateKey {
	return CandidateKey{Player: c.Player.ID, Job: c.Job.Job.ID}
}

// Applicable returns the items from the drop this job can use at all.
func (c *Candidate) Applicable() []*item.Def { return slices.Clone(c.applicable) }

// Needed returns the subset of Applicable classified as needed by the last Evaluate.
func (c *Candidate) Needed() []*item.Def { return slices.Clone(c.needed) }

// Category returns Need or Greed as of the last Evaluate.
func (c *Candidate) Category() Category { return c.category }

// Roll returns the candidate's fixed Random roll.
func (c *Candidate) Roll() dice.Result { return c.roll }

// Excluded reports whether an ignore-capable rule dropped c from competition.
func (c *Candidate) Excluded() bool { return c.excluded }

// Evaluated reports whether Evaluate has run for c.
func (c *Candidate) Evaluated() bool { return c.evaluated }

// Awarded returns the item awarded to c, or nil.
func (c *Candidate) Awarded() *item.Def { return c.awarded }

// AwardedSlot returns the slot the awarded gear was equipped in. It is empty
// before an award and for items credited to the inventory.
func (c *Candidate) AwardedSlot() item.Slot { return c.awardedSlot }

// Evaluation returns the cached verdict of rule kind k.
//
// Postcondition: ok is false before Evaluate or when k is not an active rule.
func (c *Candidate) Evaluation(k RuleKind) (Evaluation, bool) {
	e, ok := c.evals[k]
	return e, ok
}

// canReceive reports whether id is one of the candidate's applicable items.
func (c *Candidate) canReceive(id item.ID) (*item.Def, bool) {
	for _, d := range c.applicable {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// evaluate recomputes the need classification and every active rule's verdict.
func (c *Candidate) evaluate(e *env) {
	c.needed = classifyNeed(c.applicable, c.Job, e.catalog)
	c.category = CategoryGreed
	if len(c.needed) > 0 {
		c.category = CategoryNeed
	}

	active := c.rules.Active()
	c.evals = make(map[RuleKind]Evaluation, len(active))
	c.excluded = false
	for _, r := range active {
		c.evals[r.Kind] = r.evaluate(c, e)
		if r.IgnorePlayers && r.shouldIgnore(c, e) {
			c.excluded = true
		}
	}
	c.evaluated = true
}

// value returns the cached value of k, or 0 when k was not evaluated.
func (c *Candidate) value(k RuleKind) float64 {
	return c.evals[k].Value
}

// comparator orders a before b when it returns a negative number.
// Need always precedes Greed; otherwise the first of active whose values
// differ decides, higher value first. Equal candidates compare as 0.
func comparator(active []Rule) func(a, b *Candidate) int {
	return func(a, b *Candidate) int {
		if a.category != b.category {
			if a.category == CategoryNeed {
				return -1
			}
			return 1
		}
		for _, r := range active {
			va, vb := a.value(r.Kind), b.value(r.Kind)
			switch {
			case va > vb:
				return -1
			case va < vb:
				return 1
			}
		}
		return 0
	}
}

// DecidingFactor returns what separates c from other: RuleNeedGreed when the
// categories differ, the first active rule whose values differ, or RuleNone.
//
// Precondition: both candidates were evaluated under the same RuleSet.
func (c *Candidate) DecidingFactor(other *Candidate) RuleKind {
	if c.category != other.category {
		return RuleNeedGreed
	}
	for _, r := range c.rules.Active() {
		if c.value(r.Kind) != other.value(r.Kind) {
			return r.Kind
		}
	}
	return RuleNone
}
