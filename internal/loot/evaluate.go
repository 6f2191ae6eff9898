package loot

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

// Scorer estimates a job's output with a given gear set. Higher is better.
type Scorer interface {
	Score(j *job.Job, set *gear.Set) (float64, error)
}

// env carries the collaborators rule evaluation reads from.
type env struct {
	catalog gear.Catalog
	scorer  Scorer
	logger  *zap.Logger
}

// evaluate computes r's verdict on c.
func (r Rule) evaluate(c *Candidate, e *env) Evaluation {
	switch r.Kind {
	case RuleRandom:
		total := c.roll.Total()
		return Evaluation{Value: float64(total), Reason: fmt.Sprint(total)}
	case RuleLowestItemLevel:
		il := c.Job.Current.ItemLevel(e.catalog, c.Job.Job.OffHand)
		return Evaluation{Value: -il, Reason: fmt.Sprintf("iLvl %.0f", il)}
	case RuleHighestItemLevelGain:
		gain := itemLevelGain(c, e.catalog)
		return Evaluation{Value: float64(gain), Reason: fmt.Sprintf("+%d", gain)}
	case RuleBisOverUpgrade:
		if missingBiS(c) {
			return Evaluation{Value: 1, Reason: "BiS"}
		}
		return Evaluation{Value: -1, Reason: "Upgrade"}
	case RuleRolePriority:
		key, prio := c.rules.Priority(c.Job.Job.Role)
		return Evaluation{Value: -float64(prio), Reason: fmt.Sprintf("%s (%d)", key, prio)}
	case RuleDpsGain:
		return dpsGain(c, e)
	case RuleCanUse:
		if canUseNow(c) {
			return Evaluation{Value: 1, Reason: "yes"}
		}
		return Evaluation{Value: -1, Reason: "no"}
	case RuleCanBuy:
		if canBuy(c) {
			return Evaluation{Value: 1, Reason: "yes"}
		}
		return Evaluation{Value: -1, Reason: "no"}
	}
	return Evaluation{Reason: "n/a"}
}

// shouldIgnore reports whether r, acting as a filter, drops c from competition.
// CanUse drops candidates whose holdings already cover every needed exchange
// without this drop; CanBuy drops candidates who cannot complete any needed purchase.
func (r Rule) shouldIgnore(c *Candidate, _ *env) bool {
	switch r.Kind {
	case RuleCanUse:
		return alreadySatisfied(c)
	case RuleCanBuy:
		return !canBuy(c)
	}
	return false
}

// itemLevelGain is the largest improvement any needed item brings over the
// best level currently worn in the slots it could occupy, floored at 0.
func itemLevelGain(c *Candidate, cat gear.Catalog) int {
	best := 0
	for _, d := range c.needed {
		worn := 0
		for _, slot := range occupiable(d) {
			worn = max(worn, c.Job.Current.LevelAt(cat, slot))
		}
		best = max(best, d.Level-worn)
	}
	return best
}

// missingBiS reports whether a needed item is part of the BiS target and not yet owned.
func missingBiS(c *Candidate) bool {
	for _, d := range c.needed {
		if c.Job.BiS.Count(d.ID) > c.Job.Current.Count(d.ID) {
			return true
		}
	}
	return false
}

// dpsGain scores the current gear and each needed item in each slot it fits,
// keeping whatever materia the replaced piece carried.
func dpsGain(c *Candidate, e *env) Evaluation {
	none := Evaluation{Reason: "n/a"}
	if e.scorer == nil {
		return none
	}
	baseline, err := e.scorer.Score(c.Job.Job, c.Job.Current)
	if err != nil || baseline <= 0 {
		if err != nil {
			e.logger.Warn("loot: scoring current gear failed",
				zap.String("player", c.Player.ID),
				zap.String("job", c.Job.Job.ID),
				zap.Error(err),
			)
		}
		return none
	}
	best := math.Inf(-1)
	for _, d := range c.needed {
		for _, slot := range occupiable(d) {
			trial := c.Job.Current.Clone()
			piece := gear.Piece{Item: d.ID}
			if cur, ok := trial.Get(slot); ok {
				piece.Materia = cur.Materia
			}
			trial.Put(slot, piece)
			s, err := e.scorer.Score(c.Job.Job, trial)
			if err != nil {
				e.logger.Warn("loot: scoring candidate gear failed",
					zap.String("player", c.Player.ID),
					zap.String("job", c.Job.Job.ID),
					zap.Uint32("item", uint32(d.ID)),
					zap.Error(err),
				)
				continue
			}
			best = math.Max(best, s)
		}
	}
	if math.IsInf(best, -1) {
		return none
	}
	gain := (best - baseline) / baseline
	return Evaluation{Value: gain, Reason: fmt.Sprintf("%+.2f%%", gain*100)}
}

// entriesFor returns the drop's shop entries that yield one of the needed items.
func entriesFor(c *Candidate) []item.ShopEntry {
	var out []item.ShopEntry
	for _, e := range c.Drop.Exchanges {
		for _, d := range c.needed {
			if e.Result == d.ID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// canUseNow reports whether the drop is usable immediately: gear and materials
// always are; a token is once the candidate's holdings plus this drop cover the
// token cost of a needed exchange.
func canUseNow(c *Candidate) bool {
	if !c.Drop.IsExchange() {
		return true
	}
	held := c.Player.Inventory.Count(c.Drop.ID)
	for _, e := range entriesFor(c) {
		if held+1 >= e.CostOf(c.Drop.ID) {
			return true
		}
	}
	return false
}

// alreadySatisfied reports whether the candidate holds enough tokens for every
// needed exchange without this drop.
func alreadySatisfied(c *Candidate) bool {
	if !c.Drop.IsExchange() {
		return false
	}
	entries := entriesFor(c)
	if len(entries) == 0 {
		return false
	}
	held := c.Player.Inventory.Count(c.Drop.ID)
	for _, e := range entries {
		if held < e.CostOf(c.Drop.ID) {
			return false
		}
	}
	return true
}

// canBuy reports whether the candidate holds every cost other than the dropped
// token for at least one needed exchange. Non-token drops need no purchase.
func canBuy(c *Candidate) bool {
	if !c.Drop.IsExchange() {
		return true
	}
	for _, e := range entriesFor(c) {
		ok := true
		for _, cost := range e.Costs {
			if cost.Item == c.Drop.ID {
				continue
			}
			if c.Player.Inventory.Count(cost.Item) < cost.Count {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
