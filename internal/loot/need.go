package loot

import (
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
)

// classifyNeed returns the applicable items js still needs. An item is needed
// when the BiS target holds more copies of it than current gear does, or when
// it is neither a unique item already owned nor matched or beaten in every slot
// it could occupy.
func classifyNeed(applicable []*item.Def, js *roster.JobState, cat gear.Catalog) []*item.Def {
	var needed []*item.Def
	for _, d := range applicable {
		if isNeeded(d, js.Current, js.BiS, cat) {
			needed = append(needed, d)
		}
	}
	return needed
}

func isNeeded(d *item.Def, current, bis *gear.Set, cat gear.Catalog) bool {
	if bis.Count(d.ID) > current.Count(d.ID) {
		return true
	}
	uniqueOwned := d.Unique && current.Contains(d.ID)
	return !(uniqueOwned || covered(d, current, cat))
}

// covered reports whether every slot d could occupy already holds an item of
// at least d's level. Items without slots are always covered.
func covered(d *item.Def, current *gear.Set, cat gear.Catalog) bool {
	for _, slot := range occupiable(d) {
		if current.LevelAt(cat, slot) < d.Level {
			return false
		}
	}
	return true
}

// occupiable expands d's slots with their interchangeable partners, so a ring
// declared for one hand is checked against both.
func occupiable(d *item.Def) []item.Slot {
	out := make([]item.Slot, 0, len(d.Slots)+1)
	seen := make(map[item.Slot]bool, 2)
	add := func(s item.Slot) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range d.Slots {
		add(s)
		if p, ok := s.Partner(); ok {
			add(p)
		}
	}
	return out
}

// applicableItems returns what j could take from drop: the drop itself when it
// is gear the job can equip, the job's exchange results when it is a token, and
// the drop for any job when it is a plain material.
func applicableItems(drop *item.Def, jobID string, cat gear.Catalog) []*item.Def {
	switch {
	case drop.IsExchange():
		var out []*item.Def
		seen := make(map[item.ID]bool, len(drop.Exchanges))
		for _, e := range drop.Exchanges {
			d, ok := cat.Item(e.Result)
			if !ok || seen[d.ID] || !d.IsGear() || !d.UsableBy(jobID) {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
		return out
	case drop.IsGear():
		if drop.UsableBy(jobID) {
			return []*item.Def{drop}
		}
		return nil
	default:
		return []*item.Def{drop}
	}
}
