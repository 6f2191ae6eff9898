package loot_test

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
	"github.com/cory-johannsen/lootmaster/internal/loot"
)

const (
	oldHelm    item.ID = 90
	helm       item.ID = 100
	betterHelm item.ID = 110
	ring       item.ID = 200
	band       item.ID = 210
	highBand   item.ID = 220
	lowBand    item.ID = 230
	page       item.ID = 301
	tomestone  item.ID = 302
	dusting    item.ID = 400
	sword      item.ID = 500
	tankOnly   item.ID = 600
)

var jobs = map[string]*job.Job{
	"pld": {ID: "pld", Name: "Paladin", Role: job.RoleTank, OffHand: true},
	"war": {ID: "war", Name: "Warrior", Role: job.RoleTank},
	"whm": {ID: "whm", Name: "White Mage", Role: job.RoleHealer},
	"drg": {ID: "drg", Name: "Dragoon", Role: job.RoleMelee},
	"brd": {ID: "brd", Name: "Bard", Role: job.RoleRanged},
	"blm": {ID: "blm", Name: "Black Mage", Role: job.RoleCaster},
}

var catalog = mustCatalog()

func mustCatalog() *item.Registry {
	r, err := item.NewRegistryFrom([]*item.Def{
		{ID: oldHelm, Name: "Old Helm", Level: 400, Slots: []item.Slot{item.SlotHead}},
		{ID: helm, Name: "Helm of Valor", Level: 500, Slots: []item.Slot{item.SlotHead}},
		{ID: betterHelm, Name: "Helm of Glory", Level: 510, Slots: []item.Slot{item.SlotHead}},
		{ID: ring, Name: "Band of Ages", Level: 500, Slots: []item.Slot{item.SlotRing1}, Unique: true},
		{ID: band, Name: "Band of Mending", Level: 500, Slots: []item.Slot{item.SlotRing1}},
		{ID: highBand, Name: "Band of Kings", Level: 600, Slots: []item.Slot{item.SlotRing1}},
		{ID: lowBand, Name: "Copper Band", Level: 400, Slots: []item.Slot{item.SlotRing1}},
		{ID: page, Name: "Page", Exchanges: []item.ShopEntry{{
			Result: helm,
			Costs:  []item.Cost{{Item: page, Count: 4}, {Item: tomestone, Count: 1}},
		}}},
		{ID: tomestone, Name: "Tomestone"},
		{ID: dusting, Name: "Dusting"},
		{ID: sword, Name: "Longsword", Level: 500, Slots: []item.Slot{item.SlotMainHand}, Jobs: []string{"pld", "drg"}},
		{ID: tankOnly, Name: "Bulwark", Level: 500, Slots: []item.Slot{item.SlotOffHand}, Jobs: []string{"gnb"}},
	})
	if err != nil {
		panic(err)
	}
	return r
}

func newPlayer(id string, jobIDs ...string) *roster.Player {
	p := &roster.Player{ID: id, Name: id, Inventory: roster.NewInventory()}
	for _, j := range jobIDs {
		p.Jobs = append(p.Jobs, roster.NewJobState(jobs[j], 100))
	}
	return p
}

func group(members ...*roster.Player) *roster.Group {
	return &roster.Group{ID: "g", Name: "Static", Members: members}
}

func deps() loot.Deps {
	return loot.Deps{Catalog: catalog, Source: dice.NewSeededSource(7, 11), Logger: zap.NewNop()}
}

func rules(kinds ...loot.RuleKind) *loot.RuleSet {
	rs := loot.DefaultRuleSet()
	rs.Rules = nil
	for _, k := range kinds {
		rs.Rules = append(rs.Rules, loot.Rule{Kind: k, Active: true})
	}
	return rs
}

func newSession(rs *loot.RuleSet, members ...*roster.Player) *loot.Session {
	return loot.NewSession(group(members...), rs, deps())
}

func equip(set *gear.Set, slot item.Slot, id item.ID, materia ...gear.Materia) {
	set.Put(slot, gear.Piece{Item: id, Materia: materia})
}

// levelScorer scores a set as one plus the sum of its item levels.
type levelScorer struct{}

func (levelScorer) Score(_ *job.Job, set *gear.Set) (float64, error) {
	total := 1.0
	for _, p := range set.Pieces() {
		if d, ok := catalog.Item(p.Item); ok {
			total += float64(d.Level)
		}
	}
	return total, nil
}

type failingScorer struct{}

func (failingScorer) Score(*job.Job, *gear.Set) (float64, error) {
	return 0, errors.New("scorer offline")
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Equip(context.Context, *roster.Player, *roster.JobState, item.Slot, gear.Piece) error {
	return errors.New("gear store unavailable")
}

func (failingWriter) Credit(context.Context, *roster.Player, item.ID, int) error {
	return errors.New("inventory store unavailable")
}

func keys(cs []*loot.Candidate) []loot.CandidateKey {
	out := make([]loot.CandidateKey, len(cs))
	for i, c := range cs {
		out[i] = c.Key()
	}
	return out
}
