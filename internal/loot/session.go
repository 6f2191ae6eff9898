package loot

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/encounter"
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
)

// State is a session's lifecycle stage. States only move forward, except that
// LootChosen may revert to Started.
type State int

const (
	StateStarted State = iota
	StateLootChosen
	StateDistributionStarted
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateLootChosen:
		return "loot_chosen"
	case StateDistributionStarted:
		return "distribution_started"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// LootEntry is one line of the loot manifest.
type LootEntry struct {
	Item     *item.Def
	Quantity int
}

// GuaranteedEntry is one line of the guaranteed-loot manifest.
type GuaranteedEntry struct {
	Item    *item.Def
	Awarded bool
}

// Deps are the collaborators a Session reads from and writes to.
type Deps struct {
	Catalog gear.Catalog
	// Scorer feeds the DpsGain rule; nil makes that rule neutral.
	Scorer Scorer
	// Writer applies awards; nil uses roster.LiveWriter.
	Writer roster.Writer
	// Source seeds the session's rolls; nil uses a crypto source.
	Source dice.Source
	// Logger may be nil.
	Logger *zap.Logger
}

// Session drives one distribution attempt from loot selection to final award.
//
// A Session is not safe for concurrent use: exactly one caller drives it and
// every operation runs to completion before returning. Mutating operations
// report failure by returning false and leave the session unchanged.
type Session struct {
	id         uuid.UUID
	encounter  string
	members    []*roster.Player
	loot       []LootEntry
	guaranteed []GuaranteedEntry
	rules      *RuleSet
	state      State

	rankings []*Ranking
	byKey    map[UnitKey]*Ranking

	seed   uint64
	roller *dice.Roller
	env    *env
	writer roster.Writer
	logger *zap.Logger
}

// NewSession starts a session for group under a private copy of rules.
//
// Precondition: group and rules must be non-nil; deps.Catalog must be non-nil.
// Postcondition: State() == StateStarted with empty manifests.
func NewSession(group *roster.Group, rules *RuleSet, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := deps.Writer
	if writer == nil {
		writer = roster.LiveWriter{}
	}
	src := deps.Source
	if src == nil {
		src = dice.NewCryptoSource()
	}
	s := &Session{
		id:      uuid.New(),
		members: slices.Clone(group.Members),
		rules:   rules.Clone(),
		state:   StateStarted,
		seed:    src.Uint64(),
		writer:  writer,
	}
	s.logger = logger.With(zap.String("session", s.id.String()))
	s.env = &env{catalog: deps.Catalog, scorer: deps.Scorer, logger: s.logger}
	s.roller = dice.NewRoller(s.rules.RandomRoll, s.logger)
	return s
}

// NewEncounterSession starts a session whose manifests list every item enc can
// drop at quantity 0 and every guaranteed item unawarded.
//
// Postcondition: Returns a Started session or an error naming an unknown item.
func NewEncounterSession(enc *encounter.Encounter, group *roster.Group, rules *RuleSet, deps Deps) (*Session, error) {
	s := NewSession(group, rules, deps)
	s.encounter = enc.ID
	for _, id := range enc.Loot {
		if !s.AddLoot(id, 0) {
			return nil, fmt.Errorf("encounter %q: unknown loot item %d", enc.ID, id)
		}
	}
	for _, id := range enc.Guaranteed {
		if !s.AddGuaranteed(id) {
			return nil, fmt.Errorf("encounter %q: unknown guaranteed item %d", enc.ID, id)
		}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Encounter returns the encounter id the session was built from, or "".
func (s *Session) Encounter() string { return s.encounter }

// State returns the current lifecycle stage.
func (s *Session) State() State { return s.state }

// Members returns the roster snapshot.
func (s *Session) Members() []*roster.Player { return slices.Clone(s.members) }

// Rules returns a copy of the session's rule set.
func (s *Session) Rules() *RuleSet { return s.rules.Clone() }

// Loot returns a copy of the loot manifest.
func (s *Session) Loot() []LootEntry { return slices.Clone(s.loot) }

// Guaranteed returns a copy of the guaranteed-loot manifest.
func (s *Session) Guaranteed() []GuaranteedEntry { return slices.Clone(s.guaranteed) }

// Rankings returns every ranking in manifest order.
func (s *Session) Rankings() []*Ranking { return slices.Clone(s.rankings) }

// Ranking returns the ranking for key.
func (s *Session) Ranking(key UnitKey) (*Ranking, bool) {
	r, ok := s.byKey[key]
	return r, ok
}

// AddLoot adds qty units of id to the manifest, merging with an existing entry.
//
// Postcondition: Returns false unless the state is Started, qty >= 0 and id is known.
func (s *Session) AddLoot(id item.ID, qty int) bool {
	if s.state != StateStarted || qty < 0 {
		return false
	}
	for i := range s.loot {
		if s.loot[i].Item.ID == id {
			s.loot[i].Quantity += qty
			return true
		}
	}
	d, ok := s.env.catalog.Item(id)
	if !ok {
		return false
	}
	s.loot = append(s.loot, LootEntry{Item: d, Quantity: qty})
	return true
}

// SetLootQuantity sets the requested quantity of a manifest entry.
//
// Postcondition: Returns false unless the state is Started, qty >= 0 and id is in the manifest.
func (s *Session) SetLootQuantity(id item.ID, qty int) bool {
	if s.state != StateStarted || qty < 0 {
		return false
	}
	for i := range s.loot {
		if s.loot[i].Item.ID == id {
			s.loot[i].Quantity = qty
			return true
		}
	}
	return false
}

// AddGuaranteed adds id to the guaranteed-loot manifest.
//
// Postcondition: Returns false unless the state is Started, id is known and not yet listed.
func (s *Session) AddGuaranteed(id item.ID) bool {
	if s.state != StateStarted {
		return false
	}
	for _, g := range s.guaranteed {
		if g.Item.ID == id {
			return false
		}
	}
	d, ok := s.env.catalog.Item(id)
	if !ok {
		return false
	}
	s.guaranteed = append(s.guaranteed, GuaranteedEntry{Item: d})
	return true
}

// SetRuleSet replaces the session's rules with a copy of rs.
//
// Postcondition: Returns false unless the state is Started.
func (s *Session) SetRuleSet(rs *RuleSet) bool {
	if s.state != StateStarted {
		return false
	}
	s.rules = rs.Clone()
	s.roller = dice.NewRoller(s.rules.RandomRoll, s.logger)
	return true
}

// UpdateRoster replaces the roster snapshot and discards all rankings; a
// LootChosen session rebuilds them at once.
//
// Postcondition: Returns false once distribution has started.
func (s *Session) UpdateRoster(group *roster.Group) bool {
	if s.state >= StateDistributionStarted {
		return false
	}
	s.members = slices.Clone(group.Members)
	s.rankings, s.byKey = nil, nil
	if s.state == StateLootChosen {
		s.Evaluate()
	}
	return true
}

// Evaluate locks the loot manifest, builds rankings if none exist and re-ranks
// every unawarded unit against current gear.
//
// Postcondition: State() >= StateLootChosen.
func (s *Session) Evaluate() {
	if s.state == StateStarted {
		s.state = StateLootChosen
		s.logger.Debug("loot chosen", zap.Int("entries", len(s.loot)))
	}
	if s.byKey == nil {
		s.build()
	}
	for _, r := range s.rankings {
		r.rank(s.env)
	}
	s.checkFinished()
}

// RevertToChooseLoot reopens the loot manifest and rule overrides.
//
// Postcondition: Returns true and moves to Started iff the state was LootChosen.
func (s *Session) RevertToChooseLoot() bool {
	if s.state != StateLootChosen {
		return false
	}
	s.state = StateStarted
	s.rankings, s.byKey = nil, nil
	s.logger.Debug("reverted to choosing loot")
	return true
}

// AwardItem gives chosen to the candidate at idx of the ranking for key and
// equips it, carrying over the materia of the candidate's BiS piece in the
// resolved slot. alternate selects the second slot of a paired item.
//
// Postcondition: Returns false, changing nothing, if the session is not
// distributing, the ranking is unknown or already awarded, idx is out of range,
// chosen is not applicable to the candidate, or the writer fails.
func (s *Session) AwardItem(ctx context.Context, key UnitKey, chosen item.ID, idx int, alternate bool) bool {
	if s.state < StateLootChosen || s.state == StateFinished {
		return false
	}
	r, ok := s.byKey[key]
	if !ok || r.IsAwarded() {
		return false
	}
	c, ok := r.At(idx)
	if !ok {
		return false
	}
	d, ok := c.canReceive(chosen)
	if !ok {
		return false
	}

	log := s.logger.With(
		zap.Stringer("unit", key),
		zap.String("player", c.Player.ID),
		zap.String("job", c.Job.Job.ID),
		zap.Uint32("item", uint32(d.ID)),
	)
	var slot item.Slot
	if d.IsGear() {
		slot = resolveSlot(d, c.Job, s.env.catalog, alternate)
		piece := gear.Piece{Item: d.ID}
		if bis, ok := c.Job.BiS.Get(slot); ok {
			piece.Materia = bis.Materia
		}
		if err := s.writer.Equip(ctx, c.Player, c.Job, slot, piece); err != nil {
			log.Warn("equipping awarded item failed", zap.Error(err))
			return false
		}
		log = log.With(zap.String("slot", string(slot)))
	} else if err := s.writer.Credit(ctx, c.Player, d.ID, 1); err != nil {
		log.Warn("crediting awarded item failed", zap.Error(err))
		return false
	}

	r.award(idx, d)
	c.awardedSlot = slot
	log.Info("item awarded", zap.Int("index", idx))
	s.startDistribution()
	if s.state != StateFinished {
		s.Evaluate()
	}
	return true
}

// AwardGuaranteedLoot credits one unit of id to every roster member.
//
// A Started session is evaluated first, which locks the loot manifest.
//
// Postcondition: Returns false if the session is Finished, the entry is
// unknown or was already awarded. Writer failures are logged; the entry is
// awarded regardless because credits already applied cannot be undone.
func (s *Session) AwardGuaranteedLoot(ctx context.Context, id item.ID) bool {
	if s.state == StateFinished {
		return false
	}
	idx := slices.IndexFunc(s.guaranteed, func(g GuaranteedEntry) bool { return g.Item.ID == id })
	if idx < 0 || s.guaranteed[idx].Awarded {
		return false
	}
	if s.state == StateStarted {
		s.Evaluate()
	}
	for _, p := range s.members {
		if err := s.writer.Credit(ctx, p, id, 1); err != nil {
			s.logger.Warn("crediting guaranteed loot failed",
				zap.String("player", p.ID),
				zap.Uint32("item", uint32(id)),
				zap.Error(err),
			)
		}
	}
	s.guaranteed[idx].Awarded = true
	s.logger.Info("guaranteed loot awarded", zap.Uint32("item", uint32(id)), zap.Int("members", len(s.members)))
	s.startDistribution()
	s.checkFinished()
	return true
}

func (s *Session) startDistribution() {
	if s.state < StateDistributionStarted {
		s.state = StateDistributionStarted
		s.logger.Debug("distribution started")
	}
}

// checkFinished moves a distributing session to Finished once every ranking is
// resolved and every guaranteed item was handed out.
func (s *Session) checkFinished() {
	if s.state != StateDistributionStarted {
		return
	}
	for _, r := range s.rankings {
		if !r.Resolved() {
			return
		}
	}
	for _, g := range s.guaranteed {
		if !g.Awarded {
			return
		}
	}
	s.state = StateFinished
	s.logger.Info("distribution finished", zap.Int("units", len(s.rankings)))
}

// build materializes one ranking per requested unit, seeding each with every
// (member, job) that can use the drop in roster order.
func (s *Session) build() {
	s.rankings = nil
	s.byKey = make(map[UnitKey]*Ranking)
	for _, entry := range s.loot {
		for seq := range entry.Quantity {
			key := UnitKey{Item: entry.Item.ID, Seq: seq}
			r := newRanking(key, entry.Item, s.candidatesFor(key, entry.Item))
			s.rankings = append(s.rankings, r)
			s.byKey[key] = r
		}
	}
}

func (s *Session) candidatesFor(key UnitKey, drop *item.Def) []*Candidate {
	var out []*Candidate
	material := !drop.IsGear() && !drop.IsExchange()
	for _, p := range s.members {
		jobs := p.Jobs
		if material && len(jobs) > 1 {
			jobs = jobs[:1]
		}
		for _, js := range jobs {
			applicable := applicableItems(drop, js.Job.ID, s.env.catalog)
			if len(applicable) == 0 {
				continue
			}
			src := dice.NewSeededSource(s.seed, candidateStream(key, p.ID, js.Job.ID))
			roll := s.roller.Roll(src, p.ID+"/"+js.Job.ID+"/"+key.String())
			out = append(out, newCandidate(p, js, drop, applicable, roll, s.rules))
		}
	}
	return out
}

// candidateStream derives a per-candidate PCG stream so a candidate's roll
// survives rankings being rebuilt.
func candidateStream(key UnitKey, player, jobID string) uint64 {
	h := fnv.New64a()
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(key.Item))
	binary.LittleEndian.PutUint64(buf[4:], uint64(key.Seq))
	h.Write(buf[:])
	h.Write([]byte(player))
	h.Write([]byte{0})
	h.Write([]byte(jobID))
	return h.Sum64()
}

// resolveSlot picks where a gear item goes. alternate selects the second slot
// of a pair. Otherwise a BiS slot for this item that does not already hold it
// wins, then an empty slot, then the slot with the lowest current level.
func resolveSlot(d *item.Def, js *roster.JobState, cat gear.Catalog, alternate bool) item.Slot {
	slots := occupiable(d)
	if alternate && len(slots) > 1 {
		return slots[1]
	}
	for _, slot := range slots {
		bis, ok := js.BiS.Get(slot)
		if !ok || bis.Item != d.ID {
			continue
		}
		if cur, ok := js.Current.Get(slot); !ok || cur.Item != d.ID {
			return slot
		}
	}
	best, bestLevel := slots[0], -1
	for _, slot := range slots {
		if _, ok := js.Current.Get(slot); !ok {
			return slot
		}
		if lvl := js.Current.LevelAt(cat, slot); bestLevel < 0 || lvl < bestLevel {
			best, bestLevel = slot, lvl
		}
	}
	return best
}
