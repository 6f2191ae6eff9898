package loot

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

// unrankedPriority is the role priority of roles missing from a priority table.
const unrankedPriority = 1 << 10

// DefaultRandomRoll is the roll each candidate receives for the Random rule.
const DefaultRandomRoll = "1d100"

// RuleSet is the ordered list of rules a session ranks by.
//
// Sessions keep their own Clone; changes to the original never reach a running session.
type RuleSet struct {
	Rules []Rule
	// Strict ranks melee, ranged and caster separately via StrictRolePriority;
	// otherwise RolePriority ranks tank, healer and dps.
	Strict             bool
	RolePriority       map[job.Role]int
	StrictRolePriority map[job.Role]int
	RandomRoll         dice.Expression
}

// DefaultRolePriority ranks dps before tanks before healers.
func DefaultRolePriority() map[job.Role]int {
	return map[job.Role]int{job.RoleDPS: 1, job.RoleTank: 2, job.RoleHealer: 3}
}

// DefaultStrictRolePriority ranks melee, caster, ranged, tank, healer.
func DefaultStrictRolePriority() map[job.Role]int {
	return map[job.Role]int{
		job.RoleMelee:  1,
		job.RoleCaster: 2,
		job.RoleRanged: 3,
		job.RoleTank:   4,
		job.RoleHealer: 5,
	}
}

// DefaultRuleSet returns the rule order used when nothing is configured.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Rules: []Rule{
			{Kind: RuleBisOverUpgrade, Active: true},
			{Kind: RuleRolePriority, Active: true},
			{Kind: RuleHighestItemLevelGain, Active: true},
			{Kind: RuleLowestItemLevel, Active: true},
			{Kind: RuleRandom, Active: true},
			{Kind: RuleDpsGain},
			{Kind: RuleCanUse},
			{Kind: RuleCanBuy},
		},
		RolePriority:       DefaultRolePriority(),
		StrictRolePriority: DefaultStrictRolePriority(),
		RandomRoll:         dice.MustParse(DefaultRandomRoll),
	}
}

// Clone returns a deep copy of rs.
func (rs *RuleSet) Clone() *RuleSet {
	return &RuleSet{
		Rules:              slices.Clone(rs.Rules),
		Strict:             rs.Strict,
		RolePriority:       maps.Clone(rs.RolePriority),
		StrictRolePriority: maps.Clone(rs.StrictRolePriority),
		RandomRoll:         rs.RandomRoll,
	}
}

// Active returns the active rules in configured order.
func (rs *RuleSet) Active() []Rule {
	out := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// Rule returns the configured rule of kind k.
func (rs *RuleSet) Rule(k RuleKind) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Kind == k {
			return r, true
		}
	}
	return Rule{}, false
}

// Priority returns the configured priority of role under the current mode.
// Lower numbers rank first; roles missing from the table rank last.
func (rs *RuleSet) Priority(role job.Role) (job.Role, int) {
	table, key := rs.RolePriority, role.Group()
	if rs.Strict {
		table, key = rs.StrictRolePriority, role
	}
	if p, ok := table[key]; ok {
		return key, p
	}
	return key, unrankedPriority
}

// Validate checks that rs satisfies its invariants.
//
// Postcondition: Returns nil iff every rule is configurable, no kind repeats,
// IgnorePlayers is only set on ignore-capable kinds and the roll is well formed.
func (rs *RuleSet) Validate() error {
	var errs []error
	seen := make(map[RuleKind]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if !r.Kind.Configurable() {
			errs = append(errs, fmt.Errorf("rules[%d]: %s cannot be configured", i, r.Kind))
		}
		if seen[r.Kind] {
			errs = append(errs, fmt.Errorf("rules[%d]: %s listed more than once", i, r.Kind))
		}
		seen[r.Kind] = true
		if r.IgnorePlayers && !r.Kind.SupportsIgnore() {
			errs = append(errs, fmt.Errorf("rules[%d]: %s cannot ignore players", i, r.Kind))
		}
	}
	if rs.RandomRoll.Count < 1 || rs.RandomRoll.Sides < 2 {
		errs = append(errs, errors.New("random roll must be a parsed dice expression"))
	}
	return errors.Join(errs...)
}
