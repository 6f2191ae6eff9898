// Package loot distributes dropped items among a group.
//
// A Session owns the loot manifest and one Ranking per dropped unit. Each Ranking
// orders its Candidates, one per (player, job), by Need before Greed and then by
// the session's ordered RuleSet. Awards are final: they write into the winner's
// live gear record and are never re-ranked.
package loot

import (
	"fmt"
	"strings"
)

// RuleKind identifies a comparison strategy.
type RuleKind int

const (
	// RuleNone is reported when no rule separates two candidates.
	RuleNone RuleKind = iota
	// RuleNeedGreed is reported when the Need/Greed category separates two candidates.
	RuleNeedGreed
	RuleRandom
	RuleLowestItemLevel
	RuleHighestItemLevelGain
	RuleBisOverUpgrade
	RuleRolePriority
	RuleDpsGain
	RuleCanUse
	RuleCanBuy
)

var ruleNames = map[RuleKind]string{
	RuleNone:                 "none",
	RuleNeedGreed:            "need_greed",
	RuleRandom:               "random",
	RuleLowestItemLevel:      "lowest_item_level",
	RuleHighestItemLevelGain: "highest_item_level_gain",
	RuleBisOverUpgrade:       "bis_over_upgrade",
	RuleRolePriority:         "role_priority",
	RuleDpsGain:              "dps_gain",
	RuleCanUse:               "can_use",
	RuleCanBuy:               "can_buy",
}

var ruleLabels = map[RuleKind]string{
	RuleNone:                 "None",
	RuleNeedGreed:            "Need over Greed",
	RuleRandom:               "Roll",
	RuleLowestItemLevel:      "Lowest item level",
	RuleHighestItemLevelGain: "Highest item level gain",
	RuleBisOverUpgrade:       "BiS over upgrade",
	RuleRolePriority:         "Role priority",
	RuleDpsGain:              "DPS gain",
	RuleCanUse:               "Can use now",
	RuleCanBuy:               "Can buy",
}

// String returns the configuration name of k.
func (k RuleKind) String() string {
	if n, ok := ruleNames[k]; ok {
		return n
	}
	return fmt.Sprintf("rule(%d)", int(k))
}

// Label returns the human-readable name of k.
func (k RuleKind) Label() string {
	if l, ok := ruleLabels[k]; ok {
		return l
	}
	return k.String()
}

// Configurable reports whether k may appear in a RuleSet.
func (k RuleKind) Configurable() bool {
	return k >= RuleRandom && k <= RuleCanBuy
}

// SupportsIgnore reports whether k can act as an exclusion predicate.
func (k RuleKind) SupportsIgnore() bool {
	return k == RuleCanUse || k == RuleCanBuy
}

// ParseRuleKind converts a configuration name into a configurable RuleKind.
func ParseRuleKind(name string) (RuleKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range ruleNames {
		if n == name && k.Configurable() {
			return k, nil
		}
	}
	return RuleNone, fmt.Errorf("loot: unknown rule %q", name)
}

// Rule is a stateless comparison strategy. Rules are value-equal by Kind alone.
type Rule struct {
	Kind RuleKind
	// Active rules take part in ranking.
	Active bool
	// IgnorePlayers turns an ignore-capable rule into an exclusion filter.
	IgnorePlayers bool
}

// Equal reports whether r and o are the same rule kind.
func (r Rule) Equal(o Rule) bool { return r.Kind == o.Kind }

// String returns the rule's configuration name.
func (r Rule) String() string { return r.Kind.String() }

// Evaluation is a rule's verdict on one candidate: higher values rank first.
type Evaluation struct {
	Value  float64
	Reason string
}
