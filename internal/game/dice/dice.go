// Package dice provides the randomness abstraction behind loot rolls.
package dice

import (
	"fmt"
	"strings"
)

// Source is the randomness provider for rolls.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64
}

// Result holds the audit trail of a single roll.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type Result struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r Result) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll as "2d6+3: 4+5 +3 = 12".
func (r Result) String() string {
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprint(d)
	}
	s := fmt.Sprintf("%s: %s", r.Expression, strings.Join(parts, "+"))
	if r.Modifier != 0 {
		s += fmt.Sprintf(" %+d", r.Modifier)
	}
	return fmt.Sprintf("%s = %d", s, r.Total())
}
