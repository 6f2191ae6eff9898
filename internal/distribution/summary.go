package distribution

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cory-johannsen/lootmaster/internal/loot"
)

// Summarize renders the manifest and every ranking of sess.
//
// Each competing candidate is listed with its category, roll, and the rule
// that places it above the next candidate together with that rule's reason.
// Excluded candidates follow their ranking.
func Summarize(sess *loot.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s", sess.ID())
	if enc := sess.Encounter(); enc != "" {
		fmt.Fprintf(&b, " (%s)", enc)
	}
	fmt.Fprintf(&b, ": %s\n", sess.State())

	if entries := sess.Loot(); len(entries) > 0 {
		b.WriteString("Loot:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s x%d\n", e.Item, e.Quantity)
		}
	}
	if guaranteed := sess.Guaranteed(); len(guaranteed) > 0 {
		b.WriteString("Guaranteed:\n")
		for _, g := range guaranteed {
			mark := ""
			if g.Awarded {
				mark = " [awarded]"
			}
			fmt.Fprintf(&b, "  %s%s\n", g.Item, mark)
		}
	}

	for _, r := range sess.Rankings() {
		writeRanking(&b, r)
	}
	return b.String()
}

func writeRanking(b *strings.Builder, r *loot.Ranking) {
	fmt.Fprintf(b, "\n%s %s", r.Key(), r.Drop())
	if idx, ok := r.AwardedIndex(); ok {
		c, _ := r.At(idx)
		fmt.Fprintf(b, " -> %s/%s", c.Player, c.Job.Job.ID)
		if got := c.Awarded(); got != nil && got.ID != r.Drop().ID {
			fmt.Fprintf(b, " as %s", got)
		}
	}
	b.WriteString("\n")
	if r.Len() == 0 {
		b.WriteString("  no candidates\n")
	} else {
		tw := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tPlayer\tJob\tCategory\tRoll\tAhead by")
		for i, c := range r.Candidates() {
			factor := "-"
			if k, ok := r.DecidingFactor(i); ok {
				factor = k.Label()
				if ev, ok := c.Evaluation(k); ok && ev.Reason != "" {
					factor += " (" + ev.Reason + ")"
				}
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%d\t%s\n",
				i+1, c.Player, c.Job.Job.ID, c.Category(), c.Roll().Total(), factor)
		}
		_ = tw.Flush()
	}
	for _, c := range r.Excluded() {
		fmt.Fprintf(b, "  excluded: %s/%s\n", c.Player, c.Job.Job.ID)
	}
}
