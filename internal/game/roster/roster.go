// Package roster holds the group snapshot the loot engine distributes to.
package roster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

// ErrPlayerNotFound is returned when a lookup names a player outside the group.
var ErrPlayerNotFound = errors.New("player not found")

// JobState is one job a player plays, with handles to its live gear records.
type JobState struct {
	Job   *job.Job
	Level int
	// Current is the gear the player wears on this job.
	Current *gear.Set
	// BiS is the best-in-slot target the player aims for on this job.
	BiS *gear.Set
}

// NewJobState returns a JobState with empty gear records.
func NewJobState(j *job.Job, level int) *JobState {
	return &JobState{Job: j, Level: level, Current: gear.NewSet(), BiS: gear.NewSet()}
}

// Inventory tracks item and currency holdings.
// All methods are safe for concurrent use.
type Inventory struct {
	mu     sync.RWMutex
	counts map[item.ID]int
}

// NewInventory returns an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{counts: make(map[item.ID]int)}
}

// Count returns the quantity held of id.
func (inv *Inventory) Count(id item.ID) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.counts[id]
}

// Add changes the quantity of id by delta.
//
// Postcondition: Count(id) is never negative; entries reaching 0 are removed.
func (inv *Inventory) Add(id item.ID, delta int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n := inv.counts[id] + delta
	if n <= 0 {
		delete(inv.counts, id)
		return
	}
	inv.counts[id] = n
}

// Snapshot returns a copy of all holdings.
func (inv *Inventory) Snapshot() map[item.ID]int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make(map[item.ID]int, len(inv.counts))
	for id, n := range inv.counts {
		out[id] = n
	}
	return out
}

// Player is a group member.
type Player struct {
	ID   string
	Name string
	// Position is the player's slot in the group, e.g. "MT" or "H1".
	Position string
	// Jobs lists the jobs the player plays; the main job comes first.
	Jobs      []*JobState
	Inventory *Inventory
}

// Job returns the player's state for jobID.
func (p *Player) Job(jobID string) (*JobState, bool) {
	for _, js := range p.Jobs {
		if js.Job.ID == jobID {
			return js, true
		}
	}
	return nil, false
}

// MainJob returns the player's first job, or nil if they have none.
func (p *Player) MainJob() *JobState {
	if len(p.Jobs) == 0 {
		return nil
	}
	return p.Jobs[0]
}

// String returns the player's display name.
func (p *Player) String() string {
	if p.Position == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Position)
}

// Group is an ordered snapshot of the players sharing an encounter.
type Group struct {
	ID      string
	Name    string
	Members []*Player
}

// Player returns the member with id.
//
// Postcondition: Returns the player or ErrPlayerNotFound.
func (g *Group) Player(id string) (*Player, error) {
	for _, p := range g.Members {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
}
