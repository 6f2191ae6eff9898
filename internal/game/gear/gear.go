// Package gear models live gear records: what a character wears and what it aims to wear.
package gear

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

// Catalog resolves item definitions.
type Catalog interface {
	Item(id item.ID) (*item.Def, bool)
}

// Materia is a sub-component affixed to a gear piece.
type Materia string

// Piece is an item occupying a slot together with its affixed materia.
type Piece struct {
	Item    item.ID
	Materia []Materia
}

// Clone returns a deep copy of p.
func (p Piece) Clone() Piece {
	return Piece{Item: p.Item, Materia: slices.Clone(p.Materia)}
}

// Set is a live gear record. Background updates (e.g. a refreshed best-in-slot
// target) may land while a reader is ranking, so all methods are safe for
// concurrent use.
type Set struct {
	mu     sync.RWMutex
	pieces map[item.Slot]Piece
}

// NewSet returns an empty Set.
//
// Postcondition: every slot is empty.
func NewSet() *Set {
	return &Set{pieces: make(map[item.Slot]Piece)}
}

// NewSetOf returns a Set holding the given pieces.
func NewSetOf(pieces map[item.Slot]Piece) *Set {
	s := NewSet()
	for slot, p := range pieces {
		s.pieces[slot] = p.Clone()
	}
	return s
}

// Get returns the piece in slot.
//
// Postcondition: ok is false iff the slot is empty.
func (s *Set) Get(slot item.Slot) (Piece, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pieces[slot]
	if !ok {
		return Piece{}, false
	}
	return p.Clone(), true
}

// Put places p into slot, replacing any previous piece.
//
// Precondition: slot must be valid.
func (s *Set) Put(slot item.Slot, p Piece) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pieces[slot] = p.Clone()
}

// Remove empties slot.
func (s *Set) Remove(slot item.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pieces, slot)
}

// Replace overwrites s with the contents of other.
//
// Postcondition: s and other hold equal pieces and share no memory.
func (s *Set) Replace(other *Set) {
	snapshot := other.Pieces()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pieces = snapshot
}

// Pieces returns a copy of every filled slot.
func (s *Set) Pieces() map[item.Slot]Piece {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[item.Slot]Piece, len(s.pieces))
	for slot, p := range s.pieces {
		out[slot] = p.Clone()
	}
	return out
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return &Set{pieces: s.Pieces()}
}

// Count returns how many slots hold id.
func (s *Set) Count(id item.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.pieces {
		if p.Item == id {
			n++
		}
	}
	return n
}

// Contains reports whether any slot holds id.
func (s *Set) Contains(id item.ID) bool {
	return s.Count(id) > 0
}

// LevelAt returns the item level in slot, or 0 when the slot is empty or the
// item is unknown to cat.
func (s *Set) LevelAt(cat Catalog, slot item.Slot) int {
	p, ok := s.Get(slot)
	if !ok {
		return 0
	}
	def, ok := cat.Item(p.Item)
	if !ok {
		return 0
	}
	return def.Level
}

// ItemLevel returns the average item level across all slots. The off hand
// counts only when withOffHand is set; empty slots count as level 0.
//
// Postcondition: 0 <= result <= max level of any equipped item.
func (s *Set) ItemLevel(cat Catalog, withOffHand bool) float64 {
	total, slots := 0, 0
	for _, slot := range item.AllSlots {
		if slot == item.SlotOffHand && !withOffHand {
			continue
		}
		total += s.LevelAt(cat, slot)
		slots++
	}
	return float64(total) / float64(slots)
}

// Fingerprint returns a stable textual identity of the set's contents.
func (s *Set) Fingerprint() string {
	pieces := s.Pieces()
	var b strings.Builder
	for _, slot := range item.AllSlots {
		p, ok := pieces[slot]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s=%d", slot, p.Item)
		for _, m := range p.Materia {
			fmt.Fprintf(&b, "+%s", m)
		}
		b.WriteByte(';')
	}
	return b.String()
}
