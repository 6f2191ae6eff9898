package roster

import (
	"context"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

// Writer applies award side effects to gear records and inventories.
type Writer interface {
	// Equip places piece into slot of js's current gear.
	Equip(ctx context.Context, p *Player, js *JobState, slot item.Slot, piece gear.Piece) error
	// Credit adds qty units of id to p's inventory.
	Credit(ctx context.Context, p *Player, id item.ID, qty int) error
}

// LiveWriter applies awards to the in-memory records only.
type LiveWriter struct{}

// Equip places piece into js.Current.
//
// Postcondition: js.Current.Get(slot) returns piece.
func (LiveWriter) Equip(_ context.Context, _ *Player, js *JobState, slot item.Slot, piece gear.Piece) error {
	js.Current.Put(slot, piece)
	return nil
}

// Credit adds qty of id to p.Inventory.
func (LiveWriter) Credit(_ context.Context, p *Player, id item.ID, qty int) error {
	p.Inventory.Add(id, qty)
	return nil
}
