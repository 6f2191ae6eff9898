package item

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownItem is returned when a lookup names an unregistered item.
var ErrUnknownItem = errors.New("unknown item")

// Registry holds all loaded item definitions indexed by ID.
type Registry struct {
	items map[ID]*Def
}

// NewRegistry returns an empty Registry.
//
// Postcondition: the internal map is initialised.
func NewRegistry() *Registry {
	return &Registry{items: make(map[ID]*Def)}
}

// NewRegistryFrom registers every def.
//
// Postcondition: Returns a populated Registry or the first registration error.
func NewRegistryFrom(defs []*Def) (*Registry, error) {
	r := NewRegistry()
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds d to the registry.
//
// Precondition:  d must not be nil.
// Postcondition: Item(d.ID) returns (d, true); returns error if d.ID already registered.
func (r *Registry) Register(d *Def) error {
	if _, exists := r.items[d.ID]; exists {
		return fmt.Errorf("item: Registry.Register: item ID %d already registered", d.ID)
	}
	r.items[d.ID] = d
	return nil
}

// Item returns the Def for the given id and whether it was found.
func (r *Registry) Item(id ID) (*Def, bool) {
	d, ok := r.items[id]
	return d, ok
}

// MustItem returns the Def for id or ErrUnknownItem.
func (r *Registry) MustItem(id ID) (*Def, error) {
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	return d, nil
}

// All returns every registered Def ordered by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered items.
func (r *Registry) Len() int { return len(r.items) }
