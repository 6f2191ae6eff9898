// Package encounter defines the fights that drop loot.
package encounter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

// Encounter lists what a fight can drop.
type Encounter struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Loot holds the items competed for, in display order.
	Loot []item.ID `yaml:"loot"`
	// Guaranteed holds items every member receives once.
	Guaranteed []item.ID `yaml:"guaranteed"`
}

// Catalog resolves item definitions.
type Catalog interface {
	Item(id item.ID) (*item.Def, bool)
}

// Validate checks that the encounter satisfies its invariants.
//
// Precondition: e must not be nil.
// Postcondition: Returns nil iff the id is set, every item is known to cat, and
// no item appears twice across Loot and Guaranteed.
func (e *Encounter) Validate(cat Catalog) error {
	if e.ID == "" {
		return fmt.Errorf("encounter: id must not be empty")
	}
	seen := make(map[item.ID]bool, len(e.Loot)+len(e.Guaranteed))
	check := func(kind string, ids []item.ID) error {
		for i, id := range ids {
			if _, ok := cat.Item(id); !ok {
				return fmt.Errorf("encounter %q: %s[%d] references unknown item %d", e.ID, kind, i, id)
			}
			if seen[id] {
				return fmt.Errorf("encounter %q: item %d listed more than once", e.ID, id)
			}
			seen[id] = true
		}
		return nil
	}
	if err := check("loot", e.Loot); err != nil {
		return err
	}
	return check("guaranteed", e.Guaranteed)
}

// LoadEncounters reads all .yaml files in dir; each file holds a list of
// encounters. Every encounter is validated against cat.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns encounters sorted by ID or a non-nil error.
func LoadEncounters(dir string, cat Catalog) ([]*Encounter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading encounter dir %s: %w", dir, err)
	}
	var out []*Encounter
	ids := make(map[string]bool)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var batch []*Encounter
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parsing encounter file %s: %w", path, err)
		}
		for _, enc := range batch {
			if err := enc.Validate(cat); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if ids[enc.ID] {
				return nil, fmt.Errorf("%s: duplicate encounter id %q", path, enc.ID)
			}
			ids[enc.ID] = true
		}
		out = append(out, batch...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
