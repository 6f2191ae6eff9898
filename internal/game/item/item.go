// Package item holds the static item catalog consumed by the loot engine.
package item

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ID is the game-wide item identifier.
type ID uint32

// Cost is one currency or token requirement of a shop exchange.
type Cost struct {
	Item  ID  `yaml:"item" validate:"required"`
	Count int `yaml:"count" validate:"gte=1"`
}

// ShopEntry describes an exchange that yields Result in return for Costs.
type ShopEntry struct {
	Result ID     `yaml:"result" validate:"required"`
	Costs  []Cost `yaml:"costs" validate:"required,min=1,dive"`
}

// CostOf returns the count of id required by the entry, or 0.
func (e ShopEntry) CostOf(id ID) int {
	for _, c := range e.Costs {
		if c.Item == id {
			return c.Count
		}
	}
	return 0
}

// Def defines the static properties of an item loaded from YAML.
//
// A Def with Slots is gear; a Def with Exchanges is a token that can be traded
// for gear. A Def with neither is a plain material or currency.
type Def struct {
	ID        ID          `yaml:"id" validate:"required"`
	Name      string      `yaml:"name" validate:"required"`
	Level     int         `yaml:"level" validate:"gte=0"`
	Slots     []Slot      `yaml:"slots" validate:"max=2,dive,gearslot"`
	Unique    bool        `yaml:"unique"`
	Jobs      []string    `yaml:"jobs" validate:"dive,required"`
	Exchanges []ShopEntry `yaml:"exchanges" validate:"dive"`
}

// IsGear reports whether the item can be equipped.
func (d *Def) IsGear() bool { return len(d.Slots) > 0 }

// IsExchange reports whether the item is a token traded for other items.
func (d *Def) IsExchange() bool { return len(d.Exchanges) > 0 }

// UsableBy reports whether jobID may equip the item.
//
// Postcondition: An empty Jobs list means every job may use the item.
func (d *Def) UsableBy(jobID string) bool {
	return len(d.Jobs) == 0 || slices.Contains(d.Jobs, jobID)
}

// CanOccupy reports whether the item fits slot.
func (d *Def) CanOccupy(slot Slot) bool {
	return slices.Contains(d.Slots, slot)
}

// String returns the item name and id.
func (d *Def) String() string {
	return fmt.Sprintf("%s (#%d)", d.Name, d.ID)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("gearslot", func(fl validator.FieldLevel) bool {
		return Slot(fl.Field().String()).Valid()
	}); err != nil {
		panic("item: registering gearslot validation: " + err.Error())
	}
	return v
}

// Validate checks that the Def satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid; otherwise the error lists
// every violation.
func (d *Def) Validate() error {
	var msgs []string
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("item validation failed: %w", err)
		}
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	if d.IsGear() && d.IsExchange() {
		msgs = append(msgs, "item cannot be both gear and an exchange token")
	}
	if len(d.Slots) == 2 {
		if p, ok := d.Slots[0].Partner(); !ok || p != d.Slots[1] {
			msgs = append(msgs, fmt.Sprintf("slots %s and %s are not an interchangeable pair", d.Slots[0], d.Slots[1]))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("item %d validation failed: %s", d.ID, strings.Join(msgs, "; "))
	}
	return nil
}

// LoadItems reads all *.yaml and *.yml files from dir. Each file holds a list of
// item definitions; every definition is validated.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Defs sorted by ID or the first encountered error.
func LoadItems(dir string) ([]*Def, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*Def
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		var defs []*Def
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		for _, d := range defs {
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
			}
		}
		items = append(items, defs...)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
