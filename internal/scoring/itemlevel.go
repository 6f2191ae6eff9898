package scoring

import (
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
)

// ItemLevel scores a set by the summed levels of its pieces. The main hand
// counts WeaponWeight times; each affixed materia adds MateriaBonus. Jobs
// without an off hand ignore that slot.
type ItemLevel struct {
	Catalog      gear.Catalog
	MateriaBonus float64
	WeaponWeight float64
}

// Score returns the weighted level sum of set for j. It never fails.
func (s *ItemLevel) Score(j *job.Job, set *gear.Set) (float64, error) {
	weapon := s.WeaponWeight
	if weapon <= 0 {
		weapon = 1
	}
	total := 0.0
	for slot, p := range set.Pieces() {
		if slot == item.SlotOffHand && !j.OffHand {
			continue
		}
		lvl := float64(set.LevelAt(s.Catalog, slot))
		if slot == item.SlotMainHand {
			lvl *= weapon
		}
		total += lvl + float64(len(p.Materia))*s.MateriaBonus
	}
	return total, nil
}

// Close is a no-op.
func (s *ItemLevel) Close() error { return nil }
