// Package scoring provides the engines behind the dps_gain rule.
package scoring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/config"
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/loot"
	"github.com/cory-johannsen/lootmaster/internal/scripting"
)

// Engine is a loot.Scorer that may hold resources.
type Engine interface {
	loot.Scorer
	Close() error
}

// Open builds the engine cfg selects, wrapped in a cache when cfg.CacheSize > 0.
//
// Precondition: cfg passed config validation; cat and logger must be non-nil.
// Postcondition: Returns (nil, nil) for engine "none".
func Open(cfg config.ScoringConfig, cat gear.Catalog, logger *zap.Logger) (Engine, error) {
	var (
		e    Engine
		name = cfg.Engine
	)
	switch cfg.Engine {
	case config.EngineNone, "":
		return nil, nil
	case config.EngineItemLevel:
		e = &ItemLevel{Catalog: cat, MateriaBonus: cfg.MateriaBonus, WeaponWeight: cfg.WeaponWeight}
	case config.EngineLua:
		s, err := scripting.LoadScorer(cfg.Script, cfg.InstructionLimit, cat, logger)
		if err != nil {
			return nil, err
		}
		e = s
	default:
		return nil, fmt.Errorf("scoring: unknown engine %q", cfg.Engine)
	}
	e = &instrumented{Engine: e, name: name}
	if cfg.CacheSize > 0 {
		e = NewCached(e, cfg.CacheSize, cfg.CacheTTL)
	}
	return e, nil
}
