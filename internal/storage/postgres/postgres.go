// Package postgres persists rosters, gear and the award audit trail using pgx v5.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lootmaster/internal/config"
)

// ApplicationName tags lootmaster connections in pg_stat_activity.
const ApplicationName = "lootmaster"

// Pool owns the connection pool shared by the roster and award repositories.
type Pool struct {
	pool *pgxpool.Pool
}

// PoolConfig translates cfg into a pgxpool configuration.
//
// Postcondition: Returns a config carrying cfg's pool limits and the
// lootmaster application name, or a non-nil error when the DSN is malformed.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing loot database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	return poolCfg, nil
}

// NewPool connects to the loot database.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening loot database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("loot database %s:%d/%s unreachable: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pool for the repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
