package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
)

// ErrGroupNotFound is returned when a group lookup yields no results.
var ErrGroupNotFound = errors.New("group not found")

// ErrUnknownJob is returned when a stored job id is missing from the job registry.
var ErrUnknownJob = errors.New("unknown job")

// Gear record kinds as stored in gear_pieces.kind.
const (
	gearCurrent = "current"
	gearBiS     = "bis"
)

// RosterRepository persists groups, gear records and inventories.
//
// RosterRepository implements roster.Writer: every write is persisted first
// and mirrored into the in-memory records only after the database accepts it.
type RosterRepository struct {
	db   *pgxpool.Pool
	live roster.LiveWriter
}

// NewRosterRepository creates a RosterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRosterRepository(db *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{db: db}
}

// SaveGroup replaces the stored copy of g, its members, their jobs, gear and
// inventories, in one transaction.
//
// Precondition: g.ID must be non-empty.
// Postcondition: LoadGroup(g.ID) returns a group equal to g.
func (r *RosterRepository) SaveGroup(ctx context.Context, g *roster.Group) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO groups (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			g.ID, g.Name,
		); err != nil {
			return fmt.Errorf("upserting group: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM players WHERE group_id = $1`, g.ID); err != nil {
			return fmt.Errorf("clearing group members: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range g.Members {
			batch.Queue(`INSERT INTO players (id, group_id, name, position, sort_order) VALUES ($1, $2, $3, $4, $5)`,
				p.ID, g.ID, p.Name, p.Position, i)
			for j, js := range p.Jobs {
				batch.Queue(`INSERT INTO player_jobs (player_id, job_id, level, sort_order) VALUES ($1, $2, $3, $4)`,
					p.ID, js.Job.ID, js.Level, j)
				queueSet(batch, p.ID, js.Job.ID, gearCurrent, js.Current)
				queueSet(batch, p.ID, js.Job.ID, gearBiS, js.BiS)
			}
			for id, qty := range p.Inventory.Snapshot() {
				batch.Queue(`INSERT INTO inventory (player_id, item_id, quantity) VALUES ($1, $2, $3)`,
					p.ID, int64(id), qty)
			}
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("saving group members: player belongs to another group: %w", err)
			}
			return fmt.Errorf("saving group members: %w", err)
		}
		return nil
	})
}

func queueSet(batch *pgx.Batch, playerID, jobID, kind string, set *gear.Set) {
	for slot, p := range set.Pieces() {
		batch.Queue(`
			INSERT INTO gear_pieces (player_id, job_id, kind, slot, item_id, materia)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			playerID, jobID, kind, string(slot), int64(p.Item), materiaStrings(p.Materia))
	}
}

// LoadGroup reads a group with every member's jobs, gear and inventory.
//
// Precondition: jobs must hold every job id stored for the group.
// Postcondition: Returns the group with members and jobs in saved order,
// ErrGroupNotFound, or ErrUnknownJob.
func (r *RosterRepository) LoadGroup(ctx context.Context, groupID string, jobs *job.Registry) (*roster.Group, error) {
	g := &roster.Group{ID: groupID}
	err := r.db.QueryRow(ctx, `SELECT name FROM groups WHERE id = $1`, groupID).Scan(&g.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group: %w", err)
	}

	players := map[string]*roster.Player{}
	rows, err := r.db.Query(ctx, `
		SELECT id, name, position FROM players
		WHERE group_id = $1 ORDER BY sort_order, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	for rows.Next() {
		p := &roster.Player{Inventory: roster.NewInventory()}
		if err := rows.Scan(&p.ID, &p.Name, &p.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		g.Members = append(g.Members, p)
		players[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	if err := r.loadJobs(ctx, groupID, players, jobs); err != nil {
		return nil, err
	}
	if err := r.loadGear(ctx, groupID, players); err != nil {
		return nil, err
	}
	if err := r.loadInventory(ctx, groupID, players); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *RosterRepository) loadJobs(ctx context.Context, groupID string, players map[string]*roster.Player, jobs *job.Registry) error {
	rows, err := r.db.Query(ctx, `
		SELECT pj.player_id, pj.job_id, pj.level
		FROM player_jobs pj JOIN players p ON p.id = pj.player_id
		WHERE p.group_id = $1 ORDER BY pj.player_id, pj.sort_order`, groupID)
	if err != nil {
		return fmt.Errorf("listing player jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var playerID, jobID string
		var level int
		if err := rows.Scan(&playerID, &jobID, &level); err != nil {
			return fmt.Errorf("scanning player job row: %w", err)
		}
		j, ok := jobs.Job(jobID)
		if !ok {
			return fmt.Errorf("%w: %s (player %s)", ErrUnknownJob, jobID, playerID)
		}
		p := players[playerID]
		p.Jobs = append(p.Jobs, roster.NewJobState(j, level))
	}
	return rows.Err()
}

func (r *RosterRepository) loadGear(ctx context.Context, groupID string, players map[string]*roster.Player) error {
	rows, err := r.db.Query(ctx, `
		SELECT gp.player_id, gp.job_id, gp.kind, gp.slot, gp.item_id, gp.materia
		FROM gear_pieces gp JOIN players p ON p.id = gp.player_id
		WHERE p.group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("listing gear: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			playerID, jobID, kind, slot string
			itemID                      int64
			materia                     []string
		)
		if err := rows.Scan(&playerID, &jobID, &kind, &slot, &itemID, &materia); err != nil {
			return fmt.Errorf("scanning gear row: %w", err)
		}
		js, ok := players[playerID].Job(jobID)
		if !ok {
			continue
		}
		set := js.Current
		if kind == gearBiS {
			set = js.BiS
		}
		set.Put(item.Slot(slot), gear.Piece{Item: item.ID(itemID), Materia: materiaValues(materia)})
	}
	return rows.Err()
}

func (r *RosterRepository) loadInventory(ctx context.Context, groupID string, players map[string]*roster.Player) error {
	rows, err := r.db.Query(ctx, `
		SELECT i.player_id, i.item_id, i.quantity
		FROM inventory i JOIN players p ON p.id = i.player_id
		WHERE p.group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("listing inventory: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var playerID string
		var itemID int64
		var qty int
		if err := rows.Scan(&playerID, &itemID, &qty); err != nil {
			return fmt.Errorf("scanning inventory row: %w", err)
		}
		players[playerID].Inventory.Add(item.ID(itemID), qty)
	}
	return rows.Err()
}

// Equip stores piece as js's current gear in slot, then updates the live record.
//
// Postcondition: On error neither the database nor js.Current changed.
func (r *RosterRepository) Equip(ctx context.Context, p *roster.Player, js *roster.JobState, slot item.Slot, piece gear.Piece) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO gear_pieces (player_id, job_id, kind, slot, item_id, materia)
		VALUES ($1, $2, 'current', $3, $4, $5)
		ON CONFLICT (player_id, job_id, kind, slot)
		DO UPDATE SET item_id = EXCLUDED.item_id, materia = EXCLUDED.materia, updated_at = NOW()`,
		p.ID, js.Job.ID, string(slot), int64(piece.Item), materiaStrings(piece.Materia),
	)
	if err != nil {
		return fmt.Errorf("equipping %d in %s for %s/%s: %w", piece.Item, slot, p.ID, js.Job.ID, err)
	}
	return r.live.Equip(ctx, p, js, slot, piece)
}

// Credit adds qty of id to p's stored inventory, then updates the live record.
//
// Precondition: qty > 0.
// Postcondition: On error neither the database nor p.Inventory changed.
func (r *RosterRepository) Credit(ctx context.Context, p *roster.Player, id item.ID, qty int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory (player_id, item_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, item_id) DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity`,
		p.ID, int64(id), qty,
	)
	if err != nil {
		return fmt.Errorf("crediting %d x%d to %s: %w", id, qty, p.ID, err)
	}
	return r.live.Credit(ctx, p, id, qty)
}

func materiaStrings(ms []gear.Materia) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}

func materiaValues(ss []string) []gear.Materia {
	if len(ss) == 0 {
		return nil
	}
	out := make([]gear.Materia, len(ss))
	for i, s := range ss {
		out[i] = gear.Materia(s)
	}
	return out
}
