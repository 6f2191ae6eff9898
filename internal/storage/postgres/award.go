package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Award kinds as stored in awards.kind.
const (
	AwardKindItem       = "item"
	AwardKindGuaranteed = "guaranteed"
)

// Award is one audited award.
type Award struct {
	ID        int64
	SessionID uuid.UUID
	Encounter string
	PlayerID  string
	// JobID and Slot are empty for guaranteed loot and inventory credits.
	JobID     string
	ItemID    int64
	Kind      string
	Slot      string
	AwardedAt time.Time
}

// AwardRepository keeps the audit trail of awards.
type AwardRepository struct {
	db *pgxpool.Pool
}

// NewAwardRepository creates an AwardRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAwardRepository(db *pgxpool.Pool) *AwardRepository {
	return &AwardRepository{db: db}
}

// Record appends a to the audit trail.
//
// Precondition: a.Kind must be AwardKindItem or AwardKindGuaranteed.
// Postcondition: Returns a copy of a with ID and AwardedAt set.
func (r *AwardRepository) Record(ctx context.Context, a Award) (Award, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO awards (session_id, encounter, player_id, job_id, item_id, kind, slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, awarded_at`,
		a.SessionID, a.Encounter, a.PlayerID, a.JobID, a.ItemID, a.Kind, a.Slot,
	).Scan(&a.ID, &a.AwardedAt)
	if err != nil {
		return Award{}, fmt.Errorf("recording award: %w", err)
	}
	return a, nil
}

// ListBySession returns a session's awards in the order they were made.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *AwardRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Award, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, encounter, player_id, job_id, item_id, kind, slot, awarded_at
		FROM awards WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing awards: %w", err)
	}
	defer rows.Close()

	awards := make([]Award, 0)
	for rows.Next() {
		var a Award
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Encounter, &a.PlayerID, &a.JobID,
			&a.ItemID, &a.Kind, &a.Slot, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("scanning award row: %w", err)
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}
