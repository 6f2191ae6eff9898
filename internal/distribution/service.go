// Package distribution runs loot sessions for encounters on behalf of an operator.
//
// Service owns the content, the configured rule set and scorer, and the
// writers that persist awards. It tracks every open session by id, serializes
// access to each one, and records metrics and an audit trail for every action.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/encounter"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
	"github.com/cory-johannsen/lootmaster/internal/loot"
	"github.com/cory-johannsen/lootmaster/internal/observability"
	"github.com/cory-johannsen/lootmaster/internal/storage/postgres"
)

var (
	// ErrUnknownEncounter is returned when Start names an encounter that was not loaded.
	ErrUnknownEncounter = errors.New("unknown encounter")
	// ErrSessionNotFound is returned when an id names no open session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRejected is returned when the session refuses an action in its current state.
	ErrRejected = errors.New("action rejected")
)

// Actions reported in rejection metrics.
const (
	ActionSetLoot         = "set_loot"
	ActionEvaluate        = "evaluate"
	ActionRevert          = "revert"
	ActionAward           = "award"
	ActionAwardGuaranteed = "award_guaranteed"
	ActionRules           = "set_rules"
	ActionRoster          = "update_roster"
)

// RosterSource loads the group a session distributes to.
type RosterSource interface {
	LoadGroup(ctx context.Context, groupID string, jobs *job.Registry) (*roster.Group, error)
}

// AwardLog keeps the audit trail of awards.
type AwardLog interface {
	Record(ctx context.Context, a postgres.Award) (postgres.Award, error)
}

// Options configures a Service.
type Options struct {
	Catalog    *item.Registry
	Jobs       *job.Registry
	Encounters []*encounter.Encounter
	Rosters    RosterSource
	Rules      *loot.RuleSet
	// Writer persists gear and inventory changes; nil applies them in memory only.
	Writer roster.Writer
	// Scorer backs the DpsGain rule; nil reports it as unavailable.
	Scorer loot.Scorer
	// Awards is optional; nil skips the audit trail.
	Awards AwardLog
	// Source seeds every session; nil uses crypto/rand.
	Source dice.Source
	Logger *zap.Logger
}

type tracked struct {
	mu       sync.Mutex
	session  *loot.Session
	finished bool
}

// Service tracks open loot sessions.
// All methods are safe for concurrent use.
type Service struct {
	opts       Options
	encounters map[string]*encounter.Encounter
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*tracked
}

// New creates a Service.
//
// Precondition: Catalog, Jobs, Rosters and Rules must be non-nil.
// Postcondition: Returns a Service with no open sessions, or an error naming
// the first missing dependency or a duplicate encounter id.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Catalog == nil:
		return nil, errors.New("distribution: catalog must not be nil")
	case opts.Jobs == nil:
		return nil, errors.New("distribution: job registry must not be nil")
	case opts.Rosters == nil:
		return nil, errors.New("distribution: roster source must not be nil")
	case opts.Rules == nil:
		return nil, errors.New("distribution: rule set must not be nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Source == nil {
		opts.Source = dice.NewCryptoSource()
	}
	encs := make(map[string]*encounter.Encounter, len(opts.Encounters))
	for _, e := range opts.Encounters {
		if _, dup := encs[e.ID]; dup {
			return nil, fmt.Errorf("distribution: duplicate encounter %q", e.ID)
		}
		encs[e.ID] = e
	}
	return &Service{
		opts:       opts,
		encounters: encs,
		logger:     opts.Logger,
		sessions:   make(map[uuid.UUID]*tracked),
	}, nil
}

// Start opens a session for encounterID with the group loaded from the roster source.
//
// Postcondition: Returns the tracked session in Started, ErrUnknownEncounter,
// or the roster error.
func (s *Service) Start(ctx context.Context, encounterID, groupID string) (*loot.Session, error) {
	enc, ok := s.encounters[encounterID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncounter, encounterID)
	}
	group, err := s.opts.Rosters.LoadGroup(ctx, groupID, s.opts.Jobs)
	if err != nil {
		return nil, fmt.Errorf("loading group %q: %w", groupID, err)
	}
	sess, err := loot.NewEncounterSession(enc, group, s.opts.Rules, loot.Deps{
		Catalog: s.opts.Catalog,
		Scorer:  s.opts.Scorer,
		Writer:  s.opts.Writer,
		Source:  s.opts.Source,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = &tracked{session: sess}
	s.mu.Unlock()

	observability.SessionsStarted.Inc()
	s.logger.Info("session started",
		zap.Stringer("session", sess.ID()),
		zap.String("encounter", enc.ID),
		zap.String("group", group.ID),
		zap.Int("members", len(group.Members)),
	)
	return sess, nil
}

// Sessions returns the ids of every open session.
func (s *Service) Sessions() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close forgets the session.
//
// Postcondition: Returns ErrSessionNotFound if id names no open session.
func (s *Service) Close(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.logger.Debug("session closed", zap.Stringer("session", id))
	return nil
}

// With runs fn while holding the session's lock.
//
// Postcondition: Returns ErrSessionNotFound or fn's error.
func (s *Service) With(id uuid.UUID, fn func(*loot.Session) error) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.session)
}

func (s *Service) lookup(id uuid.UUID) (*tracked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return t, nil
}

// do runs op on the locked session, counting a rejection when op reports false.
func (s *Service) do(id uuid.UUID, action string, op func(*tracked) bool) error {
	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !op(t) {
		observability.RejectedActions.WithLabelValues(action).Inc()
		s.logger.Debug("action rejected",
			zap.Stringer("session", id),
			zap.String("action", action),
			zap.Stringer("state", t.session.State()),
		)
		return fmt.Errorf("%w: %s in state %s", ErrRejected, action, t.session.State())
	}
	s.noteFinished(t)
	return nil
}

// SetLoot sets the dropped quantity of id, adding it to the manifest if needed.
//
// Precondition: qty >= 0.
func (s *Service) SetLoot(sessionID uuid.UUID, id item.ID, qty int) error {
	return s.do(sessionID, ActionSetLoot, func(t *tracked) bool {
		if t.session.SetLootQuantity(id, qty) {
			return true
		}
		return t.session.AddLoot(id, qty)
	})
}

// SetRules replaces the session's rule set.
func (s *Service) SetRules(sessionID uuid.UUID, rs *loot.RuleSet) error {
	return s.do(sessionID, ActionRules, func(t *tracked) bool {
		return t.session.SetRuleSet(rs)
	})
}

// RefreshRoster reloads the session's group from the roster source.
//
// Postcondition: Returns the roster error, or ErrRejected once distribution started.
func (s *Service) RefreshRoster(ctx context.Context, sessionID uuid.UUID, groupID string) error {
	group, err := s.opts.Rosters.LoadGroup(ctx, groupID, s.opts.Jobs)
	if err != nil {
		return fmt.Errorf("loading group %q: %w", groupID, err)
	}
	return s.do(sessionID, ActionRoster, func(t *tracked) bool {
		return t.session.UpdateRoster(group)
	})
}

// Evaluate ranks every dropped unit.
func (s *Service) Evaluate(sessionID uuid.UUID) error {
	return s.do(sessionID, ActionEvaluate, func(t *tracked) bool {
		start := time.Now()
		t.session.Evaluate()
		observability.EvaluateDuration.Observe(time.Since(start).Seconds())
		for _, r := range t.session.Rankings() {
			observability.RankingCandidates.Observe(float64(r.Len()))
		}
		return true
	})
}

// Revert returns the session to loot selection.
func (s *Service) Revert(sessionID uuid.UUID) error {
	return s.do(sessionID, ActionRevert, func(t *tracked) bool {
		return t.session.RevertToChooseLoot()
	})
}

// Award gives chosen to the candidate at idx of the unit's ranking.
//
// Postcondition: Returns ErrRejected when the session refuses the award. A
// failed audit write is logged and does not undo the award.
func (s *Service) Award(ctx context.Context, sessionID uuid.UUID, unit loot.UnitKey, chosen item.ID, idx int, alternate bool) error {
	var rec postgres.Award
	err := s.do(sessionID, ActionAward, func(t *tracked) bool {
		r, ok := t.session.Ranking(unit)
		if !ok {
			return false
		}
		c, ok := r.At(idx)
		if !ok {
			return false
		}
		if !t.session.AwardItem(ctx, unit, chosen, idx, alternate) {
			return false
		}
		rec = postgres.Award{
			SessionID: sessionID,
			Encounter: t.session.Encounter(),
			PlayerID:  c.Player.ID,
			JobID:     c.Job.Job.ID,
			ItemID:    int64(chosen),
			Kind:      postgres.AwardKindItem,
			Slot:      string(c.AwardedSlot()),
		}
		return true
	})
	if err != nil {
		return err
	}
	observability.Awards.WithLabelValues(observability.AwardItem).Inc()
	s.audit(ctx, rec)
	return nil
}

// AwardGuaranteed credits one unit of id to every member of the session's group.
func (s *Service) AwardGuaranteed(ctx context.Context, sessionID uuid.UUID, id item.ID) error {
	var recs []postgres.Award
	err := s.do(sessionID, ActionAwardGuaranteed, func(t *tracked) bool {
		if !t.session.AwardGuaranteedLoot(ctx, id) {
			return false
		}
		for _, p := range t.session.Members() {
			recs = append(recs, postgres.Award{
				SessionID: sessionID,
				Encounter: t.session.Encounter(),
				PlayerID:  p.ID,
				ItemID:    int64(id),
				Kind:      postgres.AwardKindGuaranteed,
			})
		}
		return true
	})
	if err != nil {
		return err
	}
	observability.Awards.WithLabelValues(observability.AwardGuaranteed).Inc()
	for _, rec := range recs {
		s.audit(ctx, rec)
	}
	return nil
}

// Summary renders the session's rankings as text.
func (s *Service) Summary(sessionID uuid.UUID) (string, error) {
	var out string
	err := s.With(sessionID, func(sess *loot.Session) error {
		out = Summarize(sess)
		return nil
	})
	return out, err
}

func (s *Service) audit(ctx context.Context, rec postgres.Award) {
	if s.opts.Awards == nil {
		return
	}
	if _, err := s.opts.Awards.Record(ctx, rec); err != nil {
		s.logger.Error("recording award failed",
			zap.Stringer("session", rec.SessionID),
			zap.String("player", rec.PlayerID),
			zap.Int64("item", rec.ItemID),
			zap.Error(err),
		)
	}
}

// noteFinished counts the session once when it first reaches Finished.
func (s *Service) noteFinished(t *tracked) {
	if t.finished || t.session.State() != loot.StateFinished {
		return
	}
	t.finished = true
	observability.SessionsFinished.Inc()
	s.logger.Info("session finished", zap.Stringer("session", t.session.ID()))
}
