package distribution_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/lootmaster/internal/distribution"
	"github.com/cory-johannsen/lootmaster/internal/game/dice"
	"github.com/cory-johannsen/lootmaster/internal/game/encounter"
	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
	"github.com/cory-johannsen/lootmaster/internal/loot"
	"github.com/cory-johannsen/lootmaster/internal/observability"
	"github.com/cory-johannsen/lootmaster/internal/storage/postgres"
)

const (
	helm       item.ID = 100
	betterHelm item.ID = 110
	signet     item.ID = 200
	chestKey   item.ID = 900
)

var (
	pld = &job.Job{ID: "pld", Name: "Paladin", Role: job.RoleTank, OffHand: true}
	whm = &job.Job{ID: "whm", Name: "White Mage", Role: job.RoleHealer}
)

func catalog(t *testing.T) *item.Registry {
	t.Helper()
	reg, err := item.NewRegistryFrom([]*item.Def{
		{ID: helm, Name: "Helm of Valor", Level: 500, Slots: []item.Slot{item.SlotHead}},
		{ID: betterHelm, Name: "Helm of Glory", Level: 510, Slots: []item.Slot{item.SlotHead}},
		{ID: signet, Name: "Signet of Valor", Level: 500, Slots: []item.Slot{item.SlotRing1}},
		{ID: chestKey, Name: "Chest Key"},
	})
	require.NoError(t, err)
	return reg
}

// staticRosters serves fresh copies of one group.
type staticRosters struct{}

func (staticRosters) LoadGroup(_ context.Context, groupID string, _ *job.Registry) (*roster.Group, error) {
	if groupID != "static" {
		return nil, postgres.ErrGroupNotFound
	}
	alice := &roster.Player{ID: "alice", Name: "Alice", Position: "MT", Inventory: roster.NewInventory()}
	tank := roster.NewJobState(pld, 100)
	tank.BiS.Put(item.SlotHead, gear.Piece{Item: helm, Materia: []gear.Materia{"crit"}})
	alice.Jobs = []*roster.JobState{tank}

	bob := &roster.Player{ID: "bob", Name: "Bob", Position: "H1", Inventory: roster.NewInventory()}
	healer := roster.NewJobState(whm, 100)
	healer.Current.Put(item.SlotHead, gear.Piece{Item: betterHelm})
	bob.Jobs = []*roster.JobState{healer}

	return &roster.Group{ID: "static", Name: "Static", Members: []*roster.Player{alice, bob}}, nil
}

type memoryLog struct {
	mu     sync.Mutex
	awards []postgres.Award
	err    error
}

func (m *memoryLog) Record(_ context.Context, a postgres.Award) (postgres.Award, error) {
	if m.err != nil {
		return postgres.Award{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.awards) + 1)
	m.awards = append(m.awards, a)
	return a, nil
}

func newService(t *testing.T, log distribution.AwardLog, logger *zap.Logger) *distribution.Service {
	t.Helper()
	svc, err := distribution.New(distribution.Options{
		Catalog: catalog(t),
		Jobs:    job.NewRegistryFrom([]*job.Job{pld, whm}),
		Encounters: []*encounter.Encounter{
			{ID: "trial", Name: "The Trial", Loot: []item.ID{helm}, Guaranteed: []item.ID{chestKey}},
		},
		Rosters: staticRosters{},
		Rules:   loot.DefaultRuleSet(),
		Awards:  log,
		Source:  dice.NewSeededSource(1, 2),
		Logger:  logger,
	})
	require.NoError(t, err)
	return svc
}

var unit = loot.UnitKey{Item: helm, Seq: 0}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := distribution.New(distribution.Options{})
	assert.ErrorContains(t, err, "catalog")

	_, err = distribution.New(distribution.Options{
		Catalog: catalog(t),
		Jobs:    job.NewRegistry(),
		Rosters: staticRosters{},
		Rules:   loot.DefaultRuleSet(),
		Encounters: []*encounter.Encounter{
			{ID: "trial"}, {ID: "trial"},
		},
	})
	assert.ErrorContains(t, err, `duplicate encounter "trial"`)
}

func TestStart_Errors(t *testing.T) {
	svc := newService(t, nil, nil)
	_, err := svc.Start(context.Background(), "raid", "static")
	assert.ErrorIs(t, err, distribution.ErrUnknownEncounter)

	_, err = svc.Start(context.Background(), "trial", "other")
	assert.ErrorIs(t, err, postgres.ErrGroupNotFound)
	assert.Empty(t, svc.Sessions())
}

func TestService_FullDistribution(t *testing.T) {
	ctx := context.Background()
	log := &memoryLog{}
	svc := newService(t, log, nil)
	started := testutil.ToFloat64(observability.SessionsStarted)
	finished := testutil.ToFloat64(observability.SessionsFinished)
	itemAwards := testutil.ToFloat64(observability.Awards.WithLabelValues(observability.AwardItem))

	sess, err := svc.Start(ctx, "trial", "static")
	require.NoError(t, err)
	assert.Equal(t, started+1, testutil.ToFloat64(observability.SessionsStarted))
	assert.Equal(t, []uuid.UUID{sess.ID()}, svc.Sessions())

	require.NoError(t, svc.SetLoot(sess.ID(), helm, 1))
	require.NoError(t, svc.Evaluate(sess.ID()))
	assert.Equal(t, loot.StateLootChosen, sess.State())

	r, ok := sess.Ranking(unit)
	require.True(t, ok)
	top, ok := r.Top()
	require.True(t, ok)
	assert.Equal(t, "alice", top.Player.ID)

	require.NoError(t, svc.Award(ctx, sess.ID(), unit, helm, 0, false))
	assert.Equal(t, loot.StateDistributionStarted, sess.State())
	assert.Equal(t, itemAwards+1, testutil.ToFloat64(observability.Awards.WithLabelValues(observability.AwardItem)))

	require.NoError(t, svc.AwardGuaranteed(ctx, sess.ID(), chestKey))
	assert.Equal(t, loot.StateFinished, sess.State())
	assert.Equal(t, finished+1, testutil.ToFloat64(observability.SessionsFinished))

	require.Len(t, log.awards, 3)
	assert.Equal(t, postgres.Award{
		ID: 1, SessionID: sess.ID(), Encounter: "trial", PlayerID: "alice", JobID: "pld",
		ItemID: int64(helm), Kind: postgres.AwardKindItem, Slot: "head",
	}, log.awards[0])
	assert.Equal(t, "bob", log.awards[2].PlayerID)
	assert.Equal(t, postgres.AwardKindGuaranteed, log.awards[2].Kind)

	for _, p := range sess.Members() {
		assert.Equal(t, 1, p.Inventory.Count(chestKey), p.ID)
	}
	worn, ok := sess.Members()[0].Jobs[0].Current.Get(item.SlotHead)
	require.True(t, ok)
	assert.Equal(t, gear.Piece{Item: helm, Materia: []gear.Materia{"crit"}}, worn)
}

func TestService_AuditRecordsEquippedSlot(t *testing.T) {
	ctx := context.Background()
	log := &memoryLog{}
	svc := newService(t, log, nil)
	sess, err := svc.Start(ctx, "trial", "static")
	require.NoError(t, err)
	require.NoError(t, svc.SetLoot(sess.ID(), signet, 1))
	require.NoError(t, svc.Evaluate(sess.ID()))

	ringUnit := loot.UnitKey{Item: signet}
	r, ok := sess.Ranking(ringUnit)
	require.True(t, ok)
	winner, ok := r.Top()
	require.True(t, ok)
	require.NoError(t, svc.Award(ctx, sess.ID(), ringUnit, signet, 0, true))

	require.Len(t, log.awards, 1)
	assert.Equal(t, "ring_2", log.awards[0].Slot)
	assert.Equal(t, winner.Player.ID, log.awards[0].PlayerID)
	worn, ok := winner.Job.Current.Get(item.Slot(log.awards[0].Slot))
	require.True(t, ok)
	assert.Equal(t, signet, worn.Item)
	_, ok = winner.Job.Current.Get(item.SlotRing1)
	assert.False(t, ok)
}

func TestService_RejectedActions(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	sess, err := svc.Start(ctx, "trial", "static")
	require.NoError(t, err)
	rejected := testutil.ToFloat64(observability.RejectedActions.WithLabelValues(distribution.ActionAward))

	err = svc.Award(ctx, sess.ID(), unit, helm, 0, false)
	assert.ErrorIs(t, err, distribution.ErrRejected)
	assert.Equal(t, rejected+1, testutil.ToFloat64(observability.RejectedActions.WithLabelValues(distribution.ActionAward)))

	assert.ErrorIs(t, svc.Revert(sess.ID()), distribution.ErrRejected)
	assert.ErrorIs(t, svc.SetLoot(sess.ID(), 12345, 1), distribution.ErrRejected)

	require.NoError(t, svc.SetLoot(sess.ID(), helm, 2))
	require.NoError(t, svc.Evaluate(sess.ID()))
	assert.ErrorIs(t, svc.SetLoot(sess.ID(), helm, 1), distribution.ErrRejected)
	assert.ErrorIs(t, svc.SetRules(sess.ID(), loot.DefaultRuleSet()), distribution.ErrRejected)
	assert.ErrorIs(t, svc.Award(ctx, sess.ID(), unit, helm, 5, false), distribution.ErrRejected)

	require.NoError(t, svc.Revert(sess.ID()))
	require.NoError(t, svc.SetRules(sess.ID(), loot.DefaultRuleSet()))
	require.NoError(t, svc.RefreshRoster(ctx, sess.ID(), "static"))
	require.NoError(t, svc.Evaluate(sess.ID()))
	require.NoError(t, svc.Award(ctx, sess.ID(), unit, helm, 0, false))

	assert.ErrorIs(t, svc.Revert(sess.ID()), distribution.ErrRejected)
	assert.ErrorIs(t, svc.RefreshRoster(ctx, sess.ID(), "static"), distribution.ErrRejected)
	assert.ErrorIs(t, svc.RefreshRoster(ctx, sess.ID(), "other"), postgres.ErrGroupNotFound)
}

func TestService_AuditFailureKeepsAward(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	svc := newService(t, &memoryLog{err: errors.New("db down")}, zap.New(core))
	sess, err := svc.Start(ctx, "trial", "static")
	require.NoError(t, err)
	require.NoError(t, svc.SetLoot(sess.ID(), helm, 1))
	require.NoError(t, svc.Evaluate(sess.ID()))

	require.NoError(t, svc.Award(ctx, sess.ID(), unit, helm, 0, false))
	r, _ := sess.Ranking(unit)
	assert.True(t, r.IsAwarded())
	assert.Equal(t, 1, logs.FilterMessage("recording award failed").Len())
}

func TestService_CloseForgetsSession(t *testing.T) {
	svc := newService(t, nil, nil)
	sess, err := svc.Start(context.Background(), "trial", "static")
	require.NoError(t, err)

	require.NoError(t, svc.Close(sess.ID()))
	assert.ErrorIs(t, svc.Close(sess.ID()), distribution.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Evaluate(sess.ID()), distribution.ErrSessionNotFound)
	_, err = svc.Summary(sess.ID())
	assert.ErrorIs(t, err, distribution.ErrSessionNotFound)
}

func TestService_ConcurrentEvaluate(t *testing.T) {
	svc := newService(t, nil, nil)
	sess, err := svc.Start(context.Background(), "trial", "static")
	require.NoError(t, err)
	require.NoError(t, svc.SetLoot(sess.ID(), helm, 3))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Evaluate(sess.ID()))
			_, err := svc.Summary(sess.ID())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	err = svc.With(sess.ID(), func(s *loot.Session) error {
		assert.Len(t, s.Rankings(), 3)
		return nil
	})
	require.NoError(t, err)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	sess, err := svc.Start(ctx, "trial", "static")
	require.NoError(t, err)
	require.NoError(t, svc.SetLoot(sess.ID(), helm, 1))
	require.NoError(t, svc.Evaluate(sess.ID()))

	out, err := svc.Summary(sess.ID())
	require.NoError(t, err)
	assert.Contains(t, out, "(trial): loot_chosen")
	assert.Contains(t, out, "Helm of Valor (#100) x1")
	assert.Contains(t, out, "Chest Key (#900)\n")
	assert.Contains(t, out, "100#0 Helm of Valor (#100)\n")
	assert.Contains(t, out, "Alice (MT)")
	assert.Contains(t, out, "Need over Greed")

	require.NoError(t, svc.Award(ctx, sess.ID(), unit, helm, 0, false))
	require.NoError(t, svc.AwardGuaranteed(ctx, sess.ID(), chestKey))
	out, err = svc.Summary(sess.ID())
	require.NoError(t, err)
	assert.Contains(t, out, "(trial): finished")
	assert.Contains(t, out, "Chest Key (#900) [awarded]")
	assert.Contains(t, out, "-> Alice (MT)/pld")
}

func TestFileRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: static
name: Static
members:
  - id: alice
    name: Alice
    jobs:
      - job: pld
        level: 100
`), 0o644))
	src := distribution.FileRoster{Path: path}
	jobs := job.NewRegistryFrom([]*job.Job{pld})

	g, err := src.LoadGroup(context.Background(), "static", jobs)
	require.NoError(t, err)
	assert.Len(t, g.Members, 1)

	g, err = src.LoadGroup(context.Background(), "", jobs)
	require.NoError(t, err)
	assert.Equal(t, "static", g.ID)

	_, err = src.LoadGroup(context.Background(), "other", jobs)
	assert.ErrorIs(t, err, postgres.ErrGroupNotFound)
}
