package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/scripting"
)

const levelScript = `
function score(job, gear)
  local total = 0
  for slot, piece in pairs(gear) do
    total = total + piece.level + #piece.materia * 2
  end
  if job.group == "tank" then
    total = total / 2
  end
  return total
end
`

var (
	paladin = &job.Job{ID: "pld", Name: "Paladin", Role: job.RoleTank, OffHand: true}
	dragoon = &job.Job{ID: "drg", Name: "Dragoon", Role: job.RoleMelee}
)

func testCatalog(t testing.TB) *item.Registry {
	t.Helper()
	r, err := item.NewRegistryFrom([]*item.Def{
		{ID: 1, Name: "Helm", Level: 500, Slots: []item.Slot{item.SlotHead}},
		{ID: 2, Name: "Spear", Level: 510, Slots: []item.Slot{item.SlotMainHand}, Jobs: []string{"drg"}},
		{ID: 3, Name: "Band", Level: 490, Slots: []item.Slot{item.SlotRing1, item.SlotRing2}},
	})
	require.NoError(t, err)
	return r
}

func writeLua(t testing.TB, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func loadScorer(t testing.TB, src string) *scripting.Scorer {
	t.Helper()
	path := writeLua(t, t.TempDir(), "score.lua", src)
	s, err := scripting.LoadScorer(path, 0, testCatalog(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScorer_Score(t *testing.T) {
	s := loadScorer(t, levelScript)
	set := gear.NewSetOf(map[item.Slot]gear.Piece{
		item.SlotHead:     {Item: 1, Materia: []gear.Materia{"crit", "det"}},
		item.SlotMainHand: {Item: 2},
	})

	got, err := s.Score(dragoon, set)
	require.NoError(t, err)
	assert.Equal(t, 1014.0, got)

	got, err = s.Score(paladin, set)
	require.NoError(t, err)
	assert.Equal(t, 507.0, got)

	got, err = s.Score(dragoon, gear.NewSet())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestScorer_CatalogModule(t *testing.T) {
	s := loadScorer(t, `
function score(job, gear)
  assert(catalog.name(1) == "Helm")
  assert(catalog.name(99) == nil)
  assert(#catalog.slots(3) == 2)
  assert(catalog.slots(3)[2] == "ring_2")
  return catalog.level(2) + catalog.level(99)
end
`)
	got, err := s.Score(dragoon, gear.NewSet())
	require.NoError(t, err)
	assert.Equal(t, 510.0, got)
}

func TestScorer_LoadsDirectoryInOrder(t *testing.T) {
	dir := t.TempDir()
	writeLua(t, dir, "10_score.lua", `function score(job, gear) return weight * 3 end`)
	writeLua(t, dir, "00_weights.lua", `weight = 7`)
	writeLua(t, dir, "notes.txt", `not lua`)

	s, err := scripting.LoadScorer(dir, 0, testCatalog(t), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Score(dragoon, gear.NewSet())
	require.NoError(t, err)
	assert.Equal(t, 21.0, got)
}

func TestLoadScorer_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing function": writeLua(t, dir, "none.lua", `x = 1`),
		"syntax error":     writeLua(t, dir, "bad.lua", `function score(`),
		"not a function":   writeLua(t, dir, "val.lua", `score = 5`),
		"missing file":     filepath.Join(dir, "absent.lua"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scripting.LoadScorer(path, 0, testCatalog(t), zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestLoadScorer_LogsLoad(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	path := writeLua(t, t.TempDir(), "score.lua", levelScript)
	s, err := scripting.LoadScorer(path, 0, testCatalog(t), zap.New(core))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, logs.FilterMessage("scoring script loaded").Len())
}

func TestScorer_RuntimeErrors(t *testing.T) {
	cases := map[string]string{
		"error":      `function score(job, gear) error("boom") end`,
		"non-number": `function score(job, gear) return "high" end`,
		"nil":        `function score(job, gear) end`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			s := loadScorer(t, src)
			_, err := s.Score(dragoon, gear.NewSet())
			assert.Error(t, err)
		})
	}
}

func TestScorer_RecoversAfterBudgetExhausted(t *testing.T) {
	path := writeLua(t, t.TempDir(), "score.lua", `
function score(job, gear)
  if job.id == "pld" then
    while true do end
  end
  return 1
end
`)
	s, err := scripting.LoadScorer(path, 1000, testCatalog(t), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Score(paladin, gear.NewSet())
	assert.Error(t, err)
	got, err := s.Score(dragoon, gear.NewSet())
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestScorer_ConcurrentCalls(t *testing.T) {
	s := loadScorer(t, levelScript)
	set := gear.NewSetOf(map[item.Slot]gear.Piece{item.SlotHead: {Item: 1}})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Score(dragoon, set)
			assert.NoError(t, err)
			assert.Equal(t, 500.0, got)
		}()
	}
	wg.Wait()
}

func TestProperty_ScoreMatchesLevelSum(t *testing.T) {
	s := loadScorer(t, levelScript)
	ids := []item.ID{1, 2, 3}
	rapid.Check(t, func(t *rapid.T) {
		set := gear.NewSet()
		want := 0
		for _, slot := range item.AllSlots {
			if !rapid.Bool().Draw(t, "fill_"+string(slot)) {
				continue
			}
			id := rapid.SampledFrom(ids).Draw(t, "item_"+string(slot))
			set.Put(slot, gear.Piece{Item: id})
			want += map[item.ID]int{1: 500, 2: 510, 3: 490}[id]
		}
		got, err := s.Score(dragoon, set)
		if err != nil {
			t.Fatal(err)
		}
		if got != float64(want) {
			t.Fatalf("score = %v, want %d", got, want)
		}
	})
}
