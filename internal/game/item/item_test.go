package item_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootmaster/internal/game/item"
)

func validGear() *item.Def {
	return &item.Def{
		ID:    100,
		Name:  "Ascension Helm",
		Level: 500,
		Slots: []item.Slot{item.SlotHead},
		Jobs:  []string{"pld", "war"},
	}
}

func TestDef_Validate_AcceptsGear(t *testing.T) {
	assert.NoError(t, validGear().Validate())
}

func TestDef_Validate_AcceptsToken(t *testing.T) {
	d := &item.Def{
		ID:   200,
		Name: "Head Coffer Token",
		Exchanges: []item.ShopEntry{
			{Result: 100, Costs: []item.Cost{{Item: 200, Count: 2}}},
		},
	}
	assert.NoError(t, d.Validate())
	assert.True(t, d.IsExchange())
	assert.False(t, d.IsGear())
}

func TestDef_Validate_RejectsMissingName(t *testing.T) {
	d := validGear()
	d.Name = ""
	assert.Error(t, d.Validate())
}

func TestDef_Validate_RejectsUnknownSlot(t *testing.T) {
	d := validGear()
	d.Slots = []item.Slot{"tail"}
	assert.Error(t, d.Validate())
}

func TestDef_Validate_RejectsUnpairedSlots(t *testing.T) {
	d := validGear()
	d.Slots = []item.Slot{item.SlotHead, item.SlotBody}
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interchangeable pair")
}

func TestDef_Validate_AcceptsRingPair(t *testing.T) {
	d := validGear()
	d.Slots = []item.Slot{item.SlotRing1, item.SlotRing2}
	assert.NoError(t, d.Validate())
}

func TestDef_Validate_RejectsGearToken(t *testing.T) {
	d := validGear()
	d.Exchanges = []item.ShopEntry{{Result: 1, Costs: []item.Cost{{Item: 2, Count: 1}}}}
	assert.Error(t, d.Validate())
}

func TestDef_Validate_RejectsZeroCostCount(t *testing.T) {
	d := &item.Def{
		ID:        200,
		Name:      "Token",
		Exchanges: []item.ShopEntry{{Result: 100, Costs: []item.Cost{{Item: 200, Count: 0}}}},
	}
	assert.Error(t, d.Validate())
}

func TestDef_UsableBy(t *testing.T) {
	d := validGear()
	assert.True(t, d.UsableBy("pld"))
	assert.False(t, d.UsableBy("whm"))
	d.Jobs = nil
	assert.True(t, d.UsableBy("whm"))
}

func TestShopEntry_CostOf(t *testing.T) {
	e := item.ShopEntry{Result: 1, Costs: []item.Cost{{Item: 2, Count: 4}, {Item: 3, Count: 375}}}
	assert.Equal(t, 4, e.CostOf(2))
	assert.Equal(t, 375, e.CostOf(3))
	assert.Equal(t, 0, e.CostOf(9))
}

func TestSlot_PartnerIsSymmetric(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.SampledFrom(item.AllSlots).Draw(rt, "slot")
		p, ok := s.Partner()
		if !ok {
			return
		}
		back, ok := p.Partner()
		require.True(rt, ok)
		assert.Equal(rt, s, back)
	})
}

func TestParseSlot(t *testing.T) {
	s, err := item.ParseSlot("ring_2")
	require.NoError(t, err)
	assert.Equal(t, item.SlotRing2, s)
	_, err = item.ParseSlot("tail")
	assert.Error(t, err)
}

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()
	content := `
- id: 101
  name: Ascension Ring
  level: 500
  unique: true
  slots: [ring_1, ring_2]
- id: 100
  name: Ascension Helm
  level: 500
  slots: [head]
  jobs: [pld]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gear.yaml"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	items, err := item.LoadItems(dir)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, item.ID(100), items[0].ID)
	assert.True(t, items[1].Unique)
	assert.True(t, items[1].CanOccupy(item.SlotRing2))
}

func TestLoadItems_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("- id: 1\n  level: 10\n"), 0o644))
	_, err := item.LoadItems(dir)
	assert.Error(t, err)
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := item.NewRegistry()
	require.NoError(t, r.Register(validGear()))
	assert.Error(t, r.Register(validGear()))

	d, ok := r.Item(100)
	require.True(t, ok)
	assert.Equal(t, "Ascension Helm", d.Name)

	_, err := r.MustItem(999)
	assert.ErrorIs(t, err, item.ErrUnknownItem)
}
