package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootmaster/internal/game/dice"
)

func TestResult_TotalAndString(t *testing.T) {
	r := dice.Result{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.Equal(t, "2d6+3: 4+5 +3 = 12", r.String())

	plain := dice.Result{Expression: "1d100", Dice: []int{42}}
	assert.Equal(t, "1d100: 42 = 42", plain.String())
}

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		count int
		sides int
		mod   int
	}{
		{"d20", 1, 20, 0},
		{"1d100", 1, 100, 0},
		{"2d6+3", 2, 6, 3},
		{"1d101-1", 1, 101, -1},
		{" 3D8 ", 3, 8, 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			e, err := dice.Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.count, e.Count)
			assert.Equal(t, tc.sides, e.Sides)
			assert.Equal(t, tc.mod, e.Modifier)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "1d1", "1d6+", "xd6", "1d6*2"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_IsDeterministic(t *testing.T) {
	a := dice.NewSeededSource(7, 11)
	b := dice.NewSeededSource(7, 11)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(101), b.Intn(101))
	}
	assert.Equal(t, a.Uint64(), b.Uint64())
}

func TestProperty_RollWithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := dice.Expression{
			Raw:      "x",
			Count:    rapid.IntRange(1, 5).Draw(rt, "count"),
			Sides:    rapid.IntRange(2, 100).Draw(rt, "sides"),
			Modifier: rapid.IntRange(-10, 10).Draw(rt, "mod"),
		}
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"), 0)
		res := dice.Roll(e, src)
		assert.Len(rt, res.Dice, e.Count)
		assert.GreaterOrEqual(rt, res.Total(), e.Min())
		assert.LessOrEqual(rt, res.Total(), e.Max())
	})
}

func TestRoller_Roll(t *testing.T) {
	r := dice.NewRoller(dice.MustParse("1d100"), zap.NewNop())
	res := r.Roll(dice.NewSeededSource(1, 2), "p1/pld")
	assert.GreaterOrEqual(t, res.Total(), 1)
	assert.LessOrEqual(t, res.Total(), 100)
	assert.Equal(t, "1d100", r.Expression().Raw)
}
