package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapd/internal/core"
	"zapd/internal/table"
)

func numbersTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("numbers", []core.Column{
		{Name: "n", Type: core.TypeInteger},
		{Name: "label", Type: core.TypeString},
	})
	require.NoError(t, err)
	for i := int64(1); i <= 10; i++ {
		label := core.NewString("even")
		if i%2 == 1 {
			label = core.NewString("odd")
		}
		tbl.Insert(core.Row{"n": core.NewInteger(i), "label": label})
	}
	return tbl
}

func TestMatchAll(t *testing.T) {
	tbl := numbersTable(t)
	positions, err := MatchPositions(tbl, MatchAll{})
	require.NoError(t, err)
	assert.Len(t, positions, 10)
}

func TestConditionOperators(t *testing.T) {
	tbl := numbersTable(t)

	cases := []struct {
		op   Operator
		want int
	}{
		{Eq, 1},
		{Neq, 9},
		{Lt, 4},
		{Lte, 5},
		{Gt, 5},
		{Gte, 6},
	}
	for _, tc := range cases {
		positions, err := MatchPositions(tbl, Condition{Column: "n", Op: tc.op, Value: core.NewInteger(5)})
		require.NoError(t, err)
		assert.Len(t, positions, tc.want, "operator %s", tc.op)
	}
}

func TestConditionAgainstNull(t *testing.T) {
	tbl, err := table.New("t", []core.Column{{Name: "v", Type: core.TypeInteger}})
	require.NoError(t, err)
	tbl.Insert(core.Row{"v": core.NewInteger(1)})
	tbl.Insert(core.Row{})

	positions, err := MatchPositions(tbl, Condition{Column: "v", Op: Eq, Value: core.Null})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions)

	positions, err = MatchPositions(tbl, Condition{Column: "v", Op: Neq, Value: core.Null})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, positions)

	// Null participates only in Eq/Neq: ordering against Null matches nothing.
	positions, err = MatchPositions(tbl, Condition{Column: "v", Op: Lt, Value: core.Null})
	require.NoError(t, err)
	assert.Empty(t, positions)

	positions, err = MatchPositions(tbl, Condition{Column: "v", Op: Gte, Value: core.Null})
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestEqUsesIndexAndAgreesWithScan(t *testing.T) {
	tbl := numbersTable(t)
	cond := Condition{Column: "n", Op: Eq, Value: core.NewInteger(7)}

	scanned, err := MatchPositions(tbl, cond)
	require.NoError(t, err)

	require.NoError(t, tbl.CreateIndex("n"))
	indexed, err := MatchPositions(tbl, cond)
	require.NoError(t, err)

	assert.Equal(t, scanned, indexed)
}

func TestEqNullFallsBackToScanWithIndex(t *testing.T) {
	tbl, err := table.New("t", []core.Column{{Name: "v", Type: core.TypeInteger}})
	require.NoError(t, err)
	tbl.Insert(core.Row{"v": core.NewInteger(1)})
	tbl.Insert(core.Row{})
	require.NoError(t, tbl.CreateIndex("v"))

	positions, err := MatchPositions(tbl, Condition{Column: "v", Op: Eq, Value: core.Null})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions)
}

func TestBooleanComposition(t *testing.T) {
	tbl := numbersTable(t)

	// odd AND n > 5 -> 7, 9
	positions, err := MatchPositions(tbl, And{Children: []Predicate{
		Condition{Column: "label", Op: Eq, Value: core.NewString("odd")},
		Condition{Column: "n", Op: Gt, Value: core.NewInteger(5)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 8}, positions)

	// n < 3 OR n > 8 -> 1, 2, 9, 10
	positions, err = MatchPositions(tbl, Or{Children: []Predicate{
		Condition{Column: "n", Op: Lt, Value: core.NewInteger(3)},
		Condition{Column: "n", Op: Gt, Value: core.NewInteger(8)},
	}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 8, 9}, positions)

	// NOT odd -> the five evens
	positions, err = MatchPositions(tbl, Not{Inner: Condition{Column: "label", Op: Eq, Value: core.NewString("odd")}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 7, 9}, positions)
}

func TestEmptyAndMatchesEverything(t *testing.T) {
	tbl := numbersTable(t)
	positions, err := MatchPositions(tbl, And{})
	require.NoError(t, err)
	assert.Len(t, positions, 10)
}

func TestReorderAndPutsIndexedEqFirst(t *testing.T) {
	tbl := numbersTable(t)
	require.NoError(t, tbl.CreateIndex("n"))

	scan1 := Condition{Column: "label", Op: Eq, Value: core.NewString("odd")}
	idxEq := Condition{Column: "n", Op: Eq, Value: core.NewInteger(5)}
	scan2 := Condition{Column: "n", Op: Gt, Value: core.NewInteger(2)}
	idxEq2 := Condition{Column: "n", Op: Eq, Value: core.NewInteger(7)}

	ordered := reorderAnd(tbl, []Predicate{scan1, idxEq, scan2, idxEq2})
	require.Len(t, ordered, 4)
	assert.Equal(t, idxEq, ordered[0])
	assert.Equal(t, idxEq2, ordered[1])
	assert.Equal(t, scan1, ordered[2])
	assert.Equal(t, scan2, ordered[3])

	// Neq on an indexed column, and Eq on an unindexed one, stay put.
	neq := Condition{Column: "n", Op: Neq, Value: core.NewInteger(5)}
	plainEq := Condition{Column: "label", Op: Eq, Value: core.NewString("odd")}
	ordered = reorderAnd(tbl, []Predicate{neq, plainEq})
	assert.Equal(t, []Predicate{neq, plainEq}, ordered)
}

// An And evaluated with the reordering (index present) must return the
// same rows as without it.
func TestOptimizerSoundness(t *testing.T) {
	queries := []Predicate{
		And{Children: []Predicate{
			Condition{Column: "label", Op: Eq, Value: core.NewString("odd")},
			Condition{Column: "n", Op: Eq, Value: core.NewInteger(5)},
		}},
		And{Children: []Predicate{
			Condition{Column: "n", Op: Gte, Value: core.NewInteger(2)},
			Condition{Column: "n", Op: Eq, Value: core.NewInteger(4)},
			Condition{Column: "label", Op: Neq, Value: core.NewString("odd")},
		}},
		And{Children: []Predicate{
			Not{Inner: Condition{Column: "n", Op: Eq, Value: core.NewInteger(3)}},
			Or{Children: []Predicate{
				Condition{Column: "n", Op: Lt, Value: core.NewInteger(4)},
				Condition{Column: "n", Op: Eq, Value: core.NewInteger(9)},
			}},
		}},
	}

	for i, q := range queries {
		plain := numbersTable(t)
		indexed := numbersTable(t)
		require.NoError(t, indexed.CreateIndex("n"))

		want, err := MatchPositions(plain, q)
		require.NoError(t, err)
		got, err := MatchPositions(indexed, q)
		require.NoError(t, err)
		assert.Equal(t, want, got, "query %d", i)
	}
}

func TestNonPredicateAsFilterRejected(t *testing.T) {
	tbl := numbersTable(t)
	_, err := MatchPositions(tbl, Join{Target: "other"})
	var unsupported *core.UnsupportedOperatorError
	require.ErrorAs(t, err, &unsupported)
}
