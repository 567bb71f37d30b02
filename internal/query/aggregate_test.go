package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapd/internal/core"
	"zapd/internal/table"
)

func scoresTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("scores", []core.Column{
		{Name: "points", Type: core.TypeInteger},
		{Name: "player", Type: core.TypeString},
	})
	require.NoError(t, err)
	tbl.Insert(core.Row{"points": core.NewInteger(10), "player": core.NewString("a")})
	tbl.Insert(core.Row{"points": core.NewInteger(30), "player": core.NewString("b")})
	tbl.Insert(core.Row{"player": core.NewString("c")}) // Null points
	return tbl
}

func noLookup(string) (*table.Table, bool) { return nil, false }

func aggregate(t *testing.T, tbl *table.Table, a Aggregate) core.Value {
	t.Helper()
	rows, err := Select(noLookup, tbl, a)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 1)
	return rows[0].Get(a.Function.String())
}

func TestCountMatchAllIncludesNulls(t *testing.T) {
	tbl := scoresTable(t)
	// Under a MatchAll filter every row counts, Null points included.
	got := aggregate(t, tbl, Aggregate{Function: Count, Column: "points"})
	assert.True(t, got.Equal(core.NewInteger(3)))
}

func TestCountFilteredSkipsNulls(t *testing.T) {
	tbl := scoresTable(t)
	got := aggregate(t, tbl, Aggregate{
		Function: Count,
		Column:   "points",
		Filter:   Condition{Column: "player", Op: Neq, Value: core.NewString("nobody")},
	})
	assert.True(t, got.Equal(core.NewInteger(2)))
}

func TestSumSkipsNulls(t *testing.T) {
	tbl := scoresTable(t)
	got := aggregate(t, tbl, Aggregate{Function: Sum, Column: "points"})
	assert.True(t, got.Equal(core.NewFloat(40)))
}

func TestAvg(t *testing.T) {
	tbl := scoresTable(t)
	got := aggregate(t, tbl, Aggregate{Function: Avg, Column: "points"})
	assert.True(t, got.Equal(core.NewFloat(20)))
}

func TestAvgOverZeroRowsIsNull(t *testing.T) {
	tbl := scoresTable(t)
	got := aggregate(t, tbl, Aggregate{
		Function: Avg,
		Column:   "points",
		Filter:   Condition{Column: "player", Op: Eq, Value: core.NewString("nobody")},
	})
	assert.True(t, got.IsNull())
}

func TestMinMax(t *testing.T) {
	tbl := scoresTable(t)
	assert.True(t, aggregate(t, tbl, Aggregate{Function: Min, Column: "points"}).Equal(core.NewInteger(10)))
	assert.True(t, aggregate(t, tbl, Aggregate{Function: Max, Column: "points"}).Equal(core.NewInteger(30)))
}

func TestMinOverEmptyIsNull(t *testing.T) {
	tbl, err := table.New("empty", []core.Column{{Name: "v", Type: core.TypeInteger}})
	require.NoError(t, err)
	assert.True(t, aggregate(t, tbl, Aggregate{Function: Min, Column: "v"}).IsNull())
	assert.True(t, aggregate(t, tbl, Aggregate{Function: Max, Column: "v"}).IsNull())
}

func TestSumOverNonNumericColumnRejected(t *testing.T) {
	tbl := scoresTable(t)
	_, err := Select(noLookup, tbl, Aggregate{Function: Sum, Column: "player"})
	var nonNumeric *core.AggregateOverNonNumericError
	require.ErrorAs(t, err, &nonNumeric)
	assert.Equal(t, "player", nonNumeric.Column)
}
