package query

import (
	"zapd/internal/core"
	"zapd/internal/table"
)

// Select evaluates q against the driving table t, resolving Join targets
// and nested tables through lookup. It is the single entry point the
// database facade's select() operation calls: q may be a plain
// Predicate, a Join, or an Aggregate.
func Select(lookup Lookup, t *table.Table, q Query) ([]core.Row, error) {
	switch query := q.(type) {
	case Join:
		driving, err := Rows(t, filterOrMatchAll(query.Filter))
		if err != nil {
			return nil, err
		}
		return evalJoin(lookup, driving, query)
	case *Join:
		driving, err := Rows(t, filterOrMatchAll(query.Filter))
		if err != nil {
			return nil, err
		}
		return evalJoin(lookup, driving, *query)
	case Aggregate:
		return selectAggregate(t, query)
	case *Aggregate:
		return selectAggregate(t, *query)
	default:
		return Rows(t, query)
	}
}

func selectAggregate(t *table.Table, a Aggregate) ([]core.Row, error) {
	if a.Function == Sum || a.Function == Avg {
		// Values in a declared non-numeric column can never sum; reject the
		// query instead of silently skipping every row.
		if col, ok := t.Column(a.Column); ok && col.Type != core.TypeInteger && col.Type != core.TypeFloat {
			return nil, &core.AggregateOverNonNumericError{Column: a.Column}
		}
	}
	filter := filterOrMatchAll(a.Filter)
	rows, err := Rows(t, filter)
	if err != nil {
		return nil, err
	}
	_, isMatchAll := filter.(MatchAll)
	return evalAggregate(rows, a, isMatchAll)
}

func filterOrMatchAll(p Predicate) Predicate {
	if p == nil {
		return MatchAll{}
	}
	return p
}
