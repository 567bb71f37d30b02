package query

import (
	"sort"

	"zapd/internal/core"
	"zapd/internal/table"
)

// Lookup resolves a table by name; Join needs it to reach the target table.
type Lookup func(name string) (*table.Table, bool)

// MatchPositions returns the positions of t's rows satisfying pred. It is
// the entry point used by update/delete (which need positions to mutate)
// and by Select's row-filtering path (which maps positions back to rows).
func MatchPositions(t *table.Table, pred Predicate) ([]int, error) {
	switch p := pred.(type) {
	case MatchAll, *MatchAll:
		out := make([]int, t.Len())
		for i := range out {
			out[i] = i
		}
		return out, nil
	case Condition:
		return matchCondition(t, p)
	case *Condition:
		return matchCondition(t, *p)
	case And:
		return matchAnd(t, p.Children)
	case *And:
		return matchAnd(t, p.Children)
	case Or:
		return matchOr(t, p.Children)
	case *Or:
		return matchOr(t, p.Children)
	case Not:
		return matchNot(t, p.Inner)
	case *Not:
		return matchNot(t, p.Inner)
	default:
		return nil, &core.UnsupportedOperatorError{Operator: "non-predicate query used as filter"}
	}
}

func matchCondition(t *table.Table, c Condition) ([]int, error) {
	if c.Op == Eq && t.HasIndex(c.Column) {
		positions, _ := t.IndexPositions(c.Column, c.Value)
		if c.Value.IsNull() {
			// Indexes never store Null entries (table.index.add skips
			// Null); Eq-Null is answered by a scan instead.
			return scanCondition(t, c)
		}
		out := append([]int(nil), positions...)
		sortPositions(out)
		return out, nil
	}
	return scanCondition(t, c)
}

func scanCondition(t *table.Table, c Condition) ([]int, error) {
	var out []int
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.RowAt(pos)
		v := row.Get(c.Column)
		ok, err := compare(v, c.Op, c.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

func compare(v core.Value, op Operator, target core.Value) (bool, error) {
	switch op {
	case Eq:
		return v.Equal(target), nil
	case Neq:
		return !v.Equal(target), nil
	case Lt:
		return v.Less(target), nil
	case Lte:
		return (v.Less(target) || v.Equal(target)) && sameKind(v, target), nil
	case Gt:
		return !v.Less(target) && !v.Equal(target) && sameKind(v, target), nil
	case Gte:
		return !v.Less(target) && sameKind(v, target), nil
	default:
		return false, &core.UnsupportedOperatorError{Operator: op.String()}
	}
}

func sameKind(a, b core.Value) bool {
	// Lte/Gt/Gte aren't naturally expressible via Less alone when a and b
	// are cross-variant or Null (Less defines both false, and Null equals
	// Null), so guard explicitly: a Null or cross-variant comparison is
	// never Lte/Gt/Gte-true.
	return a.Kind() == b.Kind() && a.Kind() != core.KindNull
}

// reorderAnd partitions children into Eq-on-indexed-column predicates first,
// everything else second, preserving relative order within each group. This
// is the entire optimizer: no cost model, no cross-conjunct rewrite.
func reorderAnd(t *table.Table, children []Predicate) []Predicate {
	var indexed, rest []Predicate
	for _, child := range children {
		if isIndexedEq(t, child) {
			indexed = append(indexed, child)
		} else {
			rest = append(rest, child)
		}
	}
	return append(indexed, rest...)
}

func isIndexedEq(t *table.Table, pred Predicate) bool {
	switch c := pred.(type) {
	case Condition:
		return c.Op == Eq && t.HasIndex(c.Column) && !c.Value.IsNull()
	case *Condition:
		return c.Op == Eq && t.HasIndex(c.Column) && !c.Value.IsNull()
	default:
		return false
	}
}

func matchAnd(t *table.Table, children []Predicate) ([]int, error) {
	if len(children) == 0 {
		return MatchPositions(t, MatchAll{})
	}
	ordered := reorderAnd(t, children)
	var set map[int]bool
	for i, child := range ordered {
		positions, err := MatchPositions(t, child)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			set = make(map[int]bool, len(positions))
			for _, p := range positions {
				set[p] = true
			}
			continue
		}
		next := make(map[int]bool)
		for _, p := range positions {
			if set[p] {
				next[p] = true
			}
		}
		set = next
		if len(set) == 0 {
			break
		}
	}
	return sortedKeys(set), nil
}

func matchOr(t *table.Table, children []Predicate) ([]int, error) {
	set := make(map[int]bool)
	for _, child := range children {
		positions, err := MatchPositions(t, child)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			set[p] = true
		}
	}
	return sortedKeys(set), nil
}

func matchNot(t *table.Table, inner Predicate) ([]int, error) {
	positions, err := MatchPositions(t, inner)
	if err != nil {
		return nil, err
	}
	excluded := make(map[int]bool, len(positions))
	for _, p := range positions {
		excluded[p] = true
	}
	var out []int
	for pos := 0; pos < t.Len(); pos++ {
		if !excluded[pos] {
			out = append(out, pos)
		}
	}
	return out, nil
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sortPositions(out)
	return out
}

// sortPositions orders positions ascending, restoring insertion order
// after a map-backed step (an index lookup or a boolean set) scrambled it.
func sortPositions(out []int) {
	sort.Ints(out)
}

// Rows filters t by pred and returns copies of the matching rows in
// insertion order.
func Rows(t *table.Table, pred Predicate) ([]core.Row, error) {
	positions, err := MatchPositions(t, pred)
	if err != nil {
		return nil, err
	}
	out := make([]core.Row, 0, len(positions))
	for _, p := range positions {
		row, ok := t.RowAt(p)
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}
