package query

import "zapd/internal/core"

// evalAggregate implements Aggregate: filter rows (nil Filter means
// MatchAll), then reduce Column over the survivors. Result shape is a
// one-row sequence with a single column named by the function.
//
// matchAllFilter records whether a.Filter was MatchAll (or nil, its
// default): Count under a MatchAll filter counts every row regardless of
// Null in the aggregated column, unlike SQL's COUNT(col); any other filter
// counts only non-Null occurrences.
func evalAggregate(rows []core.Row, a Aggregate, matchAllFilter bool) ([]core.Row, error) {
	switch a.Function {
	case Count:
		n := 0
		for _, r := range rows {
			if matchAllFilter {
				n++
				continue
			}
			if !r.Get(a.Column).IsNull() {
				n++
			}
		}
		return oneRow("count", core.NewInteger(int64(n))), nil
	case Sum, Avg:
		var sum float64
		var count int
		for _, r := range rows {
			v := r.Get(a.Column)
			if v.IsNull() {
				continue
			}
			n, ok := v.Numeric()
			if !ok {
				continue
			}
			sum += n
			count++
		}
		if a.Function == Sum {
			return oneRow("sum", core.NewFloat(sum)), nil
		}
		if count == 0 {
			return oneRow("avg", core.Null), nil
		}
		return oneRow("avg", core.NewFloat(sum/float64(count))), nil
	case Min, Max:
		var best core.Value
		found := false
		for _, r := range rows {
			v := r.Get(a.Column)
			if v.IsNull() {
				continue
			}
			if !found {
				best = v
				found = true
				continue
			}
			if a.Function == Min && v.Less(best) {
				best = v
			}
			if a.Function == Max && best.Less(v) {
				best = v
			}
		}
		name := "min"
		if a.Function == Max {
			name = "max"
		}
		if !found {
			return oneRow(name, core.Null), nil
		}
		return oneRow(name, best), nil
	default:
		return nil, &core.UnsupportedOperatorError{Operator: "unknown aggregate function"}
	}
}

func oneRow(col string, v core.Value) []core.Row {
	return []core.Row{{col: v}}
}
