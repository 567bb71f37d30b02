package query

import "zapd/internal/core"

// evalJoin implements the join: for each row in the driving
// table, look up rows in the target table whose RightCol equals the driving
// row's LeftCol. Output rows union both rows' columns; on a name collision
// the driving row's value wins. Null never matches Null in a join key.
func evalJoin(lookup Lookup, driving []core.Row, j Join) ([]core.Row, error) {
	target, ok := lookup(j.Target)
	if !ok {
		return nil, &core.NoSuchTableError{Table: j.Target}
	}
	targetRows := target.Scan()

	byKey := make(map[string][]int)
	for i, r := range targetRows {
		v := r.Get(j.RightCol)
		if v.IsNull() {
			continue
		}
		k := v.GoString()
		byKey[k] = append(byKey[k], i)
	}

	var out []core.Row
	matchedTarget := make(map[int]bool)

	for _, drow := range driving {
		lv := drow.Get(j.LeftCol)
		var matches []int
		if !lv.IsNull() {
			matches = byKey[lv.GoString()]
		}
		if len(matches) == 0 {
			if j.Type == LeftJoin {
				out = append(out, unionRows(drow, nil))
			}
			continue
		}
		for _, ti := range matches {
			matchedTarget[ti] = true
			out = append(out, unionRows(drow, targetRows[ti]))
		}
	}

	if j.Type == RightJoin {
		for i, trow := range targetRows {
			if !matchedTarget[i] {
				out = append(out, unionRows(nil, trow))
			}
		}
	}

	return out, nil
}

// unionRows merges left and right into one row; left's value wins on a
// column-name collision. A nil side contributes no columns, which leaves
// the other side's columns present and everything else implicitly Null
// when read back through Row.Get.
func unionRows(left, right core.Row) core.Row {
	out := make(core.Row, len(left)+len(right))
	for k, v := range right {
		out[k] = v
	}
	for k, v := range left {
		out[k] = v
	}
	return out
}
