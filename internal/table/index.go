package table

import (
	"sync"

	"zapd/internal/core"
)

// index is the inverse map for one column: Value -> set of row positions
// holding that value. It is guarded by its own RWMutex rather than built as
// a lock-free structure, so readers of an already-built index proceed
// under RLock without requiring the table's exclusive grant.
type index struct {
	mu      sync.RWMutex
	byValue map[indexKey]map[int]struct{}
}

// indexKey is a hashable projection of core.Value suitable for use as a Go
// map key. Value itself is not comparable in a map-key-safe way once more
// variants (time.Time, uuid.UUID) are involved, so lookups key off the
// value's GoString text, which names the variant along with the value.
type indexKey string

func keyOf(v core.Value) indexKey {
	return indexKey(v.GoString())
}

func newIndex() *index {
	return &index{byValue: make(map[indexKey]map[int]struct{})}
}

// build scans rows once and populates the index from scratch, then
// publishes atomically: callers never observe a partially built index.
func (ix *index) build(column string, rows []core.Row) {
	fresh := make(map[indexKey]map[int]struct{})
	for pos, row := range rows {
		v := row.Get(column)
		if v.IsNull() {
			continue
		}
		k := keyOf(v)
		if fresh[k] == nil {
			fresh[k] = make(map[int]struct{})
		}
		fresh[k][pos] = struct{}{}
	}
	ix.mu.Lock()
	ix.byValue = fresh
	ix.mu.Unlock()
}

func (ix *index) add(v core.Value, pos int) {
	if v.IsNull() {
		return
	}
	k := keyOf(v)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.byValue[k] == nil {
		ix.byValue[k] = make(map[int]struct{})
	}
	ix.byValue[k][pos] = struct{}{}
}

func (ix *index) remove(v core.Value, pos int) {
	if v.IsNull() {
		return
	}
	k := keyOf(v)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	set := ix.byValue[k]
	if set == nil {
		return
	}
	delete(set, pos)
	if len(set) == 0 {
		delete(ix.byValue, k)
	}
}

// positions returns the set of row positions holding v, or nil if none.
func (ix *index) positions(v core.Value) []int {
	k := keyOf(v)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set := ix.byValue[k]
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for pos := range set {
		out = append(out, pos)
	}
	return out
}

// hasValue reports whether any row currently holds v in the indexed column,
// used by Table.HasValue for FOREIGN KEY lookups.
func (ix *index) hasValue(v core.Value) bool {
	return len(ix.positions(v)) > 0
}

// clone returns a deep copy of ix, used to checkpoint a table's state
// before a transaction applies operations that might need to be undone.
func (ix *index) clone() *index {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fresh := make(map[indexKey]map[int]struct{}, len(ix.byValue))
	for k, set := range ix.byValue {
		newSet := make(map[int]struct{}, len(set))
		for pos := range set {
			newSet[pos] = struct{}{}
		}
		fresh[k] = newSet
	}
	return &index{byValue: fresh}
}

// renumber rewrites every stored position according to remap (oldPos ->
// newPos, -1 meaning the row was removed), used after delete-compaction
// shifts every subsequent row's position.
func (ix *index) renumber(remap []int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	fresh := make(map[indexKey]map[int]struct{}, len(ix.byValue))
	for k, set := range ix.byValue {
		newSet := make(map[int]struct{}, len(set))
		for pos := range set {
			if pos >= len(remap) {
				continue
			}
			if newPos := remap[pos]; newPos >= 0 {
				newSet[newPos] = struct{}{}
			}
		}
		if len(newSet) > 0 {
			fresh[k] = newSet
		}
	}
	ix.byValue = fresh
}
