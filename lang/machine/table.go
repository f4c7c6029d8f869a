package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Table is the machine's sole composite data structure: a hash map from
// Value to Value, plus an optional metatable and a running "push counter"
// used by TABLE_BUILD to append positional (array-like)
// entries without the compiler having to track explicit integer keys,
// grounded on the teacher's swiss-backed Map (lang/machine/map.go).
type Table struct {
	m    *swiss.Map[Value, Value]
	meta *Table
	next int64 // next positional index to use, 1-based per spec.md's Lua-family indexing
}

var (
	_ Value         = (*Table)(nil)
	_ HasMetatable  = (*Table)(nil)
)

// NewTable returns an empty table with initial capacity for at least size
// entries.
func NewTable(size int) *Table {
	if size < 1 {
		size = 1
	}
	return &Table{m: swiss.NewMap[Value, Value](uint32(size)), next: 1}
}

func (t *Table) String() string { return fmt.Sprintf("table: %p", t) }
func (t *Table) Type() string   { return "table" }

func (t *Table) Metatable() *Table     { return t.meta }
func (t *Table) SetMetatable(m *Table) { t.meta = m }

// Get returns the raw value stored at key, without consulting __index.
func (t *Table) Get(key Value) (Value, bool) {
	return t.m.Get(key)
}

// Set stores value at key, without consulting __newindex. Storing Nil
// removes the key, matching Lua-family table semantics.
func (t *Table) Set(key, value Value) {
	if _, ok := value.(NilType); ok {
		t.m.Delete(key)
		return
	}
	t.m.Put(key, value)
	if ik, ok := key.(Integer); ok && int64(ik) >= t.next {
		t.next = int64(ik) + 1
	}
}

// Insert appends value at the table's current positional index (used by
// TABLE_BUILD for table-constructor positional entries and by the stdlib's
// snapshot builders).
func (t *Table) Insert(value Value) {
	t.Set(Integer(t.next), value)
}

// Len returns the value used by the `#` operator: the total number of
// stored entries, keyed or positional alike, per spec.md §4.4.1/§4.5
// ("length is defined as the number of stored entries"). This is a
// deliberate departure from Lua's border-search `#` semantics: this
// implementation's Table has no dedicated array part to search a border
// over.
func (t *Table) Len() int { return t.m.Count() }

// Count is a synonym for Len, used where "number of entries" reads more
// naturally than "length" (e.g. sizing a fresh table from an existing
// one).
func (t *Table) Count() int { return t.m.Count() }

// Iterate exposes keys/values for pairs()/ipairs()/next() (spec.md §4,
// recovered from original_source/src/table.rs).
func (t *Table) Iterate(fn func(k, v Value) bool) {
	t.m.Iter(func(k, v Value) bool {
		return !fn(k, v)
	})
}

// Border returns the count of consecutive positional entries starting at
// index 1, used by the stdlib's ipairs (not by the `#` operator, which
// uses Len/Count per spec.md's "total entries" definition instead).
func (t *Table) Border() int {
	n := int64(0)
	for {
		if _, ok := t.m.Get(Integer(n + 1)); !ok {
			break
		}
		n++
	}
	return int(n)
}
