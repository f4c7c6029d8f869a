package tamarin

import (
	"fmt"
	"reflect"

	"github.com/mna/tamarin/lang/machine"
)

func tableID(t *machine.Table) uintptr { return reflect.ValueOf(t).Pointer() }

// Value is the embedder-facing tagged union described in spec.md §6: Nil,
// Bool, Integer, Number, String, *TableSnapshot, *Function, or *UserData.
// It deliberately does not expose the internal machine.Value types, so a
// host never needs to import lang/machine to consume results.
type Value interface {
	isExternalValue()
}

// Nil is the external nil value.
type Nil struct{}

func (Nil) isExternalValue() {}
func (Nil) String() string   { return "nil" }

// Bool is an external boolean value.
type Bool bool

func (Bool) isExternalValue() {}
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is an external 64-bit signed integer value.
type Integer int64

func (Integer) isExternalValue()  {}
func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }

// Number is an external 64-bit floating-point value.
type Number float64

func (Number) isExternalValue()  {}
func (n Number) String() string { return fmt.Sprintf("%g", float64(n)) }

// String is an external string value.
type String string

func (String) isExternalValue() {}
func (s String) String() string { return string(s) }

// TableSnapshot is a materialized, owned copy of a script table's
// key-value pairs at the moment it crossed the embedding boundary, per
// spec.md §6. ID is a stable per-table identifier (derived from the
// underlying table's address) that lets a host notice when two
// snapshots originated from the same script-side table, without holding
// a live reference into the VM's heap.
type TableSnapshot struct {
	ID      uintptr
	Entries map[Value]Value
}

func (*TableSnapshot) isExternalValue() {}
func (t *TableSnapshot) String() string {
	return fmt.Sprintf("table(%d): %d entries", t.ID, len(t.Entries))
}

// Function is an opaque handle to a script closure or native function;
// embedders cannot inspect it, only pass it back into the VM (e.g. as an
// argument to another call) or compare it for identity.
type Function struct {
	underlying machine.Value
}

func (*Function) isExternalValue() {}
func (f *Function) String() string { return f.underlying.String() }

// UserData is an opaque handle to a host value previously wrapped with
// WrapUserData, round-tripped back out to the host. TypeName identifies
// which machine.UserDataType registry (installed via Machine's
// RegisterUserDataType) a script's method/field access on it dispatches
// through, per spec.md §4.6.
type UserData struct {
	TypeName string
	Payload  any
}

func (*UserData) isExternalValue() {}
func (u *UserData) String() string { return fmt.Sprintf("userdata<%s>: %v", u.TypeName, u.Payload) }

// WrapUserData lets a host pass an arbitrary Go value into a script as an
// opaque machine.UserData of the given type name, per spec.md §4.6.
// typeName should match one previously registered with a Machine's
// RegisterUserDataType for script-side method/field access to succeed.
func WrapUserData(typeName string, payload any) Value {
	return &UserData{TypeName: typeName, Payload: payload}
}

// toExternal converts an internal machine.Value into the external Value
// union, materializing a full snapshot for tables.
func toExternal(v machine.Value) Value {
	switch v := v.(type) {
	case nil:
		return Nil{}
	case machine.NilType:
		return Nil{}
	case machine.Bool:
		return Bool(v)
	case machine.Integer:
		return Integer(v)
	case machine.Number:
		return Number(v)
	case machine.String:
		return String(v)
	case *machine.Table:
		return snapshotTable(v)
	case *machine.UserData:
		return &UserData{TypeName: v.TypeName, Payload: v.Payload}
	default:
		// *machine.Closure, *machine.NativeFunction: opaque handles.
		return &Function{underlying: v}
	}
}

func snapshotTable(t *machine.Table) *TableSnapshot {
	snap := &TableSnapshot{
		ID:      tableID(t),
		Entries: make(map[Value]Value, t.Count()),
	}
	t.Iterate(func(k, v machine.Value) bool {
		snap.Entries[toExternal(k)] = toExternal(v)
		return true
	})
	return snap
}

// fromExternal converts an external Value back into an internal
// machine.Value, for arguments a host passes into a native function's
// return value or for values round-tripped through RegisterNative.
// TableSnapshot round-trips into a fresh *machine.Table, not the
// original: the snapshot is a copy, not a live alias.
func fromExternal(v Value) machine.Value {
	switch v := v.(type) {
	case nil:
		return machine.Nil
	case Nil:
		return machine.Nil
	case Bool:
		return machine.Bool(v)
	case Integer:
		return machine.Integer(v)
	case Number:
		return machine.Number(v)
	case String:
		return machine.String(v)
	case *TableSnapshot:
		t := machine.NewTable(len(v.Entries))
		for k, val := range v.Entries {
			t.Set(fromExternal(k), fromExternal(val))
		}
		return t
	case *UserData:
		return machine.NewUserData(v.TypeName, v.Payload)
	case *Function:
		return v.underlying
	default:
		return machine.Nil
	}
}
