// Package machine implements the register-less, stack-based bytecode
// virtual machine described in spec.md §4.4: a fixed-capacity value stack,
// a call-frame stack, a sorted open-upvalue list, a globals table, and
// tagged dynamic values (nil, bool, integer, float, string, table,
// function, closure, native function, user data).
package machine

import (
	"fmt"
	"math"

	"github.com/mna/tamarin/lang/token"
)

// Value is the interface implemented by every value the machine can
// manipulate, mirroring the teacher's machine.Value design.
type Value interface {
	String() string
	Type() string
}

// Nil is the machine's singular nil value.
type NilType struct{}

var Nil = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "bool" }

// Integer is a 64-bit signed integer, kept distinct from Number per
// spec.md §3 (Lua 5.3-style integer subtype).
type Integer int64

func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }
func (Integer) Type() string     { return "integer" }

// Number is a 64-bit floating-point value.
type Number float64

func (n Number) String() string {
	f := float64(n)
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return fmt.Sprintf("%g", f)
}
func (Number) Type() string { return "number" }

// String is an immutable string value.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// Truthy reports whether v is truthy: everything except nil and false is
// truthy, per spec.md §4.4's closure-truthiness invariant.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Ordered is implemented by values that support the relational operators
// directly (without a metamethod), mirroring the teacher's Ordered
// interface.
type Ordered interface {
	Value
	Cmp(y Value) (int, error)
}

func (i Integer) Cmp(y Value) (int, error) {
	switch y := y.(type) {
	case Integer:
		switch {
		case i < y:
			return -1, nil
		case i > y:
			return 1, nil
		}
		return 0, nil
	case Number:
		return Number(i).Cmp(y)
	}
	return 0, fmt.Errorf("attempt to compare %s with %s", i.Type(), y.Type())
}

func (n Number) Cmp(y Value) (int, error) {
	var g float64
	switch y := y.(type) {
	case Integer:
		g = float64(y)
	case Number:
		g = float64(y)
	default:
		return 0, fmt.Errorf("attempt to compare %s with %s", n.Type(), y.Type())
	}
	f := float64(n)
	switch {
	case f < g:
		return -1, nil
	case f > g:
		return 1, nil
	case f == g:
		return 0, nil
	}
	// NaN is involved; treat as unordered. EQUAL is handled by VM.equals
	// instead of Cmp, so this path only matters for LESS et al.
	return 0, fmt.Errorf("attempt to compare number with NaN")
}

func (s String) Cmp(y Value) (int, error) {
	t, ok := y.(String)
	if !ok {
		return 0, fmt.Errorf("attempt to compare %s with %s", s.Type(), y.Type())
	}
	switch {
	case s < t:
		return -1, nil
	case s > t:
		return 1, nil
	}
	return 0, nil
}

// Callable is implemented by any value that may appear as the callee of a
// CALL instruction.
type Callable interface {
	Value
	Name() string
}

// HasMetatable is implemented by values whose metamethod dispatch table may
// be inspected/assigned, per spec.md §4.5 (setmetatable/getmetatable).
type HasMetatable interface {
	Value
	Metatable() *Table
	SetMetatable(*Table)
}

// position is attached to runtime errors so they can report a source
// location, mirroring the teacher's frame/position plumbing.
type position = token.Pos
