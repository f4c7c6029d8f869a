// Package stdlib provides the small set of native functions that spec.md
// §6 names as assumed-present even though they sit outside the core
// compiler/machine: print, clock, setmetatable/getmetatable, type,
// tostring, tonumber, and pairs/ipairs/next, recovered from
// original_source/src/standard.rs, src/table.rs and src/interpreter.rs.
// None of this is part of the core language; it is ordinary machine.NativeFunc
// registration, the same extension mechanism any embedder uses.
package stdlib

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mna/tamarin/lang/machine"
)

// Register installs every built-in in this package into vm's globals, and
// installs the shared string method table as vm.StringMeta.
func Register(vm *machine.VM) {
	vm.Register("print", Print)
	vm.Register("clock", Clock)
	vm.Register("setmetatable", SetMetatable)
	vm.Register("getmetatable", GetMetatable)
	vm.Register("type", Type)
	vm.Register("tostring", ToString)
	vm.Register("tonumber", ToNumber)
	vm.Register("pairs", Pairs)
	vm.Register("ipairs", IPairs)
	vm.Register("next", Next)
	vm.StringMeta = newStringMetatable()
}

// newStringMetatable builds the `{__index = <method table>}` metatable
// shared by every string value, recovered from src/value.rs and the table
// string methods in src/interpreter.rs: len, upper, lower, sub and byte as
// method-style calls (`s.upper(s)`, since this language has no `:` method
// sugar) dispatched through __index, the same mechanism table metamethods
// use (spec.md §4.4.4).
func newStringMetatable() *machine.Table {
	methods := machine.NewTable(5)
	methods.Set(machine.String("len"), &machine.NativeFunction{FuncName: "len", Fn: StringLen})
	methods.Set(machine.String("upper"), &machine.NativeFunction{FuncName: "upper", Fn: StringUpper})
	methods.Set(machine.String("lower"), &machine.NativeFunction{FuncName: "lower", Fn: StringLower})
	methods.Set(machine.String("sub"), &machine.NativeFunction{FuncName: "sub", Fn: StringSub})
	methods.Set(machine.String("byte"), &machine.NativeFunction{FuncName: "byte", Fn: StringByte})

	meta := machine.NewTable(1)
	meta.Set(machine.String("__index"), methods)
	return meta
}

// StringLen returns the byte length of args[0], mirroring the `#` operator
// but callable as a method for parity with upper/lower/sub/byte.
func StringLen(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	s, ok := firstString(args)
	if !ok {
		return machine.Nil, nil
	}
	return machine.Integer(len(s)), nil
}

// StringUpper returns args[0] upper-cased (Unicode case mapping, as
// strings.ToUpper).
func StringUpper(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	s, ok := firstString(args)
	if !ok {
		return machine.Nil, nil
	}
	return machine.String(strings.ToUpper(s)), nil
}

// StringLower returns args[0] lower-cased (Unicode case mapping, as
// strings.ToLower).
func StringLower(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	s, ok := firstString(args)
	if !ok {
		return machine.Nil, nil
	}
	return machine.String(strings.ToLower(s)), nil
}

// StringSub returns the 1-based, inclusive substring of args[0] from
// args[1] to args[2] (defaulting to the string's end), clamped to the
// string's bounds like Lua's string.sub. Negative indices count from the
// end of the string.
func StringSub(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	s, ok := firstString(args)
	if !ok {
		return machine.Nil, nil
	}
	i, j := 1, len(s)
	if len(args) > 1 {
		i = subIndex(args[1], len(s))
	}
	if len(args) > 2 {
		j = subIndex(args[2], len(s))
	}
	if i < 1 {
		i = 1
	}
	if j > len(s) {
		j = len(s)
	}
	if i > j {
		return machine.String(""), nil
	}
	return machine.String(s[i-1 : j]), nil
}

func subIndex(v machine.Value, length int) int {
	i, ok := v.(machine.Integer)
	if !ok {
		return 0
	}
	n := int(i)
	if n < 0 {
		n = length + n + 1
	}
	return n
}

// StringByte returns the byte value at the 1-based position args[1]
// (defaulting to 1) of args[0], or Nil if out of range.
func StringByte(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	s, ok := firstString(args)
	if !ok {
		return machine.Nil, nil
	}
	i := 1
	if len(args) > 1 {
		i = subIndex(args[1], len(s))
	}
	if i < 1 || i > len(s) {
		return machine.Nil, nil
	}
	return machine.Integer(s[i-1]), nil
}

func firstString(args []machine.Value) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	s, ok := args[0].(machine.String)
	return string(s), ok
}

// Print writes its arguments, tab-separated, to vm.Stdout, mirroring the
// original's "> "-prefixed println (src/standard.rs).
func Print(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(vm.Stdout, "> "+strings.Join(parts, "\t"))
	return machine.Nil, nil
}

// Clock returns the current Unix time as a float number of seconds, per
// src/standard.rs's clock().
func Clock(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	return machine.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// SetMetatable assigns args[1] as args[0]'s metatable, per
// src/standard.rs's setmetatable, and returns args[0]. Non-table first
// arguments are a no-op, matching the original's silent ignore.
func SetMetatable(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	if len(args) < 2 {
		return machine.Nil, nil
	}
	if t, ok := args[0].(*machine.Table); ok {
		if mt, ok := args[1].(*machine.Table); ok {
			t.SetMetatable(mt)
		} else {
			t.SetMetatable(nil)
		}
	}
	return args[0], nil
}

// GetMetatable returns args[0]'s metatable, or Nil if it has none, per
// src/standard.rs's getmetatable.
func GetMetatable(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	if len(args) < 1 {
		return machine.Nil, nil
	}
	if hm, ok := args[0].(machine.HasMetatable); ok {
		if mt := hm.Metatable(); mt != nil {
			return mt, nil
		}
	}
	return machine.Nil, nil
}

// Type returns the dynamic type name of args[0], as a string.
func Type(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	if len(args) < 1 {
		return machine.String("nil"), nil
	}
	return machine.String(args[0].Type()), nil
}

// ToString renders args[0] as a string, consulting __tostring when
// present.
func ToString(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	if len(args) < 1 {
		return machine.String("nil"), nil
	}
	return machine.String(vm.ToString(args[0])), nil
}

// ToNumber parses args[0] into an Integer or Number, returning Nil if it
// cannot be converted, per spec.md's dynamic-typing conventions.
func ToNumber(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	if len(args) < 1 {
		return machine.Nil, nil
	}
	switch v := args[0].(type) {
	case machine.Integer, machine.Number:
		return v, nil
	case machine.String:
		s := strings.TrimSpace(string(v))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return machine.Integer(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return machine.Number(f), nil
		}
	}
	return machine.Nil, nil
}

// Pairs returns a materialized snapshot of t's entries as a list of
// {key, value} two-element tables, since the opcode set has no generic
// FOR-IN instruction (see SPEC_FULL.md §4); callers drive iteration from
// host Go code or from a native callback rather than a script-level loop
// construct.
func Pairs(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	t, ok := firstTable(args)
	if !ok {
		return machine.Nil, nil
	}
	result := machine.NewTable(t.Count())
	t.Iterate(func(k, v machine.Value) bool {
		pair := machine.NewTable(2)
		pair.Insert(k)
		pair.Insert(v)
		result.Insert(pair)
		return true
	})
	return result, nil
}

// IPairs is Pairs restricted to the contiguous 1-based integer border
// (Table.Border), matching Lua's ipairs semantics over the array part.
func IPairs(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	t, ok := firstTable(args)
	if !ok {
		return machine.Nil, nil
	}
	n := t.Border()
	result := machine.NewTable(n)
	for i := 1; i <= n; i++ {
		v, _ := t.Get(machine.Integer(i))
		pair := machine.NewTable(2)
		pair.Insert(machine.Integer(i))
		pair.Insert(v)
		result.Insert(pair)
	}
	return result, nil
}

// Next returns the {key, value} table entry following args[1] in t's
// iteration order, or Nil once exhausted, or the first entry if args[1]
// is Nil/absent. Ordering is whatever the underlying swiss.Map yields;
// no ordering guarantee is made, matching a hash table's usual contract.
func Next(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	t, ok := firstTable(args)
	if !ok {
		return machine.Nil, nil
	}
	var after machine.Value
	if len(args) > 1 {
		after = args[1]
	}

	found := after == nil
	var result machine.Value = machine.Nil
	t.Iterate(func(k, v machine.Value) bool {
		if found {
			pair := machine.NewTable(2)
			pair.Insert(k)
			pair.Insert(v)
			result = pair
			return false
		}
		if after != nil && k == after {
			found = true
		}
		return true
	})
	return result, nil
}

func firstTable(args []machine.Value) (*machine.Table, bool) {
	if len(args) < 1 {
		return nil, false
	}
	t, ok := args[0].(*machine.Table)
	return t, ok
}
