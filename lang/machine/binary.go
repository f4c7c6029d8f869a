package machine

// Metamethod names consulted by operator and index dispatch, per
// spec.md §4.4.4.
const (
	metaAdd      = "__add"
	metaSub      = "__sub"
	metaMul      = "__mul"
	metaDiv      = "__div"
	metaUnm      = "__unm"
	metaConcat   = "__concat"
	metaLen      = "__len"
	metaEq       = "__eq"
	metaLt       = "__lt"
	metaLe       = "__le"
	metaIndex    = "__index"
	metaNewIndex = "__newindex"
	metaCall     = "__call"
	metaToString = "__tostring"
)

// arith applies a numeric binary operator with Lua-family promotion rules
// (spec.md §4.4.1): Integer op Integer stays Integer; mixing in a Number
// promotes the result to Number. If the operands are not both numeric, the
// corresponding metamethod is tried on the left operand, then the right.
func (vm *VM) arith(pos position, x, y Value, name string, ii func(a, b int64) (int64, bool), ff func(a, b float64) float64) (Value, error) {
	switch a := x.(type) {
	case Integer:
		switch b := y.(type) {
		case Integer:
			if ii != nil {
				if r, ok := ii(int64(a), int64(b)); ok {
					return Integer(r), nil
				}
			}
			return Number(ff(float64(a), float64(b))), nil
		case Number:
			return Number(ff(float64(a), float64(b))), nil
		}
	case Number:
		switch b := y.(type) {
		case Integer:
			return Number(ff(float64(a), float64(b))), nil
		case Number:
			return Number(ff(float64(a), float64(b))), nil
		}
	}
	if v, handled, err := vm.tryBinaryMetamethod(pos, name, x, y); handled {
		return v, err
	}
	return nil, newRuntimeError(ErrArithmetic, pos, "attempt to perform arithmetic on a %s value", badOperandType(x, y))
}

func badOperandType(x, y Value) string {
	if _, ok := x.(Integer); ok {
		return y.Type()
	}
	if _, ok := x.(Number); ok {
		return y.Type()
	}
	return x.Type()
}

// tryBinaryMetamethod looks up name on x's metatable, then y's, per
// spec.md §4.4.4's "left operand first, then right" rule.
func (vm *VM) tryBinaryMetamethod(pos position, name string, x, y Value) (Value, bool, error) {
	if mm, ok := vm.lookupMeta(x, name); ok {
		v, err := vm.callValue(pos, mm, []Value{x, y})
		return v, true, err
	}
	if mm, ok := vm.lookupMeta(y, name); ok {
		v, err := vm.callValue(pos, mm, []Value{x, y})
		return v, true, err
	}
	return nil, false, nil
}

// lookupMeta resolves a metamethod by name on v: tables consult their
// per-instance metatable (HasMetatable), while UserData consults the
// VM-wide UserDataType registry keyed by its TypeName, per spec.md §4.6.
func (vm *VM) lookupMeta(v Value, name string) (Value, bool) {
	if ud, ok := v.(*UserData); ok {
		ut, ok := vm.userDataType(ud.TypeName)
		if !ok {
			return nil, false
		}
		fn, ok := ut.MetaMethods[name]
		if !ok {
			return nil, false
		}
		return &NativeFunction{FuncName: name, Fn: bindUserDataMethod(fn, ud)}, true
	}
	hm, ok := v.(HasMetatable)
	if !ok {
		return nil, false
	}
	mt := hm.Metatable()
	if mt == nil {
		return nil, false
	}
	return mt.Get(String(name))
}

func (vm *VM) add(pos position, x, y Value) (Value, error) {
	if xs, ok := x.(String); ok {
		if ys, ok := y.(String); ok {
			return xs + ys, nil // lenient: `+` on two strings concatenates in this implementation
		}
	}
	return vm.arith(pos, x, y, metaAdd,
		func(a, b int64) (int64, bool) { return a + b, true },
		func(a, b float64) float64 { return a + b })
}

func (vm *VM) sub(pos position, x, y Value) (Value, error) {
	return vm.arith(pos, x, y, metaSub,
		func(a, b int64) (int64, bool) { return a - b, true },
		func(a, b float64) float64 { return a - b })
}

func (vm *VM) mul(pos position, x, y Value) (Value, error) {
	return vm.arith(pos, x, y, metaMul,
		func(a, b int64) (int64, bool) { return a * b, true },
		func(a, b float64) float64 { return a * b })
}

// div is always float division, per Lua 5.3's `/` semantics (floor
// division `//` is lexed but not implemented by this virtual machine; see
// DESIGN.md).
func (vm *VM) div(pos position, x, y Value) (Value, error) {
	return vm.arith(pos, x, y, metaDiv,
		nil,
		func(a, b float64) float64 { return a / b })
}

func (vm *VM) negate(pos position, x Value) (Value, error) {
	switch a := x.(type) {
	case Integer:
		return -a, nil
	case Number:
		return -a, nil
	}
	if mm, ok := vm.lookupMeta(x, metaUnm); ok {
		return vm.callValue(pos, mm, []Value{x, x})
	}
	return nil, newRuntimeError(ErrArithmetic, pos, "attempt to perform arithmetic on a %s value", x.Type())
}

// concat implements the `..` operator: string/numeric operands are
// stringified and joined; otherwise __concat is tried on either operand.
func (vm *VM) concat(pos position, x, y Value) (Value, error) {
	xs, xok := concatOperand(x)
	ys, yok := concatOperand(y)
	if xok && yok {
		return String(xs + ys), nil
	}
	if v, handled, err := vm.tryBinaryMetamethod(pos, metaConcat, x, y); handled {
		return v, err
	}
	return nil, newRuntimeError(ErrArithmetic, pos, "attempt to concatenate a %s value", badOperandType(x, y))
}

func concatOperand(v Value) (string, bool) {
	switch v := v.(type) {
	case String:
		return string(v), true
	case Integer:
		return v.String(), true
	case Number:
		return v.String(), true
	}
	return "", false
}

// length implements the `#` operator: string length, table length (total
// entry count per Table.Len), or __len (tables and user-data).
func (vm *VM) length(pos position, x Value) (Value, error) {
	switch v := x.(type) {
	case String:
		return Integer(len(v)), nil
	case *Table:
		if mm, ok := vm.lookupMeta(x, metaLen); ok {
			return vm.callValue(pos, mm, []Value{x})
		}
		return Integer(v.Len()), nil
	case *UserData:
		if mm, ok := vm.lookupMeta(x, metaLen); ok {
			return vm.callValue(pos, mm, []Value{x})
		}
	}
	return nil, newRuntimeError(ErrType, pos, "attempt to get length of a %s value", x.Type())
}

// equals implements `==`, per spec.md §8's reflexivity-except-NaN
// invariant: identical Integer/Number/String/Bool/Nil values compare
// equal by value; Table/Closure/NativeFunction/UserData compare by
// identity unless a __eq metamethod says otherwise.
func (vm *VM) equals(pos position, x, y Value) (bool, error) {
	switch a := x.(type) {
	case NilType:
		_, ok := y.(NilType)
		return ok, nil
	case Bool:
		b, ok := y.(Bool)
		return ok && a == b, nil
	case Integer:
		switch b := y.(type) {
		case Integer:
			return a == b, nil
		case Number:
			return float64(a) == float64(b), nil
		}
		return false, nil
	case Number:
		switch b := y.(type) {
		case Integer:
			return float64(a) == float64(b), nil
		case Number:
			return float64(a) == float64(b), nil
		}
		return false, nil
	case String:
		b, ok := y.(String)
		return ok && a == b, nil
	}
	if x == y {
		return true, nil
	}
	if v, handled, err := vm.tryBinaryMetamethod(pos, metaEq, x, y); handled {
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}
	return false, nil
}

func (vm *VM) less(pos position, x, y Value) (bool, error) {
	if ord, ok := x.(Ordered); ok {
		if _, sameFamily := compatibleOrdered(x, y); sameFamily {
			c, err := ord.Cmp(y)
			if err == nil {
				return c < 0, nil
			}
		}
	}
	if v, handled, err := vm.tryBinaryMetamethod(pos, metaLt, x, y); handled {
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}
	return false, newRuntimeError(ErrType, pos, "attempt to compare %s with %s", x.Type(), y.Type())
}

func (vm *VM) lessEqual(pos position, x, y Value) (bool, error) {
	if ord, ok := x.(Ordered); ok {
		if _, sameFamily := compatibleOrdered(x, y); sameFamily {
			c, err := ord.Cmp(y)
			if err == nil {
				return c <= 0, nil
			}
		}
	}
	if v, handled, err := vm.tryBinaryMetamethod(pos, metaLe, x, y); handled {
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}
	return false, newRuntimeError(ErrType, pos, "attempt to compare %s with %s", x.Type(), y.Type())
}

// compatibleOrdered reports whether x and y are both numeric, the only
// family `<`/`<=` are defined over (spec.md §3: "ordering defined only
// for numeric pairs"; strings have no built-in order and fall through to
// __lt/__le or a typed error, matching original_source/src/vm.rs's
// is_less/is_greater, which only match numeric/infinity pairs).
func compatibleOrdered(x, y Value) (Value, bool) {
	switch x.(type) {
	case Integer, Number:
		switch y.(type) {
		case Integer, Number:
			return y, true
		}
	}
	return nil, false
}
