package machine

import (
	"fmt"

	c "github.com/mna/tamarin/lang/compiler"
)

// step executes one instruction (op, whose first operand byte if any
// begins at fr.pc) against fr, the currently executing frame.
func (vm *VM) step(fr *callFrame, op c.Opcode) error {
	pos := fr.position()

	switch op {
	case c.CONSTANT:
		k := vm.fetch8(fr)
		return vm.push(vm.constantValue(fr, k))

	case c.NIL:
		return vm.push(Nil)
	case c.TRUE:
		return vm.push(Bool(true))
	case c.FALSE:
		return vm.push(Bool(false))

	case c.POP:
		vm.pop()
		return nil
	case c.POPS:
		n := vm.fetch8(fr)
		vm.sp -= int(n)
		return nil
	case c.CLOSE_UPVALUES:
		n := int(vm.fetch8(fr))
		vm.closeUpvaluesFrom(vm.sp - n)
		vm.sp -= n
		return nil

	case c.DEFINE_GLOBAL:
		k := vm.fetch8(fr)
		name := vm.constant(fr, k).(string)
		vm.Globals.Set(String(name), vm.pop())
		return nil
	case c.GET_GLOBAL:
		k := vm.fetch8(fr)
		name := vm.constant(fr, k).(string)
		v, ok := vm.Globals.Get(String(name))
		if !ok {
			v = Nil
		}
		return vm.push(v)
	case c.SET_GLOBAL:
		k := vm.fetch8(fr)
		name := vm.constant(fr, k).(string)
		vm.Globals.Set(String(name), vm.pop())
		return nil

	case c.GET_LOCAL:
		i := vm.fetch8(fr)
		return vm.push(vm.stack[fr.base+int(i)])
	case c.SET_LOCAL:
		i := vm.fetch8(fr)
		vm.stack[fr.base+int(i)] = vm.pop()
		return nil
	case c.GET_UPVALUE:
		i := vm.fetch8(fr)
		return vm.push(fr.closure.Upvalues[i].Get())
	case c.SET_UPVALUE:
		i := vm.fetch8(fr)
		fr.closure.Upvalues[i].Set(vm.pop())
		return nil

	case c.ADD, c.SUB, c.MULTIPLY, c.DIVIDE, c.CONCAT,
		c.EQUAL, c.NOT_EQUAL, c.LESS, c.LESS_EQUAL, c.GREATER, c.GREATER_EQUAL:
		y := vm.pop()
		x := vm.pop()
		return vm.binaryOp(pos, op, x, y)

	case c.NEGATE:
		x := vm.pop()
		v, err := vm.negate(pos, x)
		if err != nil {
			return err
		}
		return vm.push(v)
	case c.NOT:
		x := vm.pop()
		return vm.push(Bool(!Truthy(x)))
	case c.LENGTH:
		x := vm.pop()
		v, err := vm.length(pos, x)
		if err != nil {
			return err
		}
		return vm.push(v)

	case c.GOTO_IF_FALSE:
		off := vm.fetch16(fr)
		if !Truthy(vm.peek(0)) {
			fr.pc += int(off)
		}
		return nil
	case c.GOTO_IF_TRUE:
		off := vm.fetch16(fr)
		if Truthy(vm.peek(0)) {
			fr.pc += int(off)
		}
		return nil
	case c.POP_AND_GOTO_IF_FALSE:
		off := vm.fetch16(fr)
		cond := vm.pop()
		if !Truthy(cond) {
			fr.pc += int(off)
		}
		return nil
	case c.FORWARD:
		off := vm.fetch16(fr)
		fr.pc += int(off)
		return nil
	case c.REWIND:
		off := vm.fetch16(fr)
		fr.pc -= int(off)
		return nil
	case c.FOR_NUMERIC:
		off := vm.fetch16(fr)
		return vm.forNumeric(fr, pos, off)
	case c.INCREMENT:
		i := int(vm.fetch8(fr))
		return vm.increment(fr, pos, i)

	case c.CLOSURE:
		k := vm.fetch8(fr)
		return vm.makeClosure(fr, k)
	case c.REGISTER_UPVALUE:
		// Only ever reached if control flow falls through a CLOSURE's pseudo-ops
		// (it should not: makeClosure consumes them directly), which means the
		// chunk is malformed.
		return newRuntimeError(ErrInternal, pos, "stray register_upvalue instruction")

	case c.CALL:
		argc := int(vm.fetch8(fr))
		return vm.call(argc, pos)
	case c.RETURN:
		return vm.doReturn()

	case c.NEW_TABLE:
		return vm.push(NewTable(0))
	case c.TABLE_INSERT:
		offset := int(vm.fetch8(fr))
		value := vm.pop()
		key := vm.pop()
		tbl, ok := vm.peekN(offset).(*Table)
		if !ok {
			return newRuntimeError(ErrType, pos, "attempt to index a %s value", vm.peekN(offset).Type())
		}
		tbl.Set(key, value)
		return nil
	case c.TABLE_BUILD:
		n := int(vm.fetch8(fr))
		values := append([]Value(nil), vm.stack[vm.sp-n:vm.sp]...)
		vm.sp -= n
		tbl, ok := vm.peek(0).(*Table)
		if !ok {
			return newRuntimeError(ErrType, pos, "attempt to index a %s value", vm.peek(0).Type())
		}
		for _, v := range values {
			tbl.Insert(v)
		}
		return nil
	case c.TABLE_SET:
		vm.fetch8(fr) // depth, always 1 in this implementation; see DESIGN.md
		value := vm.pop()
		key := vm.pop()
		container := vm.pop()
		return vm.tableSet(pos, container, key, value)
	case c.TABLE_GET:
		vm.fetch8(fr) // depth, always 1; see DESIGN.md
		key := vm.pop()
		container := vm.pop()
		v, err := vm.tableGet(pos, container, key)
		if err != nil {
			return err
		}
		return vm.push(v)
	case c.TABLE_GET_BY_CONSTANT:
		k := vm.fetch8(fr)
		name := vm.constant(fr, k).(string)
		container := vm.pop()
		v, err := vm.tableGet(pos, container, String(name))
		if err != nil {
			return err
		}
		return vm.push(v)

	case c.PRINT:
		v := vm.pop()
		fmt.Fprintln(vm.Stdout, vm.ToString(v))
		return nil

	default:
		return newRuntimeError(ErrInternal, pos, "unimplemented opcode %s", op)
	}
}

// peekN returns the stack value offset slots below the frame's own
// remaining construction values (used for TABLE_INSERT's depth operand:
// the table sits offset items below the key/value pair that was just
// popped).
func (vm *VM) peekN(offset int) Value { return vm.stack[vm.sp-1-offset] }

func (vm *VM) binaryOp(pos position, op c.Opcode, x, y Value) error {
	var result Value
	var err error
	switch op {
	case c.ADD:
		result, err = vm.add(pos, x, y)
	case c.SUB:
		result, err = vm.sub(pos, x, y)
	case c.MULTIPLY:
		result, err = vm.mul(pos, x, y)
	case c.DIVIDE:
		result, err = vm.div(pos, x, y)
	case c.CONCAT:
		result, err = vm.concat(pos, x, y)
	case c.EQUAL:
		var b bool
		b, err = vm.equals(pos, x, y)
		result = Bool(b)
	case c.NOT_EQUAL:
		var b bool
		b, err = vm.equals(pos, x, y)
		result = Bool(!b)
	case c.LESS:
		var b bool
		b, err = vm.less(pos, x, y)
		result = Bool(b)
	case c.LESS_EQUAL:
		var b bool
		b, err = vm.lessEqual(pos, x, y)
		result = Bool(b)
	case c.GREATER:
		var b bool
		b, err = vm.less(pos, y, x)
		result = Bool(b)
	case c.GREATER_EQUAL:
		var b bool
		b, err = vm.lessEqual(pos, y, x)
		result = Bool(b)
	}
	if err != nil {
		return err
	}
	return vm.push(result)
}

// doReturn pops the current frame, closing any upvalues captured from its
// locals, and leaves its return value on the stack for the caller, per
// spec.md §4.4.3.
func (vm *VM) doReturn() error {
	fr := vm.currentFrame()
	result := vm.pop()
	vm.closeUpvaluesFrom(fr.base)
	vm.sp = fr.base
	vm.frames = vm.frames[:len(vm.frames)-1]
	return vm.push(result)
}

// makeClosure consumes the CLOSURE instruction's constant operand (a
// *compiler.FunctionObject) plus one REGISTER_UPVALUE pseudo-op per
// upvalue the function captures, resolving each against either the
// enclosing frame's locals (Neighboring) or the enclosing closure's own
// upvalues, per spec.md §4.3.6/§4.3.4.
func (vm *VM) makeClosure(fr *callFrame, k uint8) error {
	proto, ok := vm.constant(fr, k).(*c.FunctionObject)
	if !ok {
		return newRuntimeError(ErrInternal, fr.position(), "closure constant is not a function prototype")
	}
	closure := &Closure{Proto: proto, Upvalues: make([]*Upvalue, proto.NumUpvalues())}
	for i := range closure.Upvalues {
		op := c.Opcode(vm.fetch8(fr))
		if op != c.REGISTER_UPVALUE {
			return newRuntimeError(ErrInternal, fr.position(), "expected register_upvalue pseudo-op")
		}
		index := vm.fetch8(fr)
		neighboring := vm.fetch8(fr) != 0
		if neighboring {
			closure.Upvalues[i] = vm.captureUpvalue(fr.base + int(index))
		} else {
			closure.Upvalues[i] = fr.closure.Upvalues[index]
		}
	}
	return vm.push(closure)
}

// tableGet implements indexed read access (`.`/`[...]`). Tables consult
// their own entries then their __index chain; UserData dispatches through
// its VM-registered type (spec.md §4.6), not a metatable; String consults
// the VM-wide shared string metatable (spec.md's recovered string-method
// library; see DESIGN.md); anything else is a type error unless it has an
// __index metamethod of its own.
func (vm *VM) tableGet(pos position, container, key Value) (Value, error) {
	switch c := container.(type) {
	case *Table:
		if v, found := c.Get(key); found {
			return v, nil
		}
		if c.meta != nil {
			if mm, found := c.meta.Get(String(metaIndex)); found {
				switch h := mm.(type) {
				case *Table:
					return vm.tableGet(pos, h, key)
				default:
					return vm.callValue(pos, mm, []Value{container, key})
				}
			}
		}
		return Nil, nil
	case *UserData:
		return vm.userDataGet(pos, c, key)
	case String:
		if vm.StringMeta != nil {
			if mm, found := vm.StringMeta.Get(String(metaIndex)); found {
				switch h := mm.(type) {
				case *Table:
					if v, found := h.Get(key); found {
						return v, nil
					}
					return Nil, nil
				default:
					return vm.callValue(pos, mm, []Value{container, key})
				}
			}
		}
		return nil, newRuntimeError(ErrType, pos, "attempt to index a %s value", container.Type())
	default:
		if mm, found := vm.lookupMeta(container, metaIndex); found {
			return vm.callValue(pos, mm, []Value{container, key})
		}
		return nil, newRuntimeError(ErrType, pos, "attempt to index a %s value", container.Type())
	}
}

// tableSet implements indexed write access, mirroring tableGet's dispatch:
// tables via __newindex, UserData via its registered field setters, and
// everything else either an __newindex metamethod or a type error. String
// has no write path (the shared string metatable only backs __index).
func (vm *VM) tableSet(pos position, container, key, value Value) error {
	switch c := container.(type) {
	case *Table:
		if _, found := c.Get(key); !found && c.meta != nil {
			if mm, found := c.meta.Get(String(metaNewIndex)); found {
				switch h := mm.(type) {
				case *Table:
					return vm.tableSet(pos, h, key, value)
				default:
					_, err := vm.callValue(pos, mm, []Value{container, key, value})
					return err
				}
			}
		}
		c.Set(key, value)
		return nil
	case *UserData:
		return vm.userDataSet(pos, c, key, value)
	default:
		if mm, found := vm.lookupMeta(container, metaNewIndex); found {
			_, err := vm.callValue(pos, mm, []Value{container, key, value})
			return err
		}
		return newRuntimeError(ErrType, pos, "attempt to index a %s value", container.Type())
	}
}

// ToString renders v as a string for the PRINT opcode and for the
// `tostring` built-in, consulting __tostring first.
func (vm *VM) ToString(v Value) string {
	if mm, ok := vm.lookupMeta(v, metaToString); ok {
		if r, err := vm.callValue(0, mm, []Value{v}); err == nil {
			return r.String()
		}
	}
	return v.String()
}

// forNumeric implements the numeric for-loop's per-iteration test, per
// spec.md §4.3.3/§8 scenario S5: it reads the loop variable, limit and step
// from the three topmost active locals and jumps past the loop body (by
// off) once the bound is exceeded, honoring the step's sign.
func (vm *VM) forNumeric(fr *callFrame, pos position, off uint16) error {
	top := fr.base + vm.localTop(fr)
	i := vm.stack[top-3]
	limit := vm.stack[top-2]
	step := vm.stack[top-1]

	done, err := vm.forLoopDone(pos, i, limit, step)
	if err != nil {
		return err
	}
	if done {
		fr.pc += int(off)
	}
	return nil
}

// localTop returns the number of stack slots currently occupied by fr's
// locals (everything from fr.base up to the current stack top).
func (vm *VM) localTop(fr *callFrame) int { return vm.sp - fr.base }

func (vm *VM) forLoopDone(pos position, i, limit, step Value) (bool, error) {
	asFloat := func(v Value) (float64, bool) {
		switch v := v.(type) {
		case Integer:
			return float64(v), true
		case Number:
			return float64(v), true
		}
		return 0, false
	}
	fi, ok1 := asFloat(i)
	fl, ok2 := asFloat(limit)
	fs, ok3 := asFloat(step)
	if !ok1 || !ok2 || !ok3 {
		return false, newRuntimeError(ErrType, pos, "numeric for loop requires integer/number operands")
	}
	if fs >= 0 {
		return fi > fl, nil
	}
	return fi < fl, nil
}

// increment adds the step value (the local two slots after i, past the
// limit) to the local at slot, in place, per spec.md's INCREMENT opcode.
func (vm *VM) increment(fr *callFrame, pos position, slot int) error {
	i := vm.stack[fr.base+slot]
	step := vm.stack[fr.base+slot+2]
	switch a := i.(type) {
	case Integer:
		if b, ok := step.(Integer); ok {
			vm.stack[fr.base+slot] = a + b
			return nil
		}
		fb, _ := step.(Number)
		vm.stack[fr.base+slot] = Number(float64(a) + float64(fb))
		return nil
	case Number:
		var fb float64
		switch s := step.(type) {
		case Integer:
			fb = float64(s)
		case Number:
			fb = float64(s)
		}
		vm.stack[fr.base+slot] = Number(float64(a) + fb)
		return nil
	}
	return newRuntimeError(ErrType, pos, "numeric for loop variable is not numeric")
}
