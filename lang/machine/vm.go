package machine

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slices"

	"github.com/mna/tamarin/lang/compiler"
)

// StackSize is the fixed capacity of the value stack, per spec.md §3/§4.4.
const StackSize = 256

// MaxCallDepth bounds the call-frame stack, guarding against runaway
// recursion in the absence of any other resource limit.
const MaxCallDepth = 220

// VM is one instance of the register-less, stack-based bytecode machine
// described in spec.md §4.4: it owns the value stack, the call-frame
// stack, the sorted open-upvalue list and the globals table. It is not
// safe for concurrent use, mirroring the teacher's single-threaded Thread.
type VM struct {
	stack [StackSize]Value
	sp    int

	frames []callFrame

	// openUpvalues is sorted by descending slot index; spec.md §3 guarantees
	// at most one open upvalue per stack slot.
	openUpvalues []*Upvalue

	Globals *Table
	Stdout  io.Writer

	// StringMeta is the single metatable shared by every String value, per
	// spec.md §4.6's treatment of string method dispatch as ordinary
	// __index resolution (nil until a host installs one, e.g. lang/stdlib's
	// string method table).
	StringMeta *Table

	// userDataTypes holds the per-type-name method/field registry described
	// in spec.md §4.6: host types register once, by name, and every
	// UserData instance carrying that TypeName dispatches through it.
	userDataTypes map[string]*UserDataType
}

// New creates a VM with an empty globals table.
func New() *VM {
	return &VM{Globals: NewTable(16), Stdout: os.Stdout}
}

// Register installs a native function under name in the globals table, per
// spec.md §4.6.
func (vm *VM) Register(name string, fn NativeFunc) {
	vm.Globals.Set(String(name), &NativeFunction{FuncName: name, Fn: fn})
}

// RegisterUserDataType installs (or replaces) the method/field registry for
// typeName, per spec.md §4.6: "host types register a method table keyed by
// the type name once, at first allocation." Any UserData value later
// constructed with this typeName dispatches method calls and field
// access/assignment through ut.
func (vm *VM) RegisterUserDataType(typeName string, ut *UserDataType) {
	if vm.userDataTypes == nil {
		vm.userDataTypes = make(map[string]*UserDataType)
	}
	vm.userDataTypes[typeName] = ut
}

func (vm *VM) userDataType(typeName string) (*UserDataType, bool) {
	ut, ok := vm.userDataTypes[typeName]
	return ut, ok
}

// Run executes the top-level script function fn to completion and returns
// its result.
func (vm *VM) Run(fn *compiler.FunctionObject) (Value, error) {
	if !fn.Chunk.Valid {
		return nil, newRuntimeError(ErrInternal, 0, "cannot execute a chunk that failed to compile")
	}
	top := &Closure{Proto: fn}
	if err := vm.push(top); err != nil {
		return nil, err
	}
	if err := vm.call(0, 0); err != nil {
		return nil, err
	}
	return vm.run()
}

func (vm *VM) push(v Value) error {
	if vm.sp >= StackSize {
		return newRuntimeError(ErrInternal, 0, "stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(offset int) Value { return vm.stack[vm.sp-1-offset] }

func (vm *VM) currentFrame() *callFrame { return &vm.frames[len(vm.frames)-1] }

// call prepares a call to the callable sitting argc+1 slots below the
// current stack top (i.e. at vm.sp-argc-1), with argc arguments above it,
// per spec.md §4.4.2's callee-then-args stack layout. pos is used for
// diagnostics if the callee turns out not to be callable.
func (vm *VM) call(argc int, pos position) error {
	base := vm.sp - argc - 1
	callee := vm.stack[base]

	switch c := callee.(type) {
	case *Closure:
		arity := c.Proto.Arity
		for vm.sp-base-1 < arity {
			if err := vm.push(Nil); err != nil {
				return err
			}
		}
		for vm.sp-base-1 > arity {
			vm.sp--
		}
		if len(vm.frames) >= MaxCallDepth {
			return newRuntimeError(ErrInternal, pos, "stack overflow: call depth exceeded")
		}
		vm.frames = append(vm.frames, callFrame{closure: c, base: base, pc: 0})
		return nil

	case *NativeFunction:
		args := append([]Value(nil), vm.stack[base+1:vm.sp]...)
		result, err := c.Fn(vm, args)
		if err != nil {
			return err
		}
		vm.sp = base
		return vm.push(result)

	default:
		if mm, ok := vm.lookupMeta(callee, metaCall); ok {
			args := append([]Value{callee}, vm.stack[base+1:vm.sp]...)
			vm.sp = base
			result, err := vm.callValue(pos, mm, args)
			if err != nil {
				return err
			}
			return vm.push(result)
		}
		return newRuntimeError(ErrType, pos, "attempt to call a %s value", callee.Type())
	}
}

// callValue invokes callee with args and runs it to completion, used by
// metamethod dispatch (binary.go) which needs a synchronous Go-level call
// rather than letting the main loop pick it up. It pushes a fresh
// sub-invocation onto the same frame stack and drains the fetch-decode loop
// until that specific call returns.
func (vm *VM) callValue(pos position, callee Value, args []Value) (Value, error) {
	depthBefore := len(vm.frames)
	if err := vm.push(callee); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return nil, err
		}
	}
	if err := vm.call(len(args), pos); err != nil {
		return nil, err
	}
	if len(vm.frames) == depthBefore {
		// It was a native function or a __call metamethod resolved entirely
		// within call(); the result is already the sole new stack value.
		return vm.pop(), nil
	}
	return vm.runUntil(depthBefore)
}

// closeUpvaluesFrom closes every open upvalue referencing a stack slot >=
// from, per spec.md §4.4.3.
func (vm *VM) closeUpvaluesFrom(from int) {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].slot >= from {
		vm.openUpvalues[i].Close()
		i++
	}
	vm.openUpvalues = vm.openUpvalues[i:]
}

// captureUpvalue returns the open upvalue for stack slot, creating one (and
// inserting it in descending-slot order, per spec.md §4.4.3's invariant
// that the open-upvalue list is sorted by descending stack address) if
// none exists yet.
func (vm *VM) captureUpvalue(slot int) *Upvalue {
	i, found := slices.BinarySearchFunc(vm.openUpvalues, slot, func(uv *Upvalue, slot int) int {
		return slot - uv.slot // descending order: uv.slot decreases as i increases
	})
	if found {
		return vm.openUpvalues[i]
	}
	uv := newOpenUpvalue(&vm.stack, slot)
	vm.openUpvalues = slices.Insert(vm.openUpvalues, i, uv)
	return uv
}

// run drives the fetch-decode-execute loop until the frame stack empties,
// then returns the final result.
func (vm *VM) run() (Value, error) {
	return vm.runUntil(0)
}

// runUntil executes until the frame stack depth returns to stopDepth,
// returning the value left on the stack at that point.
func (vm *VM) runUntil(stopDepth int) (Value, error) {
	for len(vm.frames) > stopDepth {
		fr := vm.currentFrame()
		code := fr.chunk().Code
		op := compiler.Opcode(code[fr.pc])
		fr.pc++

		if err := vm.step(fr, op); err != nil {
			return nil, err
		}
	}
	return vm.pop(), nil
}

func (vm *VM) fetch8(fr *callFrame) uint8 {
	b := fr.chunk().Code[fr.pc]
	fr.pc++
	return b
}

func (vm *VM) fetch16(fr *callFrame) uint16 {
	hi := fr.chunk().Code[fr.pc]
	lo := fr.chunk().Code[fr.pc+1]
	fr.pc += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) constant(fr *callFrame, k uint8) any { return fr.chunk().Constants[k] }

// constantValue converts a primitive constant-pool entry (int64, float64 or
// string) into a runtime Value, per the teacher's makeToplevelFunction
// constant-conversion pattern (lang/machine/thread.go). Function prototypes
// are not handled here (makeClosure turns them into closures); any other
// constant type panics.
func (vm *VM) constantValue(fr *callFrame, k uint8) Value {
	switch c := vm.constant(fr, k).(type) {
	case int64:
		return Integer(c)
	case float64:
		return Number(c)
	case string:
		return String(c)
	}
	panic(fmt.Sprintf("unexpected constant type %T", vm.constant(fr, k)))
}
