package machine

import (
	"fmt"

	"github.com/mna/tamarin/lang/compiler"
)

// Closure is a compiled function paired with its captured upvalues, per
// spec.md §3/§4.4.3. The teacher's equivalent (lang/machine/function.go)
// pairs a Funcode with a Freevars tuple; here each upvalue is its own Cell
// so a closure's captures can be independently open or closed.
type Closure struct {
	Proto     *compiler.FunctionObject
	Upvalues  []*Upvalue
}

var (
	_ Value    = (*Closure)(nil)
	_ Callable = (*Closure)(nil)
)

func (c *Closure) String() string { return fmt.Sprintf("function: %p", c) }
func (c *Closure) Type() string   { return "function" }
func (c *Closure) Name() string {
	if c.Proto.Name != "" {
		return c.Proto.Name
	}
	return "?"
}

// Upvalue is a captured variable cell. While Open, it aliases a live stack
// slot; once Closed (by CLOSE_UPVALUES, when the owning scope exits) it
// holds its own copy of the value. This one-way Open->Closed transition is
// the upvalue lifecycle described in spec.md §3.
type Upvalue struct {
	stack    *[StackSize]Value
	slot     int // valid only while open
	closed   Value
	isOpen   bool
}

func newOpenUpvalue(stack *[StackSize]Value, slot int) *Upvalue {
	return &Upvalue{stack: stack, slot: slot, isOpen: true}
}

// Get returns the upvalue's current value.
func (uv *Upvalue) Get() Value {
	if uv.isOpen {
		return uv.stack[uv.slot]
	}
	return uv.closed
}

// Set stores v into the upvalue's current location.
func (uv *Upvalue) Set(v Value) {
	if uv.isOpen {
		uv.stack[uv.slot] = v
		return
	}
	uv.closed = v
}

// Close severs the upvalue from the stack, copying out its current value.
func (uv *Upvalue) Close() {
	if !uv.isOpen {
		return
	}
	uv.closed = uv.stack[uv.slot]
	uv.isOpen = false
	uv.stack = nil
}

// NativeFunc is a Go function exposed to scripts, per spec.md §4.6.
type NativeFunc func(vm *VM, args []Value) (Value, error)

// NativeFunction wraps a registered Go function so it can be called like
// any other Callable.
type NativeFunction struct {
	FuncName string
	Fn       NativeFunc
}

var (
	_ Value    = (*NativeFunction)(nil)
	_ Callable = (*NativeFunction)(nil)
)

func (n *NativeFunction) String() string { return fmt.Sprintf("builtin: %s", n.FuncName) }
func (n *NativeFunction) Type() string   { return "function" }
func (n *NativeFunction) Name() string   { return n.FuncName }

// UserData wraps an arbitrary host value so it can be passed through the
// machine and exposed to scripts, per spec.md §4.6. Unlike Table, it has no
// per-instance metatable: method/field/metamethod dispatch goes through the
// VM's UserDataType registry, keyed by TypeName, per spec.md §4.6's "host
// types register a method table keyed by the type name once."
type UserData struct {
	Payload  any
	TypeName string
}

var _ Value = (*UserData)(nil)

// NewUserData wraps payload as a UserData instance of typeName. typeName
// must match a type previously passed to VM.RegisterUserDataType for
// method/field access to succeed; an unregistered type name is not an
// error by itself (the value can still be passed around, compared and
// printed), only dispatch against it fails.
func NewUserData(typeName string, payload any) *UserData {
	return &UserData{Payload: payload, TypeName: typeName}
}

func (u *UserData) String() string { return fmt.Sprintf("userdata<%s>: %p", u.TypeName, u) }
func (u *UserData) Type() string   { return "userdata" }
