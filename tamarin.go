// Package tamarin is the embedding surface for the compiler and virtual
// machine in lang/compiler and lang/machine, exposing the three
// operations spec.md §6 names: Compile, Execute, and RegisterNative.
//
// A host embeds the language by creating a Machine, registering whatever
// native functions it needs, compiling source into a Program, and
// executing that Program. Values crossing the boundary are converted to
// the "external" tagged union described below rather than leaking the
// internal machine.Value types.
package tamarin

import (
	"io"

	"github.com/mna/tamarin/lang/compiler"
	"github.com/mna/tamarin/lang/machine"
	"github.com/mna/tamarin/lang/stdlib"
)

// Program is a compiled, executable unit: the top-level function object
// produced by Compile, per spec.md §6's "compile(source) -> function
// object or error list".
type Program struct {
	fn *compiler.FunctionObject
}

// Compile compiles source into a Program. name is used in diagnostics and
// as the program's display name. If the returned error is non-nil it is a
// scanner.ErrorList (see lang/compiler.Compile) holding every error the
// compiler collected, not just the first.
func Compile(name string, src []byte) (*Program, error) {
	fn, err := compiler.Compile(name, src)
	if err != nil {
		return nil, err
	}
	return &Program{fn: fn}, nil
}

// Disassemble returns a textual listing of p's bytecode, for debugging
// and tests.
func (p *Program) Disassemble() string {
	return compiler.Disassemble(p.fn)
}

// NativeFunc is the callback signature for host functions registered with
// Machine.RegisterNative, per spec.md §6: the VM, plus the sequence of
// argument values, producing a value or a runtime error.
type NativeFunc func(m *Machine, args []Value) (Value, error)

// Machine is one instance of the virtual machine plus its globals table;
// embedders create one per independent script environment, per spec.md
// §5's "instance-scoped per VM" globals model.
type Machine struct {
	vm *machine.VM
}

// New creates a Machine with an empty globals table and the stdlib
// built-ins (print, clock, setmetatable, getmetatable, type, tostring,
// tonumber, pairs, ipairs, next) pre-registered, matching what spec.md
// §6 says tests assume are present. Use NewBare to start from nothing.
func New() *Machine {
	m := NewBare()
	stdlib.Register(m.vm)
	return m
}

// NewBare creates a Machine with no built-ins registered at all.
func NewBare() *Machine {
	return &Machine{vm: machine.New()}
}

// SetStdout redirects where the `print` built-in and the legacy PRINT
// opcode write output, per spec.md §6 (defaults to os.Stdout).
func (m *Machine) SetStdout(w io.Writer) { m.vm.Stdout = w }

// RegisterNative installs fn in the globals table under name, per
// spec.md §6's register_native(name, callback) operation.
func (m *Machine) RegisterNative(name string, fn NativeFunc) {
	m.vm.Register(name, func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		extArgs := make([]Value, len(args))
		for i, a := range args {
			extArgs[i] = toExternal(a)
		}
		result, err := fn(m, extArgs)
		if err != nil {
			return nil, err
		}
		return fromExternal(result), nil
	})
}

// Execute runs p to completion and returns its result, per spec.md §6's
// execute(function_object) -> value or error. Runtime errors (of type
// *machine.RuntimeError) abort execution immediately.
func (m *Machine) Execute(p *Program) (Value, error) {
	v, err := m.vm.Run(p.fn)
	if err != nil {
		return nil, err
	}
	return toExternal(v), nil
}

// Global reads a value directly out of the machine's globals table,
// without executing any script.
func (m *Machine) Global(name string) Value {
	v, ok := m.vm.Globals.Get(machine.String(name))
	if !ok {
		return nil
	}
	return toExternal(v)
}

// UserDataMethodFunc is a method, metamethod or field accessor callback for
// a host type registered with RegisterUserDataType, per spec.md §4.6.
// payload is the Go value originally passed to WrapUserData.
type UserDataMethodFunc func(m *Machine, payload any, args []Value) (Value, error)

// UserDataType describes one host type's script-visible surface: its
// methods, metamethods, and readable/writable fields, keyed by name. Create
// one with NewUserDataType, then use AddMethod/AddMetaMethod/AddField to
// populate it before passing it to RegisterUserDataType; a zero value has
// nil maps, so its Add methods panic.
type UserDataType struct {
	Methods     map[string]UserDataMethodFunc
	MetaMethods map[string]UserDataMethodFunc
	Getters     map[string]func(m *Machine, payload any) (Value, error)
	Setters     map[string]func(m *Machine, payload any, val Value) error
}

// NewUserDataType creates an empty UserDataType ready for registration.
func NewUserDataType() *UserDataType {
	return &UserDataType{
		Methods:     make(map[string]UserDataMethodFunc),
		MetaMethods: make(map[string]UserDataMethodFunc),
		Getters:     make(map[string]func(m *Machine, payload any) (Value, error)),
		Setters:     make(map[string]func(m *Machine, payload any, val Value) error),
	}
}

// AddMethod registers a plain method, callable from a script as
// `obj.name(obj, ...)` (this language has no `:` method sugar).
func (ut *UserDataType) AddMethod(name string, fn UserDataMethodFunc) { ut.Methods[name] = fn }

// AddMetaMethod registers a metamethod (e.g. "__tostring", "__add"),
// consulted by the same operator dispatch as table metatables use.
func (ut *UserDataType) AddMetaMethod(name string, fn UserDataMethodFunc) {
	ut.MetaMethods[name] = fn
}

// AddField registers a getter and, optionally, a setter for a field name.
// Pass a nil setter for a read-only field.
func (ut *UserDataType) AddField(name string, get func(m *Machine, payload any) (Value, error), set func(m *Machine, payload any, val Value) error) {
	ut.Getters[name] = get
	if set != nil {
		ut.Setters[name] = set
	}
}

// RegisterUserDataType installs ut as the method/field registry for
// typeName, per spec.md §4.6: "host types register a method table keyed by
// the type name once, at first allocation." Any UserData value later
// wrapped with this typeName (via WrapUserData) dispatches method calls and
// field access/assignment through ut.
func (m *Machine) RegisterUserDataType(typeName string, ut *UserDataType) {
	mut := machine.NewUserDataType()
	for name, fn := range ut.Methods {
		fn := fn
		mut.AddMethod(name, func(vm *machine.VM, ud *machine.UserData, args []machine.Value) (machine.Value, error) {
			return m.callUserDataFunc(fn, ud, args)
		})
	}
	for name, fn := range ut.MetaMethods {
		fn := fn
		mut.AddMetaMethod(name, func(vm *machine.VM, ud *machine.UserData, args []machine.Value) (machine.Value, error) {
			return m.callUserDataFunc(fn, ud, args)
		})
	}
	for name, get := range ut.Getters {
		get := get
		var set func(*machine.VM, *machine.UserData, machine.Value) error
		if s, ok := ut.Setters[name]; ok {
			s := s
			set = func(vm *machine.VM, ud *machine.UserData, val machine.Value) error {
				return s(m, ud.Payload, toExternal(val))
			}
		}
		mut.AddField(name, func(vm *machine.VM, ud *machine.UserData) (machine.Value, error) {
			v, err := get(m, ud.Payload)
			if err != nil {
				return nil, err
			}
			return fromExternal(v), nil
		}, set)
	}
	m.vm.RegisterUserDataType(typeName, mut)
}

func (m *Machine) callUserDataFunc(fn UserDataMethodFunc, ud *machine.UserData, args []machine.Value) (machine.Value, error) {
	extArgs := make([]Value, len(args))
	for i, a := range args {
		extArgs[i] = toExternal(a)
	}
	result, err := fn(m, ud.Payload, extArgs)
	if err != nil {
		return nil, err
	}
	return fromExternal(result), nil
}
