package machine

// UserDataMethodFn is a method or metamethod callable on a UserData
// instance. args never includes the instance itself (the registry binds
// that implicitly), mirroring original_source/src/userdata.rs's
// UserDataMethods callbacks, which receive `(vm, &mut object, arg)`
// without the caller re-supplying the receiver.
type UserDataMethodFn func(vm *VM, ud *UserData, args []Value) (Value, error)

// UserDataGetterFn reads one field of a UserData instance.
type UserDataGetterFn func(vm *VM, ud *UserData) (Value, error)

// UserDataSetterFn writes one field of a UserData instance.
type UserDataSetterFn func(vm *VM, ud *UserData, val Value) error

// UserDataType is the per-type-name method/field/metamethod registry
// described in spec.md §4.6 ("host types register a method table keyed by
// the type name once, at first allocation"), grounded on
// original_source/src/userdata.rs's UserDataMethods/UserDataFields traits
// and UserDataRegistry. Every UserData instance carrying a given TypeName
// dispatches through the single UserDataType registered for that name
// rather than through a per-instance metatable.
type UserDataType struct {
	Methods     map[string]UserDataMethodFn
	MetaMethods map[string]UserDataMethodFn
	Getters     map[string]UserDataGetterFn
	Setters     map[string]UserDataSetterFn
}

// NewUserDataType creates an empty registry ready for AddMethod/AddField
// calls.
func NewUserDataType() *UserDataType {
	return &UserDataType{
		Methods:     make(map[string]UserDataMethodFn),
		MetaMethods: make(map[string]UserDataMethodFn),
		Getters:     make(map[string]UserDataGetterFn),
		Setters:     make(map[string]UserDataSetterFn),
	}
}

// AddMethod registers a plain method, callable as `obj.name(args...)`.
func (ut *UserDataType) AddMethod(name string, fn UserDataMethodFn) { ut.Methods[name] = fn }

// AddMetaMethod registers a metamethod (e.g. "__tostring", "__add"),
// consulted by the same operator dispatch as table metatables use.
func (ut *UserDataType) AddMetaMethod(name string, fn UserDataMethodFn) { ut.MetaMethods[name] = fn }

// AddField registers a getter and, optionally, a setter for a field name.
// Pass a nil setter for a read-only field.
func (ut *UserDataType) AddField(name string, get UserDataGetterFn, set UserDataSetterFn) {
	ut.Getters[name] = get
	if set != nil {
		ut.Setters[name] = set
	}
}

// bindUserDataMethod adapts a UserDataMethodFn, plus the instance it is
// bound to, into a NativeFunc. Callers invoke it the same way as any other
// callable value (vm.callValue passes the receiver as args[0], matching
// the convention binary.go already uses for table metamethods), so the
// receiver is stripped before reaching fn.
func bindUserDataMethod(fn UserDataMethodFn, ud *UserData) NativeFunc {
	return func(vm *VM, args []Value) (Value, error) {
		if len(args) > 0 {
			args = args[1:]
		}
		return fn(vm, ud, args)
	}
}

// userDataGet implements field/method read access on a UserData value, per
// spec.md §4.6: "Dispatch ... consults the registry by type name, then by
// method-or-field name." Fields are checked before methods, matching
// vm_integration::get_field's separate, field-first lookup path in the
// original. Failure modes are the three spec.md §4.6 names: type mismatch
// (non-string key), no such field, no such method.
func (vm *VM) userDataGet(pos position, ud *UserData, key Value) (Value, error) {
	name, ok := key.(String)
	if !ok {
		return nil, newRuntimeError(ErrUserData, pos, "type mismatch: user-data field name must be a string, got %s", key.Type())
	}
	ut, ok := vm.userDataType(ud.TypeName)
	if !ok {
		return nil, newRuntimeError(ErrUserData, pos, "user-data type %q is not registered", ud.TypeName)
	}
	if getter, ok := ut.Getters[string(name)]; ok {
		return getter(vm, ud)
	}
	if fn, ok := ut.Methods[string(name)]; ok {
		return &NativeFunction{FuncName: string(name), Fn: bindUserDataMethod(fn, ud)}, nil
	}
	return nil, newRuntimeError(ErrUserData, pos, "no such field or method %q on user-data type %q", name, ud.TypeName)
}

// userDataSet implements field write access, per spec.md §4.6.
func (vm *VM) userDataSet(pos position, ud *UserData, key, value Value) error {
	name, ok := key.(String)
	if !ok {
		return newRuntimeError(ErrUserData, pos, "type mismatch: user-data field name must be a string, got %s", key.Type())
	}
	ut, ok := vm.userDataType(ud.TypeName)
	if !ok {
		return newRuntimeError(ErrUserData, pos, "user-data type %q is not registered", ud.TypeName)
	}
	setter, ok := ut.Setters[string(name)]
	if !ok {
		return newRuntimeError(ErrUserData, pos, "no such field %q on user-data type %q", name, ud.TypeName)
	}
	return setter(vm, ud, value)
}
