package machine_test

import (
	"testing"

	"github.com/mna/tamarin/lang/compiler"
	"github.com/mna/tamarin/lang/machine"
	"github.com/mna/tamarin/lang/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run compiles and executes src, failing the test immediately on any
// compile or runtime error.
func run(t *testing.T, src string) machine.Value {
	t.Helper()
	fn, err := compiler.Compile(t.Name(), []byte(src))
	require.NoError(t, err)
	vm := machine.New()
	stdlib.Register(vm)
	v, err := vm.Run(fn)
	require.NoError(t, err)
	return v
}

// TestScenarios exercises the six end-to-end scenarios named in spec.md §8.
func TestScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want machine.Value
	}{
		{
			"S1 fibonacci",
			`
			function fib(n)
			  if n <= 1 then return n else return fib(n-1) + fib(n-2) end
			end
			return fib(10)
			`,
			machine.Integer(55),
		},
		{
			"S2 counter closure",
			`
			function mk()
			  local n = 0
			  return function() n = n + 1; return n end
			end
			local c = mk(); c(); c(); return c()
			`,
			machine.Integer(3),
		},
		{
			"S3 table and length",
			`
			local t = {10, 20, 30, foo = "bar"}
			return #t
			`,
			machine.Integer(4),
		},
		{
			"S4 metatable __add",
			`
			local a = setmetatable({v=1}, {__add = function(x,y) return x.v + y end})
			return a + 41
			`,
			machine.Integer(42),
		},
		{
			"S5 numeric for with step",
			`
			local s = 0
			for i = 1, 10, 2 do s = s + i end
			return s
			`,
			machine.Integer(25),
		},
		{
			"S6 goto forward jump",
			`
			local x = 1
			goto done
			x = 2
			::done::
			return x
			`,
			machine.Integer(1),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := run(t, c.src)
			assert.Equal(t, c.want, got)
		})
	}
}

// TestStackDiscipline exercises invariant 1 in spec.md §8 indirectly: an
// inner block declares a local that its scope exit must pop, and the outer
// locals must still read back correctly afterwards. The stack depth itself
// is not inspected.
func TestStackDiscipline(t *testing.T) {
	got := run(t, `
	local a = 1
	local b = 2
	do
	  local c = a + b
	end
	return a + b
	`)
	assert.Equal(t, machine.Integer(3), got)
}

// TestIntegerPromotion checks invariant 3: Integer + Integer stays
// Integer, but dividing promotes to Number.
func TestIntegerPromotion(t *testing.T) {
	assert.Equal(t, machine.Integer(7), run(t, `return 3 + 4`))
	assert.Equal(t, machine.Number(1.5), run(t, `return 3 / 2`))
}

// TestConcatIdentity checks invariant 5.
func TestConcatIdentity(t *testing.T) {
	assert.Equal(t, machine.String("abc"), run(t, `return "" .. "abc"`))
	assert.Equal(t, machine.String("abc"), run(t, `return "abc" .. ""`))
}

// TestTruthinessClosure checks invariant 6.
func TestTruthinessClosure(t *testing.T) {
	assert.Equal(t, machine.Bool(true), run(t, `return not not 1`))
	assert.Equal(t, machine.Bool(false), run(t, `return not not nil`))
	assert.Equal(t, machine.Bool(false), run(t, `return not not false`))
}

func TestRuntimeErrorNotCallable(t *testing.T) {
	fn, err := compiler.Compile(t.Name(), []byte(`local x = 1; return x()`))
	require.NoError(t, err)
	vm := machine.New()
	_, err = vm.Run(fn)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrType, rerr.Kind)
}

// TestStringOrderingIsTypeError checks spec.md §3: ordering is defined
// only for numeric pairs, so comparing two strings with `<` is a typed
// error rather than a lexicographic comparison.
func TestStringOrderingIsTypeError(t *testing.T) {
	fn, err := compiler.Compile(t.Name(), []byte(`return "a" < "b"`))
	require.NoError(t, err)
	vm := machine.New()
	_, err = vm.Run(fn)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrType, rerr.Kind)
}

// TestUserDataRegistryDispatch checks spec.md §4.6: a UserData instance
// dispatches method calls and field access through the VM-wide registry
// for its TypeName, and the three named failure modes (no such method, no
// such field, type mismatch) surface as ErrUserData.
func TestUserDataRegistryDispatch(t *testing.T) {
	type counter struct{ n int64 }

	ut := machine.NewUserDataType()
	ut.AddMethod("bump", func(vm *machine.VM, ud *machine.UserData, args []machine.Value) (machine.Value, error) {
		c := ud.Payload.(*counter)
		c.n++
		return machine.Integer(c.n), nil
	})
	ut.AddField("n",
		func(vm *machine.VM, ud *machine.UserData) (machine.Value, error) {
			return machine.Integer(ud.Payload.(*counter).n), nil
		},
		nil, // read-only
	)

	vm := machine.New()
	vm.RegisterUserDataType("counter", ut)
	c := &counter{}
	vm.Register("make_counter", func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return machine.NewUserData("counter", c), nil
	})

	fn, err := compiler.Compile(t.Name(), []byte(`
	local c = make_counter()
	c.bump(c)
	c.bump(c)
	return c.n
	`))
	require.NoError(t, err)
	v, err := vm.Run(fn)
	require.NoError(t, err)
	assert.Equal(t, machine.Integer(2), v)
	assert.Equal(t, int64(2), c.n)

	// No such method/field.
	fn, err = compiler.Compile(t.Name()+"_missing", []byte(`local c = make_counter(); return c.nope`))
	require.NoError(t, err)
	_, err = vm.Run(fn)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrUserData, rerr.Kind)

	// Read-only field: no setter registered.
	fn, err = compiler.Compile(t.Name()+"_readonly", []byte(`local c = make_counter(); c.n = 5`))
	require.NoError(t, err)
	_, err = vm.Run(fn)
	require.Error(t, err)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrUserData, rerr.Kind)

	// Type mismatch: a non-string key.
	fn, err = compiler.Compile(t.Name()+"_keytype", []byte(`local c = make_counter(); return c[1]`))
	require.NoError(t, err)
	_, err = vm.Run(fn)
	require.Error(t, err)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, machine.ErrUserData, rerr.Kind)
}

func TestUpvalueTransparencyAcrossClosures(t *testing.T) {
	got := run(t, `
	local n = 0
	local function get() return n end
	local function set(v) n = v end
	set(99)
	return get()
	`)
	assert.Equal(t, machine.Integer(99), got)
}
