package stdlib_test

import (
	"bytes"
	"testing"

	"github.com/mna/tamarin/lang/compiler"
	"github.com/mna/tamarin/lang/machine"
	"github.com/mna/tamarin/lang/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (machine.Value, *bytes.Buffer) {
	t.Helper()
	fn, err := compiler.Compile(t.Name(), []byte(src))
	require.NoError(t, err)
	vm := machine.New()
	stdlib.Register(vm)
	var out bytes.Buffer
	vm.Stdout = &out
	v, err := vm.Run(fn)
	require.NoError(t, err)
	return v, &out
}

func TestPrint(t *testing.T) {
	_, out := run(t, `print("hello", 1, true)`)
	assert.Equal(t, "> hello\t1\ttrue\n", out.String())
}

func TestType(t *testing.T) {
	v, _ := run(t, `return type(1)`)
	assert.Equal(t, machine.String("integer"), v)
	v, _ = run(t, `return type("s")`)
	assert.Equal(t, machine.String("string"), v)
	v, _ = run(t, `return type(nil)`)
	assert.Equal(t, machine.String("nil"), v)
}

func TestToStringAndToNumber(t *testing.T) {
	v, _ := run(t, `return tostring(42)`)
	assert.Equal(t, machine.String("42"), v)

	v, _ = run(t, `return tonumber("42")`)
	assert.Equal(t, machine.Integer(42), v)

	v, _ = run(t, `return tonumber("4.5")`)
	assert.Equal(t, machine.Number(4.5), v)

	v, _ = run(t, `return tonumber("nope")`)
	assert.Equal(t, machine.Nil, v)
}

func TestSetGetMetatable(t *testing.T) {
	v, _ := run(t, `
	local t = setmetatable({}, {tag = "x"})
	local mt = getmetatable(t)
	return mt.tag
	`)
	assert.Equal(t, machine.String("x"), v)
}

func TestPairsSnapshot(t *testing.T) {
	v, _ := run(t, `
	local total = 0
	local snapshot = pairs({1, 2, 3})
	return #snapshot
	`)
	assert.Equal(t, machine.Integer(3), v)
}

func TestStringMethods(t *testing.T) {
	v, _ := run(t, `local s = "Hello"; return s.upper(s)`)
	assert.Equal(t, machine.String("HELLO"), v)

	v, _ = run(t, `local s = "Hello"; return s.lower(s)`)
	assert.Equal(t, machine.String("hello"), v)

	v, _ = run(t, `local s = "Hello"; return s.len(s)`)
	assert.Equal(t, machine.Integer(5), v)

	v, _ = run(t, `local s = "Hello"; return s.sub(s, 2, 4)`)
	assert.Equal(t, machine.String("ell"), v)

	v, _ = run(t, `local s = "Hello"; return s.sub(s, -3)`)
	assert.Equal(t, machine.String("llo"), v)

	v, _ = run(t, `local s = "Hello"; return s.byte(s, 1)`)
	assert.Equal(t, machine.Integer('H'), v)
}
