package tamarin_test

import (
	"bytes"
	"testing"

	"github.com/mna/tamarin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndExecute(t *testing.T) {
	prog, err := tamarin.Compile("t", []byte(`
	function fib(n)
	  if n <= 1 then return n else return fib(n-1) + fib(n-2) end
	end
	return fib(10)
	`))
	require.NoError(t, err)

	m := tamarin.New()
	v, err := m.Execute(prog)
	require.NoError(t, err)
	assert.Equal(t, tamarin.Integer(55), v)
}

func TestCompileErrorList(t *testing.T) {
	_, err := tamarin.Compile("t", []byte(`local x = }`))
	require.Error(t, err)
}

func TestRegisterNative(t *testing.T) {
	m := tamarin.NewBare()
	var gotArgs []tamarin.Value
	m.RegisterNative("host_add", func(m *tamarin.Machine, args []tamarin.Value) (tamarin.Value, error) {
		gotArgs = args
		a := args[0].(tamarin.Integer)
		b := args[1].(tamarin.Integer)
		return a + b, nil
	})

	prog, err := tamarin.Compile("t", []byte(`return host_add(40, 2)`))
	require.NoError(t, err)

	v, err := m.Execute(prog)
	require.NoError(t, err)
	assert.Equal(t, tamarin.Integer(42), v)
	require.Len(t, gotArgs, 2)
}

func TestTableSnapshot(t *testing.T) {
	prog, err := tamarin.Compile("t", []byte(`return {a = 1, b = 2}`))
	require.NoError(t, err)

	m := tamarin.New()
	v, err := m.Execute(prog)
	require.NoError(t, err)

	snap, ok := v.(*tamarin.TableSnapshot)
	require.True(t, ok)
	assert.Equal(t, tamarin.Integer(1), snap.Entries[tamarin.String("a")])
	assert.Equal(t, tamarin.Integer(2), snap.Entries[tamarin.String("b")])
}

func TestPrintRedirectsToStdout(t *testing.T) {
	prog, err := tamarin.Compile("t", []byte(`print("hi")`))
	require.NoError(t, err)

	m := tamarin.New()
	var out bytes.Buffer
	m.SetStdout(&out)
	_, err = m.Execute(prog)
	require.NoError(t, err)
	assert.Equal(t, "> hi\n", out.String())
}

type point struct{ X, Y int64 }

func TestUserDataMethodsAndFields(t *testing.T) {
	m := tamarin.NewBare()

	ut := tamarin.NewUserDataType()
	ut.AddMethod("sum", func(m *tamarin.Machine, payload any, args []tamarin.Value) (tamarin.Value, error) {
		p := payload.(*point)
		return tamarin.Integer(p.X + p.Y), nil
	})
	ut.AddField("x",
		func(m *tamarin.Machine, payload any) (tamarin.Value, error) {
			return tamarin.Integer(payload.(*point).X), nil
		},
		func(m *tamarin.Machine, payload any, val tamarin.Value) error {
			payload.(*point).X = int64(val.(tamarin.Integer))
			return nil
		})
	m.RegisterUserDataType("point", ut)

	p := &point{X: 1, Y: 2}
	m.RegisterNative("make_point", func(m *tamarin.Machine, args []tamarin.Value) (tamarin.Value, error) {
		return tamarin.WrapUserData("point", p), nil
	})

	prog, err := tamarin.Compile("t", []byte(`
	local p = make_point()
	local before = p.sum(p)
	p.x = 10
	return {before, p.x}
	`))
	require.NoError(t, err)

	v, err := m.Execute(prog)
	require.NoError(t, err)
	snap, ok := v.(*tamarin.TableSnapshot)
	require.True(t, ok)
	assert.Equal(t, tamarin.Integer(3), snap.Entries[tamarin.Integer(1)])
	assert.Equal(t, tamarin.Integer(10), snap.Entries[tamarin.Integer(2)])
	assert.Equal(t, int64(10), p.X)
}

func TestUserDataUnknownFieldIsError(t *testing.T) {
	m := tamarin.NewBare()
	m.RegisterUserDataType("point", tamarin.NewUserDataType())
	p := &point{}
	m.RegisterNative("make_point", func(m *tamarin.Machine, args []tamarin.Value) (tamarin.Value, error) {
		return tamarin.WrapUserData("point", p), nil
	})

	prog, err := tamarin.Compile("t", []byte(`local p = make_point(); return p.nope`))
	require.NoError(t, err)
	_, err = m.Execute(prog)
	require.Error(t, err)
}
