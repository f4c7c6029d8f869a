package compiler_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mna/tamarin/lang/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValid(t *testing.T) {
	fn, err := compiler.Compile("t", []byte(`
	local x = 1
	if x == 1 then
	  x = 2
	end
	return x
	`))
	require.NoError(t, err)
	assert.True(t, fn.Chunk.Valid)
	assert.NotEmpty(t, fn.Chunk.Code)
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want string
	}{
		{"floor division not implemented", `return 1 // 2`, "not implemented"},
		{"modulo not implemented", `return 1 % 2`, "not implemented"},
		{"exponent not implemented", `return 1 ^ 2`, "not implemented"},
		{"goto missing label", `goto nowhere`, "no visible label"},
		{"invalid assignment target", `1 = 2`, ""},
		{"unterminated string", "local x = \"abc", "unterminated"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			_, err := compiler.Compile(c.desc, []byte(c.src))
			require.Error(t, err)
			if c.want != "" {
				assert.True(t, strings.Contains(err.Error(), c.want), "error %q does not contain %q", err.Error(), c.want)
			}
		})
	}
}

func TestTooManyLocals(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < compiler.MaxLocals+2; i++ {
		fmt.Fprintf(&sb, "local a%d = 0\n", i)
	}
	_, err := compiler.Compile("t", []byte(sb.String()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many local variables")
}

func TestDisassemble(t *testing.T) {
	fn, err := compiler.Compile("t", []byte(`return 1 + 2`))
	require.NoError(t, err)
	out := compiler.Disassemble(fn)
	assert.Contains(t, out, "add")
	assert.Contains(t, out, "return")
}
