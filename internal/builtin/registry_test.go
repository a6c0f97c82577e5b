package builtin

import (
	"testing"

	"github.com/praizmiky/focus/internal/ir"
	"github.com/praizmiky/focus/internal/rtvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownAndUnknownFunction(t *testing.T) {
	fn, ok := Lookup("int_add")
	require.True(t, ok)
	assert.Equal(t, "int_add", fn.Name)
	assert.Equal(t, 2, fn.Arity)

	_, ok = Lookup("no_such_builtin")
	assert.False(t, ok)
}

func TestLookupVariadicArity(t *testing.T) {
	fn, ok := Lookup("print")
	require.True(t, ok)
	assert.Equal(t, -1, fn.Arity)
}

func TestTokenKnownAndUnknown(t *testing.T) {
	tok, ok := Token("Whitespaces")
	require.True(t, ok)
	assert.Equal(t, "Whitespaces", tok.Name)

	_, ok = Token("NoSuchToken")
	assert.False(t, ok)
}

func TestAsValueWrapsFunctionsAndTokens(t *testing.T) {
	v, ok := AsValue("str_len")
	require.True(t, ok)
	c, ok := v.(ir.Const)
	require.True(t, ok)
	fn, ok := c.V.(*rtvalue.Builtin)
	require.True(t, ok)
	assert.Equal(t, "str_len", fn.Name)

	v, ok = AsValue("Integer")
	require.True(t, ok)
	c, ok = v.(ir.Const)
	require.True(t, ok)
	tok, ok := c.V.(*rtvalue.Token)
	require.True(t, ok)
	assert.Equal(t, "Integer", tok.Name)

	_, ok = AsValue("not_a_builtin")
	assert.False(t, ok)
}
