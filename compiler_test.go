package compiler

import (
	"testing"

	"github.com/praizmiky/focus/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiledByName(t *testing.T, statics []ir.Static, name string) *ir.Compiled {
	t.Helper()
	for _, s := range statics {
		if c, ok := s.(*ir.Compiled); ok && c.Name == name {
			return c
		}
	}
	t.Fatalf("no compiled parselet named %q in %d statics", name, len(statics))
	return nil
}

func TestDirectLeftRecursion(t *testing.T) {
	prog, errs := New().CompileString(`X : X "a" | "a"`)
	require.Empty(t, errs)
	require.NotNil(t, prog)

	x := compiledByName(t, prog.Statics, "X")
	require.NotNil(t, x.Consuming)
	assert.True(t, *x.Consuming)
}

func TestMutualRecursion(t *testing.T) {
	prog, errs := New().CompileString("A : B \"x\" | \"a\"\nB : A \"y\" | \"b\"\n")
	require.Empty(t, errs)
	require.NotNil(t, prog)

	a := compiledByName(t, prog.Statics, "A")
	b := compiledByName(t, prog.Statics, "B")
	require.NotNil(t, a.Consuming)
	require.NotNil(t, b.Consuming)
	assert.True(t, *a.Consuming)
	assert.True(t, *b.Consuming)
}

func TestNullableDetection(t *testing.T) {
	prog, errs := New().CompileString(`X : "a"?`)
	require.Empty(t, errs)
	require.NotNil(t, prog)

	x := compiledByName(t, prog.Statics, "X")
	require.NotNil(t, x.Consuming)
	assert.False(t, *x.Consuming)
}

// Two uses of the same generic instantiation share one static index.
func TestGenericInstantiationReuse(t *testing.T) {
	prog, errs := New().CompileString("List : \"a\"\nList<\"a\"> List<\"a\">\n")
	require.Empty(t, errs)
	require.NotNil(t, prog)

	var derivedIdx []int
	for i, s := range prog.Statics {
		if c, ok := s.(*ir.Compiled); ok && c.Name == "List" && i != 0 {
			// Index 0 is the main parselet (the last top-level
			// statement). The plain "List" definition is never
			// referenced, so it is not registered; every "List" entry
			// is a derived instance sharing its model.
			derivedIdx = append(derivedIdx, i)
		}
	}
	require.Len(t, derivedIdx, 1, "both instantiations should share one derived static entry")
}

func TestUndefinedSymbol(t *testing.T) {
	prog, errs := New().CompileString(`X : Y`)
	assert.Nil(t, prog)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Y")
	assert.NotNil(t, errs[0].Offset)
}

// The two synthesized parselets are derivations of the built-in
// Pos/Opt generics, named after those generics, not the "_"/"__"
// binding under which the scope stores them.
func TestWhitespaceAutogeneration(t *testing.T) {
	prog, errs := New().CompileString(`X : _ "a"`)
	require.Empty(t, errs)
	require.NotNil(t, prog)

	foundPos, foundOpt := false, false
	for _, s := range prog.Statics {
		c, ok := s.(*ir.Compiled)
		if !ok {
			continue
		}
		switch c.Name {
		case "Pos":
			foundPos = true
		case "Opt":
			foundOpt = true
		}
	}
	assert.True(t, foundPos, "expected a derived Pos(Whitespaces) static")
	assert.True(t, foundOpt, "expected a derived Opt(Pos(Whitespaces)) static")
}

func TestUndefinedSymbolOffsetIsMeaningful(t *testing.T) {
	_, errs := New().CompileString("X : Y\n")
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Offset.Line)
}

func TestCompileStringEmptyProgram(t *testing.T) {
	prog, errs := New().CompileString("")
	require.Empty(t, errs)
	require.NotNil(t, prog)
	assert.Equal(t, 0, prog.Main)
}

func TestMissingRequiredGenericArgument(t *testing.T) {
	prog, errs := New().CompileString("G(x) : x\nG()\n")
	assert.Nil(t, prog)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "missing required argument")
}
