package scope

import (
	"testing"

	"github.com/praizmiky/focus/internal/ir"
	"github.com/praizmiky/focus/internal/rtvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A fresh resolver starts and ends at scope depth 0.
func TestScopeBalance(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.Depth())
	r.PushParselet()
	assert.Equal(t, 1, r.Depth())
	r.ParseletPop(nil, "X", 5, nil, nil, ir.Nop{})
	assert.Equal(t, 0, r.Depth())
}

func TestGlobalScopeIsFirstParseletPushed(t *testing.T) {
	r := New()
	r.PushParselet()
	assert.True(t, r.IsGlobal())
	r.PushBlock()
	// The nearest enclosing parselet is still the global one.
	assert.True(t, r.IsGlobal())
}

func TestLocalBindsVariableSlotOnce(t *testing.T) {
	r := New()
	r.PushParselet()
	r.Local("x")
	r.Local("x") // re-binding the same name must not grow the frame
	r.Local("y")

	v, ok := r.Get(nil, "x")
	require.True(t, ok)
	assert.Equal(t, ir.Global{Slot: 0}, v) // global scope -> ir.Global

	v, ok = r.Get(nil, "y")
	require.True(t, ok)
	assert.Equal(t, ir.Global{Slot: 1}, v)
}

func TestLocalInNestedParseletReturnsLocalSlot(t *testing.T) {
	r := New()
	r.PushParselet() // global
	r.PushParselet() // nested, not global
	r.Local("x")

	v, ok := r.Get(nil, "x")
	require.True(t, ok)
	assert.Equal(t, ir.Local{Slot: 0}, v)
}

func TestConstantLookupPrefersBlockOverParselet(t *testing.T) {
	r := New()
	r.PushParselet()
	r.Constant("X", ir.Const{V: rtvalue.Str("outer")})
	r.PushBlock()
	r.Constant("X", ir.Const{V: rtvalue.Str("inner")})

	v, ok := r.Get(nil, "X")
	require.True(t, ok)
	assert.Equal(t, ir.Const{V: rtvalue.Str("inner")}, v)

	r.PopBlock()
	v, ok = r.Get(nil, "X")
	require.True(t, ok)
	assert.Equal(t, ir.Const{V: rtvalue.Str("outer")}, v)
}

// Repeated "_" (re)definition produces the same pair of derived
// constants regardless of how many times it runs.
func TestWhitespaceShorthandIdempotent(t *testing.T) {
	r := New()
	r.PushParselet()

	r.Constant("_", ir.Const{V: rtvalue.Str("a")})
	under1, _ := r.Get(nil, "__")
	bare1, _ := r.Get(nil, "_")

	r.Constant("_", ir.Const{V: rtvalue.Str("a")})
	under2, _ := r.Get(nil, "__")
	bare2, _ := r.Get(nil, "_")

	assert.Equal(t, under1, under2)
	assert.Equal(t, bare1, bare2)
}

func TestDeriveCachesByModelAndConfig(t *testing.T) {
	r := New()
	model := &ir.Model{Body: ir.Nop{}}

	config := []ir.ConstEntry{{Name: "value", Value: ir.Const{V: rtvalue.Str("a")}}}
	first := r.Derive(model, "List", nil, config)
	second := r.Derive(model, "List", nil, config)
	assert.Same(t, first, second)

	other := []ir.ConstEntry{{Name: "value", Value: ir.Const{V: rtvalue.Str("b")}}}
	third := r.Derive(model, "List", nil, other)
	assert.NotSame(t, first, third)
}

func TestGetBuiltinFunctionAndToken(t *testing.T) {
	r := New()
	r.PushParselet()

	v, ok := r.Get(nil, "int_add")
	require.True(t, ok)
	c, ok := v.(ir.Const)
	require.True(t, ok)
	_, isBuiltin := c.V.(*rtvalue.Builtin)
	assert.True(t, isBuiltin)

	v, ok = r.Get(nil, "Identifier")
	require.True(t, ok)
	c, ok = v.(ir.Const)
	require.True(t, ok)
	_, isToken := c.V.(*rtvalue.Token)
	assert.True(t, isToken)
}

func TestGetUnknownNameFails(t *testing.T) {
	r := New()
	r.PushParselet()
	_, ok := r.Get(nil, "NoSuchThing")
	assert.False(t, ok)
}

func TestInLoopOnlyBetweenLoopAndParselet(t *testing.T) {
	r := New()
	r.PushParselet()
	assert.False(t, r.InLoop())

	r.PushLoop()
	assert.True(t, r.InLoop())

	r.PushBlock()
	assert.True(t, r.InLoop())
	r.PopBlock()

	r.PopLoop()
	assert.False(t, r.InLoop())
}

func TestMarkConsumingSetsModelConsuming(t *testing.T) {
	r := New()
	r.PushParselet()
	r.MarkConsuming()
	v := r.ParseletPop(nil, "X", 5, nil, nil, ir.Nop{})
	ref, ok := v.(ir.ParseletRef)
	require.True(t, ok)
	assert.True(t, ref.P.Model.Consuming)
}

func TestParseletPopPanicsWhenSignatureExceedsLocals(t *testing.T) {
	r := New()
	r.PushParselet()
	assert.Panics(t, func() {
		r.ParseletPop(nil, "X", 5, nil, []ir.Param{{Name: "x"}}, ir.Nop{})
	})
}

func TestResolveRetriesPendingUsagesAcrossScopePop(t *testing.T) {
	r := New()
	r.PushParselet() // global

	// A forward reference to "Later" is unresolved at the point of use...
	r.PushBlock()
	usage := ir.TryResolve(ir.Name{Name: "Later"}, r)
	shared, ok := usage.(ir.Shared)
	require.True(t, ok)
	assert.True(t, ir.IsUnresolved(shared))
	r.PopBlock()

	// ...and resolves once the name is bound and the scope is drained.
	r.Constant("Later", ir.Const{V: rtvalue.Str("a")})
	r.Resolve()
	assert.False(t, ir.IsUnresolved(shared))
}
