package builtin

import (
	"testing"

	"github.com/praizmiky/focus/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantifierGenericsAreDistinctConsumingModels(t *testing.T) {
	require.NotNil(t, Pos)
	require.NotNil(t, Opt)
	require.NotNil(t, Kle)

	for _, p := range []*ir.Parselet{Pos, Opt, Kle} {
		assert.True(t, p.IsBuiltin)
		assert.True(t, p.Model.Consuming)
		assert.Empty(t, p.Model.Signature)

		repeat, ok := p.Model.Body.(ir.Repeat)
		require.True(t, ok)
		ref, ok := repeat.Body.(ir.Call)
		require.True(t, ok)
		assert.Equal(t, ir.GenericRef{Name: "value"}, ref.Target)
	}

	assert.NotSame(t, Pos, Opt)
	assert.NotSame(t, Opt, Kle)

	assert.Equal(t, 1, Pos.Model.Body.(ir.Repeat).Min)
	assert.Equal(t, -1, Pos.Model.Body.(ir.Repeat).Max)
	assert.Equal(t, 0, Opt.Model.Body.(ir.Repeat).Min)
	assert.Equal(t, 1, Opt.Model.Body.(ir.Repeat).Max)
	assert.Equal(t, 0, Kle.Model.Body.(ir.Repeat).Min)
	assert.Equal(t, -1, Kle.Model.Body.(ir.Repeat).Max)
}
