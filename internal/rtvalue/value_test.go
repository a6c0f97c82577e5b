package rtvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrIsConsumingAndCallable(t *testing.T) {
	assert.True(t, Str("a").IsCallable(true))
	assert.True(t, Str("a").IsConsuming())
	assert.False(t, Str("a").IsNullable())
	assert.True(t, Str("").IsNullable())
}

func TestIntZeroAndOne(t *testing.T) {
	assert.True(t, NewInt(0).IsZero())
	assert.True(t, NewInt(1).IsOne())
	assert.False(t, NewInt(2).IsZero())
	assert.False(t, NewInt(2).IsOne())
}

func TestEqualAcrossKinds(t *testing.T) {
	assert.False(t, Str("1").Equal(NewInt(1)))
	assert.True(t, Str("a").Equal(Str("a")))
	assert.True(t, NewInt(3).Equal(NewInt(3)))
}

func TestListEqual(t *testing.T) {
	a := List{Str("x"), NewInt(1)}
	b := List{Str("x"), NewInt(1)}
	c := List{Str("x"), NewInt(2)}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestDictSetGetOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", Str("2"))
	d.Set("a", Str("1"))
	d.Set("b", Str("updated"))

	v, ok := d.Get("b")
	require := assert.New(t)
	require.True(ok)
	require.Equal(Str("updated"), v)
	require.Equal("{b: updated, a: 1}", d.String())
}
