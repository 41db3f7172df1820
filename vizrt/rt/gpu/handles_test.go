package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArena_InsertGetRemove(t *testing.T) {
	var a Arena[string]

	h1 := a.Insert("one")
	h2 := a.Insert("two")
	assert.False(t, h1.IsZero())
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(h2)
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	v, ok = a.Remove(h1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 1, a.Len())
	assert.False(t, a.Contains(h1))
}

func TestArena_StaleHandleRejectedAfterReuse(t *testing.T) {
	var a Arena[int]

	old := a.Insert(1)
	a.Remove(old)
	reused := a.Insert(2)

	assert.NotEqual(t, old, reused)
	_, ok := a.Get(old)
	assert.False(t, ok)
	_, ok = a.Remove(old)
	assert.False(t, ok)

	v, ok := a.Get(reused)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestArena_ZeroHandle(t *testing.T) {
	var a Arena[int]
	a.Insert(7)

	assert.False(t, a.Contains(Handle{}))
	assert.Equal(t, "Handle(screen)", Handle{}.String())
}

func TestArena_PtrAndEach(t *testing.T) {
	var a Arena[int]
	h := a.Insert(1)
	a.Insert(2)

	p, ok := a.Ptr(h)
	assert.True(t, ok)
	*p = 10

	sum := 0
	a.Each(func(_ Handle, v *int) { sum += *v })
	assert.Equal(t, 12, sum)
}
