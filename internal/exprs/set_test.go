package exprs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolSetKeepsInsertionOrder(t *testing.T) {
	s := MakeSymbolSet(syms("c", "a", "b", "a")...)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, syms("c", "a", "b"), s.Ordered())
	assert.Equal(t, syms("a", "b", "c"), s.Sorted())
	assert.Equal(t, "(c, a, b)", s.String())
}

func TestSymbolSetOperations(t *testing.T) {
	ab := MakeSymbolSet(syms("a", "b")...)
	bc := MakeSymbolSet(syms("b", "c")...)

	assert.Equal(t, syms("a", "b", "c"), ab.Union(bc).Ordered())
	assert.Equal(t, syms("b"), ab.Intersection(bc).Ordered())
	assert.Equal(t, syms("a"), ab.Difference(bc).Ordered())
	assert.True(t, MakeSymbolSet(syms("b")...).SubsetOf(ab))
	assert.False(t, ab.SubsetOf(bc))
}

func TestSymbolSetZeroValue(t *testing.T) {
	var s SymbolSet

	assert.True(t, s.Empty())
	assert.False(t, s.Contains("a"))
	assert.Empty(t, s.Ordered())
	assert.True(t, s.SubsetOf(MakeSymbolSet()))
}
