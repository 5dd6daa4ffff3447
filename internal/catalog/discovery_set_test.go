package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverySetKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	s := NewDiscoverySet()
	assert.Equal(t, 2, s.Add("b", "a"))
	assert.Equal(t, 1, s.Add("a", "c", ""))
	assert.Equal(t, 0, s.Add("b"))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"b", "a", "c"}, s.Keys())

	keys := s.Keys()
	keys[0] = "mutated"
	assert.Equal(t, "b", s.Keys()[0])
}
