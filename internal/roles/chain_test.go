package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func chainFromMap(parents map[int64]*int64) func(int64) (*int64, bool) {
	return func(id int64) (*int64, bool) {
		parent, ok := parents[id]
		return parent, ok
	}
}

func ptr(v int64) *int64 { return &v }

func TestChainLinear(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(2),
		2: ptr(3),
		3: nil,
	}
	assert.Equal(t, []int64{1, 2, 3}, Chain(1, chainFromMap(parents)))
}

func TestChainSingle(t *testing.T) {
	parents := map[int64]*int64{1: nil}
	assert.Equal(t, []int64{1}, Chain(1, chainFromMap(parents)))
}

func TestChainStopsOnUnknownRole(t *testing.T) {
	parents := map[int64]*int64{1: ptr(99)}
	assert.Equal(t, []int64{1, 99}, Chain(1, chainFromMap(parents)))
}

func TestChainTerminatesOnCycle(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(2),
		2: ptr(3),
		3: ptr(1),
	}
	assert.Equal(t, []int64{1, 2, 3}, Chain(1, chainFromMap(parents)))
}

func TestChainTerminatesOnSelfReference(t *testing.T) {
	parents := map[int64]*int64{7: ptr(7)}
	assert.Equal(t, []int64{7}, Chain(7, chainFromMap(parents)))
}
