package adr

import (
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	assert := require.New(t)

	store := NewStore()
	devAddr := lorawan.DevAddr{1, 2, 3, 4}

	_, ok := store.Get(devAddr)
	assert.False(ok)
	assert.Equal(0, store.Count())

	c := Configuration{SpreadingFactor: 12, TXPowerDbm: 14}
	state := store.GetOrCreate(devAddr, 503, c)
	assert.Equal(503, state.CurrentIndex)
	assert.Equal(c, state.Assigned)
	assert.Equal(1, store.Count())

	// A second create for the same address returns the existing state.
	state.CurrentIndex = 42
	again := store.GetOrCreate(devAddr, 503, c)
	assert.Equal(42, again.CurrentIndex)
	assert.Equal(1, store.Count())

	got, ok := store.Get(devAddr)
	assert.True(ok)
	assert.Equal(state, got)

	var visited int
	store.Range(func(addr lorawan.DevAddr, st *DeviceState) {
		visited++
		assert.Equal(devAddr, addr)
		assert.Equal(42, st.CurrentIndex)
	})
	assert.Equal(1, visited)
}
