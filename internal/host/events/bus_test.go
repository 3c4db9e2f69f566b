package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFiresInRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var got []string
	bus.OnScroll(func(y float64) { got = append(got, "a") })
	bus.OnScroll(func(y float64) { got = append(got, "b") })
	bus.OnResize(func() { got = append(got, "resize") })

	bus.FireScroll(10)
	bus.FireResize()
	assert.Equal(t, []string{"a", "b", "resize"}, got)
}

func TestBusLoadFiresOnce(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	count := 0
	bus.OnLoad(func() { count++ })
	require.False(t, bus.Loaded())

	bus.FireLoad()
	bus.FireLoad()
	assert.Equal(t, 1, count)
	assert.True(t, bus.Loaded())
}

func TestBusCancelRemovesHandler(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var offsets []float64
	cancel := bus.OnScroll(func(y float64) { offsets = append(offsets, y) })
	keep := bus.OnResize(func() {})
	require.Equal(t, 2, bus.Len())

	bus.FireScroll(1)
	cancel()
	bus.FireScroll(2)
	assert.Equal(t, []float64{1}, offsets)
	assert.Equal(t, 1, bus.Len())

	keep()
	assert.Zero(t, bus.Len())
}
