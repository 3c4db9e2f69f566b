// Package events delivers host occurrences (load, resize, scroll) to
// registered handlers. A Bus is meant to be fired from the host event loop.
package events

import (
	"sync"

	"github.com/JakeFAU/scrollprobe/internal/responder"
)

var _ responder.EventSource = (*Bus)(nil)

type handler[T any] struct {
	id int
	fn T
}

// Bus is an ordered registry of load, resize and scroll handlers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	loaded bool
	load   []handler[func()]
	resize []handler[func()]
	scroll []handler[func(float64)]
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnLoad registers fn for the one-shot load occurrence.
func (b *Bus) OnLoad(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.add()
	b.load = append(b.load, handler[func()]{id: id, fn: fn})
	return func() { b.remove(id) }
}

// OnResize registers fn for viewport resizes.
func (b *Bus) OnResize(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.add()
	b.resize = append(b.resize, handler[func()]{id: id, fn: fn})
	return func() { b.remove(id) }
}

// OnScroll registers fn for scroll occurrences.
func (b *Bus) OnScroll(fn func(offset float64)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.add()
	b.scroll = append(b.scroll, handler[func(float64)]{id: id, fn: fn})
	return func() { b.remove(id) }
}

// FireLoad notifies load handlers. Only the first call has an effect.
func (b *Bus) FireLoad() {
	b.mu.Lock()
	if b.loaded {
		b.mu.Unlock()
		return
	}
	b.loaded = true
	hs := append([]handler[func()](nil), b.load...)
	b.mu.Unlock()
	for _, h := range hs {
		h.fn()
	}
}

// Loaded reports whether FireLoad has run.
func (b *Bus) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// FireResize notifies resize handlers.
func (b *Bus) FireResize() {
	b.mu.Lock()
	hs := append([]handler[func()](nil), b.resize...)
	b.mu.Unlock()
	for _, h := range hs {
		h.fn()
	}
}

// FireScroll notifies scroll handlers with the new offset.
func (b *Bus) FireScroll(offset float64) {
	b.mu.Lock()
	hs := append([]handler[func(float64)](nil), b.scroll...)
	b.mu.Unlock()
	for _, h := range hs {
		h.fn(offset)
	}
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.load) + len(b.resize) + len(b.scroll)
}

func (b *Bus) add() int {
	b.nextID++
	return b.nextID
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.load = without(b.load, id)
	b.resize = without(b.resize, id)
	b.scroll = without(b.scroll, id)
}

func without[T any](hs []handler[T], id int) []handler[T] {
	out := hs[:0]
	for _, h := range hs {
		if h.id != id {
			out = append(out, h)
		}
	}
	return out
}
