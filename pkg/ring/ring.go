// Package ring provides the single-producer single-consumer byte channels
// shared between receivers and the polling loop.
package ring

import "sync/atomic"

// DefaultCapacity is the capacity used when none is configured.
const DefaultCapacity = 256

// Ring is a fixed capacity byte ring.
//
// Exactly one goroutine may call the producer methods (Push, Write) and
// exactly one goroutine may call the consumer methods (Pop, Peek, Drain).
// The producer never blocks: when it laps the consumer the unread bytes are
// overwritten and the ring appears empty until new bytes are pushed.
type Ring struct {
	store []byte
	rd    atomic.Uint32
	wr    atomic.Uint32
}

// New creates a Ring.
func New(capacity int) *Ring {
	if capacity < 2 {
		panic("ring: capacity must be at least 2")
	}
	return &Ring{store: make([]byte, capacity)}
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	return len(r.store)
}

// Len returns the number of unread bytes.
func (r *Ring) Len() int {
	c := uint32(len(r.store))
	return int((r.wr.Load() + c - r.rd.Load()) % c)
}

// HasData reports whether there are unread bytes.
func (r *Ring) HasData() bool {
	return r.rd.Load() != r.wr.Load()
}

// Push appends a byte. Producer only.
func (r *Ring) Push(b byte) {
	w := r.wr.Load()
	r.store[w] = b
	r.wr.Store(r.next(w))
}

// Write pushes all bytes of p. Producer only.
func (r *Ring) Write(p []byte) (int, error) {
	for _, b := range p {
		r.Push(b)
	}
	return len(p), nil
}

// Pop consumes a byte. It returns 0 and leaves the ring untouched when
// empty, callers are expected to check HasData first. Consumer only.
func (r *Ring) Pop() byte {
	rd := r.rd.Load()
	if rd == r.wr.Load() {
		return 0
	}
	b := r.store[rd]
	r.rd.Store(r.next(rd))
	return b
}

// Peek returns the next byte without consuming it. Consumer only.
func (r *Ring) Peek() byte {
	rd := r.rd.Load()
	if rd == r.wr.Load() {
		return 0
	}
	return r.store[rd]
}

// Drain pops as many bytes as available into p and returns the count.
// Consumer only.
func (r *Ring) Drain(p []byte) int {
	n := 0
	for n < len(p) && r.HasData() {
		p[n] = r.Pop()
		n++
	}
	return n
}

// Offset returns the physical position of the read cursor.
func (r *Ring) Offset() int {
	return int(r.rd.Load())
}

// Wrap maps a position relative to the store onto a physical offset.
func (r *Ring) Wrap(off int) int {
	c := len(r.store)
	return ((off % c) + c) % c
}

// CopyAt copies bytes from the physical store starting at off, wrapping to
// offset 0 when the end of the store is reached. At most Cap bytes are
// copied. The copy ignores the cursors, so bytes already consumed are still
// visible until the producer overwrites them.
func (r *Ring) CopyAt(dst []byte, off int) int {
	off = r.Wrap(off)
	n := copy(dst, r.store[off:])
	if n < len(dst) {
		n += copy(dst[n:], r.store[:off])
	}
	return n
}

func (r *Ring) next(pos uint32) uint32 {
	return (pos + 1) % uint32(len(r.store))
}
