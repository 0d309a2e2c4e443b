// Package perf is the cross-cutting performance event log. The bus is an
// explicitly constructed value passed to whoever needs it; there is no
// package-level instance.
package perf

import (
	"sync"
	"time"
)

// Kind classifies a performance entry.
type Kind string

const (
	KindRender   Kind = "render"
	KindAPI      Kind = "api"
	KindFunction Kind = "function"
)

// Entry is one recorded measurement.
type Entry struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      Kind          `json:"kind"`
}

// Bus holds the most recent entries in a fixed-size ring (drop-oldest) and
// notifies subscribers on every append.
type Bus struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	start    int
	count    int
	subs     map[int]func(Entry)
	nextSub  int
}

// NewBus creates a bus keeping at most capacity entries. A non-positive
// capacity gets the default of 100.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 100
	}
	return &Bus{
		capacity: capacity,
		entries:  make([]Entry, capacity),
		subs:     make(map[int]func(Entry)),
	}
}

// Record appends an entry, evicting the oldest one once the ring is full,
// then notifies subscribers synchronously.
func (b *Bus) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.Lock()
	idx := (b.start + b.count) % b.capacity
	if b.count == b.capacity {
		b.start = (b.start + 1) % b.capacity
	} else {
		b.count++
	}
	b.entries[idx] = e

	subs := make([]func(Entry), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Entries returns a copy of the retained entries, oldest first.
func (b *Bus) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, b.count)
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(b.start+i)%b.capacity])
	}
	return out
}

// Subscribe registers fn for future entries and returns an unsubscribe func.
func (b *Bus) Subscribe(fn func(Entry)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Clear drops all retained entries.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.start, b.count = 0, 0
	b.mu.Unlock()
}

// ProfileFunc runs fn and records its duration under name.
func (b *Bus) ProfileFunc(name string, fn func()) {
	start := time.Now()
	fn()
	b.Record(Entry{Name: name, Duration: time.Since(start), Kind: KindFunction})
}

// ProfileCall runs a fallible operation and records its duration under name
// as an API measurement, whether it succeeds or not.
func (b *Bus) ProfileCall(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	b.Record(Entry{Name: name, Duration: time.Since(start), Kind: KindAPI})
	return err
}
