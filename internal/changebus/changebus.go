// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package changebus fans out file change events to independent subscribers.
//
// Publishing never blocks: every subscriber has its own bounded buffer, and
// events that do not fit are dropped for that subscriber only. Subscribers
// see only events published after they subscribed.
package changebus

import (
	"sync"
	"sync/atomic"
)

// Kind classifies an [Event].
type Kind int

// Event kinds.
const (
	Create Kind = iota
	Modify
	Delete
	CSSChange
	Error
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	case CSSChange:
		return "css"
	case Error:
		return "error"
	}
	return "unknown"
}

// Event is a change notification.
type Event struct {
	Path    string // changed file, or the failing file for Error events
	Kind    Kind
	Message string // set for Error events
}

// DefaultBuffer is the buffer size used by Subscribe when it is given a
// non-positive size.
const DefaultBuffer = 16

// Bus is a publish/subscribe hub. The zero value is ready to use.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives events from a Bus.
type Subscription struct {
	bus     *Bus
	c       chan Event
	dropped atomic.Int64
	once    sync.Once
}

// Subscribe registers a new subscriber with room for buffer pending events.
// Subscribing to a closed Bus returns an already closed Subscription.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{bus: b, c: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.c) })
		return s
	}
	if b.subs == nil {
		b.subs = make(map[*Subscription]struct{})
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber that has room for it and returns
// the number of subscribers that received it.
func (b *Bus) Publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	for s := range b.subs {
		select {
		case s.c <- ev:
			n++
		default:
			s.dropped.Add(1)
		}
	}
	return n
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.c) })
	}
}

// C returns the channel events are delivered on. It is closed when the
// subscription or its Bus is closed.
func (s *Subscription) C() <-chan Event { return s.c }

// Dropped returns the number of events dropped because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
	s.once.Do(func() { close(s.c) })
}
