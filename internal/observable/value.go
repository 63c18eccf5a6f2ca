// Package observable provides a latest-value cell that consumers can
// subscribe to. Subscribers only ever see the most recent value: a slow
// reader skips intermediate updates rather than blocking the writer.
package observable

import "sync"

// Value holds the current value of T and fans changes out to subscribers
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[chan T]struct{}
}

// New creates a Value holding initial
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[chan T]struct{}),
	}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores val and notifies every subscriber
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setLocked(val)
}

// Update replaces the value with fn(current) atomically and returns the result
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	val := fn(v.current)
	v.setLocked(val)
	return val
}

func (v *Value[T]) setLocked(val T) {
	v.current = val

	for ch := range v.subs {
		// Drop the stale pending value, if any, so the channel holds the latest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- val:
		default:
		}
	}
}

// Subscribe returns a channel primed with the current value and a function
// that unsubscribes and closes it
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- v.current
	v.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			close(ch)
			v.mu.Unlock()
		})
	}
	return ch, cancel
}
