package sse

import "sync"

// bus keeps one channel per connected client and fans messages out to them
type bus[T any] struct {
	chs map[chan T]struct{}
	mu  sync.RWMutex
}

func newBus[T any]() *bus[T] {
	return &bus[T]{chs: make(map[chan T]struct{})}
}

func (b *bus[T]) register(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chs[ch] = struct{}{}
}

// unregister is a no-op for channels that were never registered
func (b *bus[T]) unregister(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.chs, ch)
}

func (b *bus[T]) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chs = make(map[chan T]struct{})
}

func (b *bus[T]) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.chs)
}

// publish delivers message to every registered channel that has room for it
// and returns how many clients had to skip it
func (b *bus[T]) publish(message T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	skipped := 0
	for ch := range b.chs {
		select {
		case ch <- message:
		default:
			skipped++
		}
	}
	return skipped
}
