package events

import (
	"sync"
)

const defaultBuffer = 16

// Hub fans out values of T to subscribers. Each subscriber owns a buffered
// channel; slow subscribers miss values instead of blocking the publisher.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buf    int
	closed bool
}

func NewHub[T any]() *Hub[T] { return NewHubWithBuffer[T](defaultBuffer) }

func NewHubWithBuffer[T any](buf int) *Hub[T] {
	if buf <= 0 {
		buf = defaultBuffer
	}
	return &Hub[T]{subs: make(map[chan T]struct{}), buf: buf}
}

// Subscribe returns a new channel receiving every published value. The
// channel is closed by Unsubscribe or Close.
func (h *Hub[T]) Subscribe() chan T {
	ch := make(chan T, h.buf)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs[ch] = struct{}{}
	}
	h.mu.Unlock()
	return ch
}

func (h *Hub[T]) Unsubscribe(ch chan T) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers v to every subscriber and returns the number of
// subscribers that dropped it.
func (h *Hub[T]) Publish(v T) int {
	if h == nil {
		return 0
	}
	dropped := 0
	h.mu.RLock()
	for ch := range h.subs {
		// Non-blocking send; drop if subscriber is slow
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()
	return dropped
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone. Later subscribers get a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
