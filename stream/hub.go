package stream

import (
	"fmt"
	"sync"

	"github.com/maypok86/otter"
)

const defaultBufferedThreads = 1000

// Hub fans out per-thread items to subscribers as they are produced. Items
// published before a subscriber attaches are buffered and replayed, so a
// display surface can attach mid-turn without losing entries.
type Hub[T any] struct {
	buffer      *otter.Cache[string, []T]
	subscribers map[string][]chan T
	mu          sync.Mutex
}

func NewHub[T any]() (*Hub[T], error) {
	buffer, err := otter.MustBuilder[string, []T](defaultBufferedThreads).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build hub buffer: %w", err)
	}

	return &Hub[T]{
		buffer:      &buffer,
		subscribers: make(map[string][]chan T),
	}, nil
}

// Publish appends one item to the thread's replay buffer and delivers it to
// current subscribers. Slow subscribers are skipped rather than blocking the
// publisher.
func (h *Hub[T]) Publish(threadID string, item T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	items, _ := h.buffer.Get(threadID)
	h.buffer.Set(threadID, append(items, item))

	for _, ch := range h.subscribers[threadID] {
		select {
		case ch <- item:
		default:
		}
	}
}

// Subscribe attaches to a thread and replays everything published so far.
// The returned cancel function must be called to release the subscription.
func (h *Hub[T]) Subscribe(threadID string) (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buffered, _ := h.buffer.Get(threadID)
	ch := make(chan T, len(buffered)+64)
	for _, item := range buffered {
		ch <- item
	}
	h.subscribers[threadID] = append(h.subscribers[threadID], ch)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[threadID]
		for i, sub := range subs {
			if sub == ch {
				h.subscribers[threadID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}

	return ch, cancel
}

// Drop discards the replay buffer of a finished thread.
func (h *Hub[T]) Drop(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer.Delete(threadID)
}
