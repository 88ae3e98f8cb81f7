package streaming

import (
	"context"
	"slices"
	"sync"
)

const subscriberBuffer = 32

type subscription struct {
	ch     chan Event
	filter Filter
}

// MemoryHub is an in-process Hub. Publishing never blocks: a subscriber whose
// buffer is full misses the event.
type MemoryHub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	next   uint64
	closed bool
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]*subscription)}
}

// Publish delivers event to every matching subscriber.
func (h *MemoryHub) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *MemoryHub) Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}, nil
	}
	h.next++
	id := h.next
	h.subs[id] = &subscription{ch: ch, filter: filter}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions receive a closed channel.
func (h *MemoryHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.closed = true
}

func (f Filter) matches(e Event) bool {
	if f.WorkflowID != "" && f.WorkflowID != e.WorkflowID {
		return false
	}
	return len(f.Types) == 0 || slices.Contains(f.Types, e.Type)
}
