package monitor

import (
	"sync"
	"time"
)

// Event is one scheduler observation, published after each course evaluation
// so staff can follow the engine live.
type Event struct {
	Time   time.Time `json:"time"`
	Course string    `json:"course"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// EventHub fans scheduler events out to subscribers. Publishing never blocks:
// a slow subscriber drops events rather than stalling the polling loop.
type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping on full buffers.
func (h *EventHub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
