package api

import (
	"sync"
)

// SSEEvent is one corridor event fanned out to stream subscribers.
type SSEEvent struct {
	Type string
	Data map[string]any
}

// EventBroker fans corridor events out to SSE/websocket subscribers.
type EventBroker interface {
	Subscribe(corridorID string) chan SSEEvent
	Unsubscribe(corridorID string, ch chan SSEEvent)
	Publish(corridorID string, evt SSEEvent)
}

// Broker is the in-process fan-out used when no REDIS_URL is set.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // corridorId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(corridorID string) chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	b.mu.Lock()
	if b.subs[corridorID] == nil {
		b.subs[corridorID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[corridorID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(corridorID string, ch chan SSEEvent) {
	b.mu.Lock()
	if m := b.subs[corridorID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, corridorID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(corridorID string, evt SSEEvent) {
	b.mu.Lock()
	m := b.subs[corridorID]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
