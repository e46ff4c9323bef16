package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

type subscription struct {
	id      string
	kind    domain.EventKind
	handler ports.EventHandler
}

// Bus delivers events synchronously to subscribers in registration order.
// Handlers run outside the bus lock and may subscribe or unsubscribe.
type Bus struct {
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions []subscription
}

func NewBus(logger hclog.Logger) *Bus {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Bus{logger: logger.Named("events")}
}

func (b *Bus) Subscribe(kind domain.EventKind, handler ports.EventHandler) func() {
	return b.add(kind, handler)
}

func (b *Bus) SubscribeAll(handler ports.EventHandler) func() {
	return b.add("", handler)
}

func (b *Bus) add(kind domain.EventKind, handler ports.EventHandler) func() {
	id := uuid.New().String()

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, subscription{id: id, kind: kind, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i], b.subscriptions[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	handlers := make([]ports.EventHandler, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.kind == "" || sub.kind == event.Kind() {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	b.logger.Trace("publishing event", "kind", event.Kind(), "subscribers", len(handlers))

	for _, handler := range handlers {
		b.dispatch(handler, event)
	}
}

func (b *Bus) dispatch(handler ports.EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", event.Kind(), "panic", r)
		}
	}()
	handler(event)
}

// Channel subscribes to kind and forwards events to a buffered channel.
// Events are dropped when the buffer is full.
func (b *Bus) Channel(kind domain.EventKind, size int) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, size)
	var mu sync.Mutex
	closed := false

	unsubscribe := b.add(kind, func(event domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- event:
		default:
			b.logger.Warn("event channel full, dropping event", "kind", event.Kind())
		}
	})

	return ch, func() {
		unsubscribe()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}
