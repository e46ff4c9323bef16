package ports

import "github.com/eleven-am/poanet/internal/domain"

type EventPublisher interface {
	Publish(event domain.Event)
}

type EventHandler func(event domain.Event)

type EventBus interface {
	EventPublisher
	Subscribe(kind domain.EventKind, handler EventHandler) (unsubscribe func())
	SubscribeAll(handler EventHandler) (unsubscribe func())
}
