package websocket

import (
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/events"
)

// Broadcaster adapts the hub to the application's EventPublisher port.
// Publishing never blocks and never fails the triggering mutation: a
// saturated hub drops the event.
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger,
	}
}

var _ ports.EventPublisher = (*Broadcaster)(nil)

// Publish fans the event out to matching connections of the tenant.
func (b *Broadcaster) Publish(event events.Event) {
	b.hub.Enqueue(event)
}
