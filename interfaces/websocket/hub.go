// Package websocket is the event fan-out service: it owns the registry
// of live connections and delivers mutation events to the subset that
// matches. There is no broker behind it; delivery is in-process,
// best-effort, at-most-once, with no acknowledgement, retry, or backlog.
// A connection that drops during publication permanently misses the
// event and must re-fetch state on reconnect.
package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/danilohgds/f-system/domain/events"
	"github.com/danilohgds/f-system/pkg/observability"
)

// Delivery contract: an event reaches a connection only when the
// connection belongs to the event's tenant AND its subscribed path
// exactly equals the event's path. Tenant-wide broadcast regardless of
// viewed path is deliberately not offered.

// Hub maintains the connection registry. The registry maps are owned
// exclusively by the Run goroutine; everything reaches them through
// channels, so no lock guards them.
type Hub struct {
	connections map[string]map[*Client]bool // userID -> clients
	paths       map[*Client]string          // client -> subscribed view path

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	broadcast   chan events.Event
	countChecks chan countCheck

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

type subscription struct {
	client *Client
	path   string
}

type countCheck struct {
	userID string
	reply  chan int
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections: make(map[string]map[*Client]bool),
		paths:       make(map[*Client]string),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		subscribe:   make(chan subscription, 64),
		broadcast:   make(chan events.Event, 1024),
		countChecks: make(chan countCheck),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Run starts the hub's event loop. It must run in its own goroutine
// before any connection registers.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			h.subscribeClient(sub.client, sub.path)

		case event := <-h.broadcast:
			h.deliver(event)

		case check := <-h.countChecks:
			check.reply <- len(h.connections[check.userID])
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a connection to the registry.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a connection; safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe records the path the connection currently claims to be
// viewing. One path per connection, last write wins, no history.
func (h *Hub) Subscribe(client *Client, path string) {
	select {
	case h.subscribe <- subscription{client: client, path: path}:
	case <-h.ctx.Done():
	}
}

// Enqueue hands an event to the hub for delivery. A full hub drops the
// event rather than blocking the mutation that produced it.
func (h *Hub) Enqueue(event events.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast queue full, event dropped",
			zap.String("type", string(event.Type)),
			zap.String("path", event.Path),
			zap.String("userID", event.UserID),
		)
		observability.RecordDelivery(0, 1)
	}
}

// ConnectionCount reports the live connections of one tenant.
func (h *Hub) ConnectionCount(userID string) int {
	reply := make(chan int, 1)
	select {
	case h.countChecks <- countCheck{userID: userID, reply: reply}:
		return <-reply
	case <-h.ctx.Done():
		return 0
	}
}

func (h *Hub) registerClient(client *Client) {
	if h.connections[client.userID] == nil {
		h.connections[client.userID] = make(map[*Client]bool)
	}
	h.connections[client.userID][client] = true
	observability.ConnectionOpened()

	h.logger.Info("Client registered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("userConnections", len(h.connections[client.userID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.connections[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	delete(h.paths, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.connections, client.userID)
	}
	observability.ConnectionClosed()

	h.logger.Info("Client unregistered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("remainingConnections", len(clients)),
	)
}

func (h *Hub) subscribeClient(client *Client, path string) {
	if clients, ok := h.connections[client.userID]; !ok || !clients[client] {
		return
	}
	h.paths[client] = path

	h.logger.Debug("Client subscribed",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.String("path", path),
	)
}

// deliver sends the event to every connection of the tenant whose
// subscribed path equals the event path. A connection whose send buffer
// is full is marked for removal rather than blocking the loop.
func (h *Hub) deliver(event events.Event) {
	clients := h.connections[event.UserID]
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		return
	}

	sent, dropped := 0, 0
	for client := range clients {
		path, subscribed := h.paths[client]
		if !subscribed || path != event.Path {
			continue
		}

		select {
		case client.send <- payload:
			sent++
		default:
			dropped++
			h.logger.Warn("Client send buffer full, closing",
				zap.String("userID", client.userID),
				zap.String("connectionID", client.id),
			)
			go client.closeSlow()
		}
	}
	observability.RecordDelivery(sent, dropped)

	h.logger.Debug("Event delivered",
		zap.String("type", string(event.Type)),
		zap.String("path", event.Path),
		zap.String("userID", event.UserID),
		zap.Int("sent", sent),
		zap.Int("dropped", dropped),
	)
}

func (h *Hub) closeAllConnections() {
	for userID, clients := range h.connections {
		for client := range clients {
			close(client.send)
			delete(h.paths, client)
			client.closeConn()
			observability.ConnectionClosed()
		}
		delete(h.connections, userID)
	}
	h.logger.Info("All connections closed")
}
