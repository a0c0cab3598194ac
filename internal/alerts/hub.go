// Package alerts streams accumulation alerts to connected dashboards over
// websockets.
package alerts

import (
	"encoding/json"
	"sync"
	"time"

	"pld/internal/domain"
	"pld/pkg/logger"

	"github.com/gorilla/websocket"
)

// Event is one monitoring alert pushed to subscribers.
type Event struct {
	ClientRFC          string                  `json:"client_rfc"`
	ActivityType       string                  `json:"activity_type"`
	MonitoringStatus   domain.MonitoringStatus `json:"monitoring_status"`
	PercentOfThreshold string                  `json:"percent_of_threshold"`
	AccumulatedAmount  string                  `json:"accumulated_amount"`
	At                 time.Time               `json:"at"`
}

// EventFromAccumulation builds an alert event from a computed accumulation.
func EventFromAccumulation(acc *domain.ClientAccumulation, at time.Time) Event {
	return Event{
		ClientRFC:          acc.ClientRFC,
		ActivityType:       acc.ActivityType,
		MonitoringStatus:   acc.MonitoringStatus,
		PercentOfThreshold: acc.PercentOfThreshold.String(),
		AccumulatedAmount:  acc.AccumulatedAmount.String(),
		At:                 at,
	}
}

// Hub fans alert events out to websocket subscribers. Slow subscribers
// are dropped rather than blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  logger.Logger
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  log,
	}
}

// Subscribe attaches a websocket connection to the hub and pumps events
// until the connection closes.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan Event, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// Publish delivers an event to every subscriber.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Subscriber too slow; it will be detached on write failure.
			h.logger.Warn("Dropping alert for slow subscriber", map[string]interface{}{
				"client_rfc": event.ClientRFC,
				"activity":   event.ActivityType,
			})
		}
	}
}

// PublishAccumulation implements the publisher contract used by the
// operation service and the sweep.
func (h *Hub) PublishAccumulation(acc *domain.ClientAccumulation) {
	h.Publish(EventFromAccumulation(acc, time.Now().UTC()))
}

func (h *Hub) writePump(c *client) {
	defer h.detach(c)

	for event := range c.send {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump discards inbound frames and detects closed connections.
func (h *Hub) readPump(c *client) {
	defer h.detach(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// SubscriberCount reports connected dashboard count, used by /ready.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
