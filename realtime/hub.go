package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/sirupsen/logrus"
)

// Hub tracks connected users and pushes lifecycle events to them. A job's
// client and worker get every event about it. Workers also see new postings.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *logrus.Logger
}

// NewHub creates an empty hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish implements events.Publisher. Slow clients miss messages rather
// than block the caller.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if !interested(c, e) {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			h.log.WithFields(logrus.Fields{"user_id": c.userID, "event": e.Type}).Warn("Realtime buffer full, dropping event")
		}
	}

	h.log.WithFields(logrus.Fields{"event": e.Type, "job_id": e.JobID, "delivered": delivered}).Debug("Realtime event published")
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func interested(c *Client, e events.Event) bool {
	if e.Type == events.JobPosted {
		return c.role == models.RoleWorker
	}
	return c.userID == e.ClientID || (e.WorkerID != 0 && c.userID == e.WorkerID)
}
