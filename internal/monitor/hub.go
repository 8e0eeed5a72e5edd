package monitor

import (
	"sync"

	"github.com/kstaniek/dccl-acomms/internal/logging"
	"github.com/kstaniek/dccl-acomms/internal/metrics"
)

// BackpressurePolicy selects what Broadcast does when a client's outbound
// buffer is full.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Client is one connected observer's outbound event buffer.
type Client struct {
	Out       chan Event
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

// Hub fans Events out to every connected Client.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// NewHub creates an empty Hub.
func NewHub() *Hub { return &Hub{clients: make(map[*Client]struct{})} }

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	prev := len(h.clients)
	h.clients[c] = struct{}{}
	cur := len(h.clients)
	h.mu.Unlock()
	if prev == 0 && cur == 1 {
		logging.L().Info("monitor_clients_first_connected")
	}
}

// Remove unregisters a client; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	if existed {
		delete(h.clients, c)
	}
	cur := len(h.clients)
	h.mu.Unlock()
	select {
	case <-c.Closed:
	default:
		c.Close()
	}
	metrics.SetMonitorClients(cur)
	if existed && cur == 0 {
		logging.L().Info("monitor_clients_last_disconnected")
	}
}

// Broadcast delivers e to every connected client, honoring the
// backpressure policy on a full buffer.
func (h *Hub) Broadcast(e Event) {
	clients := h.Snapshot()
	for _, c := range clients {
		select {
		case c.Out <- e:
		default:
			if h.Policy == PolicyKick {
				c.Close()
			} else {
				metrics.IncMonitorDrop()
			}
		}
	}
}

// Snapshot returns a slice copy of current clients.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	return clients
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
