package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub tracks the live websocket connections on this node, grouped by user.
// One user may hold several connections (tabs, devices); every one of them receives the user's events.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	seq atomic.Int64
	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes connection (un)registration until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.Shutdown()
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	h.log.Debug("ws client connected", "user_id", client.userID, "connections", len(h.clients[client.userID]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	h.log.Debug("ws client disconnected", "user_id", client.userID, "remaining", len(clients))
}

// Register hands a connection to the Run loop. It returns false once the hub is shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver sends one event to every connection of userID on this node.
// A connection whose buffer is full is dropped; the client reconnects and re-reads state.
func (h *Hub) Deliver(userID, op string, data any) int {
	env := Envelope{Op: op, Data: data, Seq: h.seq.Add(1)}
	raw, err := json.Marshal(env)
	if err != nil {
		h.log.Error("ws marshal failed", "op", op, "err", err)
		return 0
	}
	return h.deliverRaw(userID, raw)
}

func (h *Hub) deliverRaw(userID string, raw []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- raw:
			n++
		default:
			h.log.Warn("ws send buffer full, dropping connection", "user_id", userID)
			go h.Unregister(client)
		}
	}
	return n
}

// Publish implements notify.Bus for single-node deployments.
func (h *Hub) Publish(_ context.Context, userID, event string, payload any) error {
	h.Deliver(userID, event, payload)
	return nil
}

func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// Shutdown closes every connection's send channel; the write pumps then close the sockets.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for _, clients := range h.clients {
			for client := range clients {
				close(client.send)
			}
		}
		h.clients = make(map[string]map[*Client]bool)
		h.log.Info("ws hub shut down")
	})
}
