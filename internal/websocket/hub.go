package websocket

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"counselmeet/pkg/logger"
)

const (
	// userTopicPrefix addresses every connection of one user
	userTopicPrefix = "user:"

	// BroadcastTopic addresses every connection
	BroadcastTopic = "broadcast"

	// outboxSize bounds queued deliveries; Publish drops beyond it
	outboxSize = 1024
)

// delivery is one queued message. A nil client with an empty userID
// means every connection.
type delivery struct {
	userID  string
	client  *Client
	message *WSMessage
}

// Hub is the presence registry: it owns userID -> connections and pushes
// events to them from a single goroutine
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients organized by user ID; a user may hold several connections
	userClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	outbox     chan delivery
	done       chan struct{}

	stats *HubStats

	// Synchronization
	mu sync.RWMutex
}

// HubStats contains hub statistics
type HubStats struct {
	TotalClients int       `json:"total_clients"`
	OnlineUsers  int       `json:"online_users"`
	Delivered    int64     `json:"delivered"`
	Dropped      int64     `json:"dropped"`
	LastUpdated  time.Time `json:"last_updated"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		outbox:      make(chan delivery, outboxSize),
		done:        make(chan struct{}),
		stats:       &HubStats{LastUpdated: time.Now()},
	}
}

// Run owns the registry until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	cleanupTimer := time.NewTicker(time.Minute)
	defer cleanupTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case d := <-h.outbox:
			h.deliver(d)

		case <-cleanupTimer.C:
			h.cleanupInactiveConnections()
		}
	}
}

// Register adds a connection to the registry. It reports false once the
// hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for topic without blocking. Topics are
// "user:<id>" or BroadcastTopic; anything else is dropped.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	msg := NewEventMessage(topic, event, payload)
	switch {
	case strings.HasPrefix(topic, userTopicPrefix):
		h.enqueue(delivery{userID: strings.TrimPrefix(topic, userTopicPrefix), message: msg})
	case topic == BroadcastTopic:
		h.enqueue(delivery{message: msg})
	default:
		logger.Debugf("websocket: dropping event %s for unknown topic %q", event, topic)
	}
}

// BroadcastTo sends message to every connection of userID
func (h *Hub) BroadcastTo(userID string, message *WSMessage) {
	if userID == "" {
		return
	}
	h.enqueue(delivery{userID: userID, message: message})
}

// sendTo queues a reply for a single connection
func (h *Hub) sendTo(client *Client, message *WSMessage) {
	h.enqueue(delivery{client: client, message: message})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbox <- d:
	default:
		h.mu.Lock()
		h.stats.Dropped++
		h.mu.Unlock()
		logger.Warnf("websocket: outbox full, dropping %s message", d.message.Type)
	}
}

// registerClient registers a new client
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	h.updateStats()
	total := len(h.clients)
	h.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"user_id":       client.UserID,
		"connection_id": client.ID,
		"total_clients": total,
	}).Info("Client registered")

	h.send(client, NewWSMessage(MessageTypeSuccess, "Connected successfully", map[string]interface{}{
		"connection_id": client.ID,
		"server_time":   time.Now(),
	}))
}

// unregisterClient unregisters a client
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns := h.userClients[client.UserID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	close(client.Send)
	h.updateStats()

	logger.WithFields(map[string]interface{}{
		"user_id":       client.UserID,
		"connection_id": client.ID,
		"total_clients": len(h.clients),
	}).Info("Client unregistered")
}

func (h *Hub) deliver(d delivery) {
	var targets []*Client
	h.mu.RLock()
	switch {
	case d.client != nil:
		if h.clients[d.client] {
			targets = append(targets, d.client)
		}
	case d.userID != "":
		for c := range h.userClients[d.userID] {
			targets = append(targets, c)
		}
	default:
		for c := range h.clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, d.message)
	}
}

// send writes to one client's buffer; a client that cannot keep up is
// disconnected
func (h *Hub) send(client *Client, message *WSMessage) {
	if err := client.enqueue(message); err != nil {
		logger.WithFields(map[string]interface{}{
			"user_id":       client.UserID,
			"connection_id": client.ID,
			"error":         err.Error(),
		}).Warn("Dropping slow client")
		h.unregisterClient(client)
		h.mu.Lock()
		h.stats.Dropped++
		h.mu.Unlock()
		return
	}
	h.mu.Lock()
	h.stats.Delivered++
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[*Client]bool)
	h.userClients = make(map[string]map[*Client]bool)
	h.updateStats()
}

// updateStats must be called with h.mu held
func (h *Hub) updateStats() {
	h.stats.TotalClients = len(h.clients)
	h.stats.OnlineUsers = len(h.userClients)
	h.stats.LastUpdated = time.Now()
}

// GetStats returns a snapshot of the hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return *h.stats
}

// GetOnlineUsers returns the ids of users with at least one connection
func (h *Hub) GetOnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// IsUserOnline checks if a user has a live connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

// cleanupInactiveConnections removes connections that stopped answering pings
func (h *Hub) cleanupInactiveConnections() {
	h.mu.RLock()
	inactiveClients := make([]*Client, 0)
	for client := range h.clients {
		if client.Conn != nil && time.Since(client.lastPong()) > pongWait {
			inactiveClients = append(inactiveClients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range inactiveClients {
		logger.WithFields(map[string]interface{}{
			"user_id":   client.UserID,
			"last_pong": client.lastPong(),
		}).Info("Removing inactive client")
		h.unregisterClient(client)
	}
}
