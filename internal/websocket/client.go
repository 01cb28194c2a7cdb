package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"counselmeet/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024

	// Buffer size for client send channel
	sendBufferSize = 64

	// Inbound messages allowed per minute
	messageLimit = 60
)

var newline = []byte{'\n'}

var errSendBufferFull = errors.New("client send buffer full")

// Client is one WebSocket connection of an authenticated user
type Client struct {
	// WebSocket connection
	Conn *websocket.Conn

	// Hub that manages this client
	Hub *Hub

	// Buffered channel of outbound messages, owned by the hub
	Send chan []byte

	// Client information
	ID        string
	UserID    string
	Role      string
	IP        string
	UserAgent string

	ConnectedAt time.Time

	// Synchronization
	mu           sync.Mutex
	lastPongAt   time.Time
	messageCount int
	windowStart  time.Time
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *Hub, userID, role string) *Client {
	now := time.Now()
	return &Client{
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan []byte, sendBufferSize),
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		ConnectedAt: now,
		lastPongAt:  now,
		windowStart: now,
	}
}

// ReadPump reads client frames until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		c.logDisconnection()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.logConnection()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithFields(map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				}).Error("WebSocket read error")
			}
			break
		}

		if !c.checkRateLimit() {
			c.sendError("Rate limit exceeded")
			continue
		}

		msg, err := FromJSON(raw)
		if err != nil {
			c.sendError(fmt.Sprintf("Invalid message format: %v", err))
			continue
		}
		if err := msg.Validate(); err != nil {
			c.sendError(err.Error())
			continue
		}
		c.handleHeartbeat()
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current frame
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue is only called from the hub goroutine, which also owns closing Send
func (c *Client) enqueue(msg *WSMessage) error {
	data, err := msg.ToJSON()
	if err != nil {
		return err
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) handleHeartbeat() {
	c.touch()
	c.Hub.sendTo(c, NewWSMessage(MessageTypeHeartbeat, "", map[string]interface{}{
		"server_time": time.Now(),
		"uptime":      time.Since(c.ConnectedAt).Seconds(),
	}))
}

func (c *Client) sendError(message string) {
	c.Hub.sendTo(c, NewWSMessage(MessageTypeError, message, nil))
}

// checkRateLimit allows messageLimit inbound frames per minute
func (c *Client) checkRateLimit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.windowStart) > time.Minute {
		c.windowStart = now
		c.messageCount = 0
	}
	c.messageCount++
	return c.messageCount <= messageLimit
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) lastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPongAt
}

// logConnection logs client connection
func (c *Client) logConnection() {
	logger.LogUserAction(c.UserID, "websocket_connected", map[string]interface{}{
		"connection_id": c.ID,
		"ip":            c.IP,
		"user_agent":    c.UserAgent,
		"role":          c.Role,
	})
}

// logDisconnection logs client disconnection
func (c *Client) logDisconnection() {
	logger.LogUserAction(c.UserID, "websocket_disconnected", map[string]interface{}{
		"connection_id":    c.ID,
		"duration_seconds": time.Since(c.ConnectedAt).Seconds(),
	})
}
