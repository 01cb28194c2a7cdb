package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType represents different types of WebSocket messages
type MessageType string

const (
	// Server push of a meeting or presence event
	MessageTypeEvent MessageType = "event"

	// System message types
	MessageTypeSuccess   MessageType = "success"
	MessageTypeError     MessageType = "error"
	MessageTypeHeartbeat MessageType = "heartbeat"
)

// WSMessage is the envelope of every frame sent over the presence channel
type WSMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	Topic     string      `json:"topic,omitempty"`
	Content   string      `json:"content,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewWSMessage creates a new WebSocket message
func NewWSMessage(msgType MessageType, content string, data interface{}) *WSMessage {
	return &WSMessage{
		ID:        generateMessageID(),
		Type:      msgType,
		Content:   content,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewEventMessage wraps a published event
func NewEventMessage(topic, event string, payload interface{}) *WSMessage {
	msg := NewWSMessage(MessageTypeEvent, "", payload)
	msg.Topic = topic
	msg.Event = event
	return msg
}

// ToJSON converts message to JSON bytes
func (msg *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(msg)
}

// FromJSON creates message from JSON bytes
func FromJSON(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// Validate checks a message received from a client. The channel is
// server-push only; clients may just send heartbeats.
func (msg *WSMessage) Validate() error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}
	if msg.Type != MessageTypeHeartbeat {
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
	return nil
}

func generateMessageID() string {
	return uuid.NewString()
}
