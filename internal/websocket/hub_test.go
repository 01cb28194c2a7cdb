package websocket

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"counselmeet/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func receive(t *testing.T, c *Client) *WSMessage {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return nil
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesEveryConnectionOfUser(t *testing.T) {
	h := startHub(t)
	phone := NewClient(nil, h, "u1", "client")
	laptop := NewClient(nil, h, "u1", "client")
	other := NewClient(nil, h, "u2", "counselor")
	for _, c := range []*Client{phone, laptop, other} {
		h.Register(c)
		if msg := receive(t, c); msg.Type != MessageTypeSuccess {
			t.Fatalf("welcome = %+v", msg)
		}
	}

	h.Publish("user:u1", "meeting.confirmed", map[string]string{"meeting_id": "m1"})

	for _, c := range []*Client{phone, laptop} {
		msg := receive(t, c)
		if msg.Type != MessageTypeEvent || msg.Event != "meeting.confirmed" || msg.Topic != "user:u1" {
			t.Fatalf("event = %+v", msg)
		}
	}
	expectNothing(t, other)

	if !h.IsUserOnline("u1") || len(h.GetOnlineUsers()) != 2 {
		t.Fatalf("online = %v", h.GetOnlineUsers())
	}
	if stats := h.GetStats(); stats.TotalClients != 3 || stats.OnlineUsers != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBroadcastAndUnknownTopics(t *testing.T) {
	h := startHub(t)
	a := NewClient(nil, h, "a", "client")
	b := NewClient(nil, h, "b", "counselor")
	h.Register(a)
	h.Register(b)
	receive(t, a)
	receive(t, b)

	h.Publish("room:42", "ignored", nil)
	h.Publish(BroadcastTopic, "maintenance", nil)
	if msg := receive(t, a); msg.Event != "maintenance" {
		t.Fatalf("a got %+v", msg)
	}
	if msg := receive(t, b); msg.Event != "maintenance" {
		t.Fatalf("b got %+v", msg)
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := startHub(t)
	c := NewClient(nil, h, "u1", "client")
	h.Register(c)
	receive(t, c)

	h.Unregister(c)
	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("unexpected message after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	if h.IsUserOnline("u1") {
		t.Fatal("user still online")
	}

	// publishing to an offline user is a no-op
	h.Publish("user:u1", "meeting.cancelled", nil)
	h.Unregister(c)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t)
	c := NewClient(nil, h, "slow", "client")
	h.Register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		h.BroadcastTo("slow", NewWSMessage(MessageTypeEvent, "", i))
	}

	deadline := time.After(time.Second)
	for h.IsUserOnline("slow") {
		select {
		case <-deadline:
			t.Fatal("slow client was never dropped")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if h.GetStats().Dropped == 0 {
		t.Fatal("drop not counted")
	}
}

func TestRegisterAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan bool)
	go func() {
		c := NewClient(nil, h, "late", "client")
		registered := h.Register(c)
		h.Unregister(c)
		done <- registered
	}()
	select {
	case registered := <-done:
		if registered {
			t.Fatal("Register reported success on a stopped hub")
		}
	case <-time.After(time.Second):
		t.Fatal("Register blocked on a stopped hub")
	}
}

func TestMessageValidate(t *testing.T) {
	if err := (&WSMessage{}).Validate(); err == nil {
		t.Fatal("empty type accepted")
	}
	if err := (&WSMessage{Type: MessageTypeEvent}).Validate(); err == nil {
		t.Fatal("clients must not push events")
	}
	if err := (&WSMessage{Type: MessageTypeHeartbeat}).Validate(); err != nil {
		t.Fatalf("heartbeat rejected: %v", err)
	}
}
