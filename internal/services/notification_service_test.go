package services

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	got  []string
	fail bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	d.mu.Lock()
	d.got = append(d.got, recipient+":"+template)
	d.mu.Unlock()
	if d.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestNotificationServiceFansOut(t *testing.T) {
	ok := &recordingDispatcher{}
	broken := &recordingDispatcher{fail: true}
	n := NewNotificationService(0, ok, broken, LogDispatcher{})

	n.Notify("u1", TemplateMeetingConfirmed, map[string]interface{}{"meeting_id": "m1"})
	n.Notify("", TemplateMeetingConfirmed, nil)
	n.Wait()

	if len(ok.got) != 1 || ok.got[0] != "u1:"+TemplateMeetingConfirmed {
		t.Fatalf("dispatched = %v", ok.got)
	}
	if len(broken.got) != 1 {
		t.Fatalf("failing dispatcher called %d times", len(broken.got))
	}
}

func TestPushDispatcherPublishesToUserTopic(t *testing.T) {
	pub := &recordingPublisher{}
	d := PushDispatcher{Publisher: pub}
	if err := d.Dispatch(context.Background(), "u1", TemplateMeetingCancelled, nil); err != nil {
		t.Fatal(err)
	}
	if !pub.has("user:u1", "notification."+TemplateMeetingCancelled) {
		t.Fatalf("events = %+v", pub.events)
	}
}
