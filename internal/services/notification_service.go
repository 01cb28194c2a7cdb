package services

import (
	"context"
	"sync"
	"time"

	"counselmeet/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Notification templates
const (
	TemplateMeetingAssigned     = "meeting_assigned"
	TemplateMeetingTimeSelected = "meeting_time_selected"
	TemplateMeetingConfirmed    = "meeting_confirmed"
	TemplateMeetingCancelled    = "meeting_cancelled"
	TemplateMeetingResolved     = "meeting_resolved"
	TemplateMeetingNoShow       = "meeting_no_show"
)

// Presence channel events
const (
	EventMeetingCreated      = "meeting.created"
	EventMeetingAssigned     = "meeting.assigned"
	EventMeetingTimeSelected = "meeting.time_selected"
	EventMeetingConfirmed    = "meeting.confirmed"
	EventMeetingCancelled    = "meeting.cancelled"
	EventMeetingCompleted    = "meeting.completed"
	EventMeetingResolved     = "meeting.resolved"
	EventPresenceJoined      = "presence.joined"
	EventPresenceLeft        = "presence.left"
)

// UserTopic is the presence topic addressed to a single user
func UserTopic(userID string) string {
	return "user:" + userID
}

// PresencePublisher is the real-time channel. Publish must not block.
type PresencePublisher interface {
	Publish(topic, event string, payload interface{})
}

// Notifier sends fire-and-forget notifications
type Notifier interface {
	Notify(recipient, template string, data map[string]interface{})
}

// Dispatcher delivers one notification through one medium
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient, template string, data map[string]interface{}) error
}

// NotificationService fans a notification out to every dispatcher in the
// background. Failures are logged and never reach the caller.
type NotificationService struct {
	dispatchers []Dispatcher
	timeout     time.Duration
	wg          sync.WaitGroup
}

func NewNotificationService(timeout time.Duration, dispatchers ...Dispatcher) *NotificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{dispatchers: dispatchers, timeout: timeout}
}

func (n *NotificationService) Notify(recipient, template string, data map[string]interface{}) {
	if recipient == "" {
		return
	}
	for _, d := range n.dispatchers {
		n.wg.Add(1)
		go func(d Dispatcher) {
			defer n.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			if err := d.Dispatch(ctx, recipient, template, data); err != nil {
				logger.LogError(err, "notification dispatch failed", map[string]interface{}{
					"recipient": recipient,
					"template":  template,
				})
			}
		}(d)
	}
}

// Wait blocks until in-flight notifications finish
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

// LogDispatcher records notifications in the structured log
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	fields := logrus.Fields{
		"recipient": recipient,
		"template":  template,
		"type":      "notification",
	}
	for k, v := range data {
		fields[k] = v
	}
	logger.WithFields(fields).Info("Notification")
	return nil
}

// PushDispatcher delivers notifications over the presence channel
type PushDispatcher struct {
	Publisher PresencePublisher
}

func (p PushDispatcher) Dispatch(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	p.Publisher.Publish(UserTopic(recipient), "notification."+template, data)
	return nil
}

// nopPublisher drops events
type nopPublisher struct{}

func (nopPublisher) Publish(topic, event string, payload interface{}) {}

// nopNotifier drops notifications
type nopNotifier struct{}

func (nopNotifier) Notify(recipient, template string, data map[string]interface{}) {}
