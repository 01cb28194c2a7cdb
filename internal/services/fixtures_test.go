package services

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"counselmeet/internal/clock"
	"counselmeet/internal/config"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var (
	// Monday 09:00 UTC; meetings below are booked two days ahead
	testNow     = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	meetingDate = "2026-03-04"
	meetingTime = "10:00"
	meetingAt   = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	admin     = models.Principal{UserID: "admin-1", Role: models.RoleAdmin}
	counselor = models.Principal{UserID: "c1", Role: models.RoleCounselor}
)

func clientPrincipal(id string) models.Principal {
	return models.Principal{UserID: id, Role: models.RoleClient}
}

func testPolicy() config.MeetingsConfig {
	return config.MeetingsConfig{
		SlotInterval:       time.Hour,
		MinAdvanceNotice:   24 * time.Hour,
		ResponseWindow:     15 * time.Hour,
		GracePeriod:        15 * time.Minute,
		OverdueAfter:       time.Hour,
		DefaultDuration:    45,
		JoinLeadTime:       5 * time.Minute,
		ReconcileInterval:  time.Minute,
		ReconcileBatchSize: 50,
	}
}

// fakeVideo records provider calls and can be told to fail
type fakeVideo struct {
	mu      sync.Mutex
	fail    bool
	barrier *sync.WaitGroup
	rooms   map[string]bool
	deleted []string
	tokens  []TokenRequest
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{rooms: make(map[string]bool)}
}

func (f *fakeVideo) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

// holdCreates makes CreateRoom wait until n callers are inside it
func (f *fakeVideo) holdCreates(n int) {
	f.mu.Lock()
	f.barrier = &sync.WaitGroup{}
	f.barrier.Add(n)
	f.mu.Unlock()
}

func (f *fakeVideo) CreateRoom(ctx context.Context, meetingID string, scheduledAt time.Time, duration time.Duration) (*Room, error) {
	f.mu.Lock()
	barrier := f.barrier
	f.mu.Unlock()
	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	name := RoomName(meetingID)
	f.rooms[name] = true
	return &Room{Name: name, URL: "https://test.daily.co/" + name}, nil
}

func (f *fakeVideo) CreateToken(ctx context.Context, req TokenRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("provider unavailable")
	}
	f.tokens = append(f.tokens, req)
	return "token-" + req.UserID, nil
}

func (f *fakeVideo) DeleteRoom(ctx context.Context, roomName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomName)
	f.deleted = append(f.deleted, roomName)
	return nil
}

func (f *fakeVideo) deletedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeVideo) roomCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

type published struct {
	topic string
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(topic, event string, payload interface{}) {
	p.mu.Lock()
	p.events = append(p.events, published{topic: topic, event: event})
	p.mu.Unlock()
}

func (p *recordingPublisher) has(topic, event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.topic == topic && e.event == event {
			return true
		}
	}
	return false
}

type sent struct {
	recipient string
	template  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Notify(recipient, template string, data map[string]interface{}) {
	if recipient == "" {
		return
	}
	n.mu.Lock()
	n.sent = append(n.sent, sent{recipient: recipient, template: template})
	n.mu.Unlock()
}

func (n *recordingNotifier) count(recipient, template string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.recipient == recipient && s.template == template {
			c++
		}
	}
	return c
}

type harness struct {
	stores     repository.Stores
	clock      *clock.FakeClock
	video      *fakeVideo
	presence   *recordingPublisher
	notifier   *recordingNotifier
	ratings    *RatingService
	svc        *MeetingService
	reconciler *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		stores:   repository.NewMemory(),
		clock:    clock.Fake(testNow),
		video:    newFakeVideo(),
		presence: &recordingPublisher{},
		notifier: &recordingNotifier{},
	}
	h.saveCounselor(t, &models.Counselor{
		ID:           "c1",
		DisplayName:  "Counselor One",
		IsActive:     true,
		WorkingHours: models.WorkingHours{Start: "09:00", End: "17:00", Timezone: "UTC"},
	})

	policy := testPolicy()
	h.ratings = NewRatingService(h.stores, h.clock)
	h.svc = NewMeetingService(MeetingServiceDeps{
		Stores:   h.stores,
		Slots:    NewSlotService(h.stores.Meetings, h.stores.Counselors, policy.SlotInterval, policy.MinAdvanceNotice),
		Ratings:  h.ratings,
		Video:    h.video,
		Notifier: h.notifier,
		Presence: h.presence,
		Clock:    h.clock,
		Policy:   policy,
	})
	h.reconciler = NewReconciler(h.svc, policy.ReconcileInterval, policy.OverdueAfter, policy.ReconcileBatchSize)
	return h
}

func (h *harness) saveCounselor(t *testing.T, c *models.Counselor) {
	t.Helper()
	if err := h.stores.Counselors.Save(context.Background(), c); err != nil {
		t.Fatalf("save counselor: %v", err)
	}
}

func (h *harness) counselorStats(t *testing.T, id string) *models.Counselor {
	t.Helper()
	c, err := h.stores.Counselors.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load counselor %s: %v", id, err)
	}
	return c
}

func (h *harness) meeting(t *testing.T, id primitive.ObjectID) *models.Meeting {
	t.Helper()
	m, err := h.stores.Meetings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load meeting: %v", err)
	}
	return m
}

// book creates a meeting for clientID and assigns it to c1
func (h *harness) book(t *testing.T, clientID string, kind models.MeetingType) *models.Meeting {
	t.Helper()
	ctx := context.Background()
	m, err := h.svc.InitiateBooking(ctx, clientPrincipal(clientID), BookingRequest{
		MeetingType:      kind,
		IssueDescription: "I would like to talk about stress at work",
	})
	if err != nil {
		t.Fatalf("InitiateBooking: %v", err)
	}
	if m.Status == models.StatusCounselorAssigned {
		return m
	}
	m, err = h.svc.AssignCounselor(ctx, admin, m.ID, "c1")
	if err != nil {
		t.Fatalf("AssignCounselor: %v", err)
	}
	return m
}

// confirm books, selects the standard slot and accepts it
func (h *harness) confirm(t *testing.T, clientID string, kind models.MeetingType) *models.Meeting {
	t.Helper()
	ctx := context.Background()
	m := h.book(t, clientID, kind)
	if _, err := h.svc.SelectTime(ctx, clientPrincipal(clientID), m.ID, meetingDate, meetingTime); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}
	m, err := h.svc.AcceptMeeting(ctx, counselor, m.ID)
	if err != nil {
		t.Fatalf("AcceptMeeting: %v", err)
	}
	return m
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %q (%v), want %s", got, err, kind)
	}
}
