package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"counselmeet/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }

func newAssignedMeeting(t *testing.T, r MeetingRepository, clientID, counselorID string) *models.Meeting {
	t.Helper()
	m := &models.Meeting{
		ClientID:    clientID,
		CounselorID: counselorID,
		MeetingType: models.MeetingTypeVirtual,
		Status:      models.StatusCounselorAssigned,
		CreatedAt:   time.Now(),
	}
	if err := r.Create(context.Background(), m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func selectSlot(r MeetingRepository, m *models.Meeting, date, clock string) (*models.Meeting, error) {
	return r.Transition(context.Background(), m.ID, []models.MeetingStatus{models.StatusCounselorAssigned}, MeetingChanges{
		Status:      models.StatusTimeSelected,
		MeetingDate: strPtr(date),
		MeetingTime: strPtr(clock),
		SlotHold:    strPtr(models.SlotKey(m.CounselorID, date, clock)),
	})
}

func TestTransitionRequiresExpectedStatus(t *testing.T) {
	r := NewMemoryMeetings()
	m := newAssignedMeeting(t, r, "client", "c1")

	_, err := r.Transition(context.Background(), m.ID, []models.MeetingStatus{models.StatusTimeSelected}, MeetingChanges{Status: models.StatusConfirmed})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
	got, _ := r.GetByID(context.Background(), m.ID)
	if got.Status != models.StatusCounselorAssigned {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestTransitionUnknownMeeting(t *testing.T) {
	r := NewMemoryMeetings()
	m := &models.Meeting{}
	_, err := selectSlot(r, m, "2026-03-10", "10:00")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSlotSelectionHasOneWinner(t *testing.T) {
	r := NewMemoryMeetings()
	const n = 20
	meetings := make([]*models.Meeting, n)
	for i := range meetings {
		meetings[i] = newAssignedMeeting(t, r, "client", "c1")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for _, m := range meetings {
		wg.Add(1)
		go func(m *models.Meeting) {
			defer wg.Done()
			_, err := selectSlot(r, m, "2026-03-10", "10:00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrSlotTaken):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(m)
	}
	wg.Wait()

	if winners != 1 || conflict != n-1 {
		t.Fatalf("winners=%d conflicts=%d", winners, conflict)
	}
	held, _ := r.HeldSlots(context.Background(), "c1", "2026-03-10")
	if len(held) != 1 || held[0] != "10:00" {
		t.Fatalf("held = %v", held)
	}
}

func TestTerminalTransitionReleasesSlot(t *testing.T) {
	r := NewMemoryMeetings()
	first := newAssignedMeeting(t, r, "a", "c1")
	if _, err := selectSlot(r, first, "2026-03-10", "10:00"); err != nil {
		t.Fatalf("select: %v", err)
	}
	cancelled, err := r.Transition(context.Background(), first.ID, []models.MeetingStatus{models.StatusTimeSelected}, MeetingChanges{
		Status:             models.StatusCancelled,
		CancellationReason: strPtr("changed plans"),
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.SlotHold != "" {
		t.Fatalf("slot hold kept after cancel: %q", cancelled.SlotHold)
	}

	second := newAssignedMeeting(t, r, "b", "c1")
	if _, err := selectSlot(r, second, "2026-03-10", "10:00"); err != nil {
		t.Fatalf("slot not released: %v", err)
	}
}

func TestSetPresenceOnlyWhenConfirmed(t *testing.T) {
	r := NewMemoryMeetings()
	m := newAssignedMeeting(t, r, "a", "c1")
	if _, err := r.SetPresence(context.Background(), m.ID, ClientParticipant, true, time.Now()); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v", err)
	}
	if _, err := selectSlot(r, m, "2026-03-10", "10:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Transition(context.Background(), m.ID, []models.MeetingStatus{models.StatusTimeSelected}, MeetingChanges{Status: models.StatusConfirmed}); err != nil {
		t.Fatal(err)
	}
	got, err := r.SetPresence(context.Background(), m.ID, CounselorParticipant, true, time.Now())
	if err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if !got.CounselorJoined || got.ClientJoined {
		t.Fatalf("flags = client:%v counselor:%v", got.ClientJoined, got.CounselorJoined)
	}
}

func TestLatestCounselorForClient(t *testing.T) {
	r := NewMemoryMeetings()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		counselor string
		status    models.MeetingStatus
	}{
		{"old", models.StatusCompleted},
		{"recent", models.StatusConfirmed},
		{"cancelled", models.StatusCancelled},
	} {
		m := &models.Meeting{ClientID: "client", CounselorID: tc.counselor, Status: tc.status, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := r.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.LatestCounselorForClient(ctx, "client")
	if err != nil || got != "recent" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := r.LatestCounselorForClient(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestReconcilerQueries(t *testing.T) {
	r := NewMemoryMeetings()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	expired := &models.Meeting{Status: models.StatusConfirmed, GraceActive: true, GraceEndTime: &past, MeetingDate: "2026-03-10"}
	open := &models.Meeting{Status: models.StatusConfirmed, GraceActive: true, GraceEndTime: &future, MeetingDate: "2026-03-10"}
	ungraced := &models.Meeting{Status: models.StatusConfirmed, MeetingDate: "2026-03-09"}
	later := &models.Meeting{Status: models.StatusConfirmed, MeetingDate: "2026-04-01"}
	stale := &models.Meeting{Status: models.StatusTimeSelected, AutoExpireAt: &past}
	for _, m := range []*models.Meeting{expired, open, ungraced, later, stale} {
		if err := r.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	if got, _ := r.FindGraceExpired(ctx, now, 10); len(got) != 1 || got[0].ID != expired.ID {
		t.Fatalf("grace expired = %v", got)
	}
	if got, _ := r.FindUngracedConfirmed(ctx, "2026-03-11", primitive.NilObjectID, 10); len(got) != 1 || got[0].ID != ungraced.ID {
		t.Fatalf("ungraced = %v", got)
	}
	if got, _ := r.FindAutoExpired(ctx, now, 10); len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("auto expired = %v", got)
	}
}

func TestRecordSessionCountsClientsOnce(t *testing.T) {
	r := NewMemoryCounselors()
	ctx := context.Background()
	if err := r.Save(ctx, &models.Counselor{ID: "c1"}); err != nil {
		t.Fatal(err)
	}

	_ = r.RecordSession(ctx, "c1", SessionOutcome{ClientID: "a", Completed: true})
	_ = r.RecordSession(ctx, "c1", SessionOutcome{ClientID: "a", Completed: true})
	_ = r.RecordSession(ctx, "c1", SessionOutcome{ClientID: "b", Completed: false})
	_ = r.RecordCancellation(ctx, "c1")

	c, _ := r.GetByID(ctx, "c1")
	if c.TotalSessions != 3 || c.CompletedSessions != 2 || c.ActiveClients != 1 || c.CancelledSessions != 1 {
		t.Fatalf("counters = %+v", c)
	}
	if err := r.RecordSession(ctx, "missing", SessionOutcome{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestApplyRatingRunningAverage(t *testing.T) {
	r := NewMemoryCounselors()
	ctx := context.Background()
	_ = r.Save(ctx, &models.Counselor{ID: "c1", AverageRating: 4.0, TotalRatings: 3})

	c, err := r.ApplyRating(ctx, "c1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.TotalRatings != 4 || c.AverageRating != 3.5 {
		t.Fatalf("avg=%v n=%d", c.AverageRating, c.TotalRatings)
	}
}

func TestHistoryAppendAndRateOnce(t *testing.T) {
	r := NewMemoryHistory()
	ctx := context.Background()
	m := &models.Meeting{ClientID: "a", CounselorID: "c1", MeetingDate: "2026-03-10"}
	m.ID = [12]byte{1}

	created, err := r.Append(ctx, models.NewHistoryEntry(m, models.StatusCompleted, time.Now()))
	if err != nil || !created {
		t.Fatalf("first append: %v %v", created, err)
	}
	created, err = r.Append(ctx, models.NewHistoryEntry(m, models.StatusCompleted, time.Now()))
	if err != nil || created {
		t.Fatalf("second append: %v %v", created, err)
	}

	if _, err := r.SetRating(ctx, m.ID, 5, "great", time.Now()); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if _, err := r.SetRating(ctx, m.ID, 4, "", time.Now()); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("err = %v, want ErrAlreadyRated", err)
	}
	list, _ := r.ListByClient(ctx, "a", 0)
	if len(list) != 1 || *list[0].Rating != 5 {
		t.Fatalf("list = %+v", list)
	}
}

func TestFindUngracedConfirmedPages(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryMeetings()
	for i := 0; i < 5; i++ {
		if err := r.Create(ctx, &models.Meeting{Status: models.StatusConfirmed, MeetingDate: "2026-03-04"}); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[primitive.ObjectID]bool{}
	after := primitive.NilObjectID
	pages := 0
	for {
		page, err := r.FindUngracedConfirmed(ctx, "2026-03-04", after, 2)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		for _, m := range page {
			if seen[m.ID] {
				t.Fatalf("meeting %s returned twice", m.ID.Hex())
			}
			seen[m.ID] = true
		}
		if len(page) < 2 {
			break
		}
		after = page[len(page)-1].ID
	}
	if len(seen) != 5 || pages != 3 {
		t.Fatalf("saw %d meetings over %d pages", len(seen), pages)
	}
}

func TestClearRatingOnlyRemovesMatchingRating(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistory()
	id := primitive.NewObjectID()
	if _, err := r.Append(ctx, &models.SessionHistoryEntry{MeetingID: id, ClientID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SetRating(ctx, id, 4, "good", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := r.ClearRating(ctx, id, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("clearing a different rating: %v", err)
	}
	if err := r.ClearRating(ctx, id, 4); err != nil {
		t.Fatalf("ClearRating: %v", err)
	}
	if _, err := r.SetRating(ctx, id, 5, "", time.Now()); err != nil {
		t.Fatalf("rating again after clear: %v", err)
	}
}
