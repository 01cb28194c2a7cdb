package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"counselmeet/internal/models"
)

func TestReconcilerCompletesAttendedMeetingOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.confirm(t, "u1", models.MeetingTypeVirtual)

	h.clock.Set(meetingAt)
	if _, err := h.svc.MarkJoined(ctx, clientPrincipal("u1"), m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.MarkJoined(ctx, counselor, m.ID); err != nil {
		t.Fatal(err)
	}

	// grace ends at 11:00
	h.clock.Set(meetingAt.Add(59 * time.Minute))
	if report := h.reconciler.Tick(ctx); report.GraceResolved != 0 {
		t.Fatalf("resolved before grace end: %+v", report)
	}

	h.clock.Set(meetingAt.Add(61 * time.Minute))
	report := h.reconciler.Tick(ctx)
	if report.GraceResolved != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	got := h.meeting(t, m.ID)
	if got.Status != models.StatusCompleted || got.GraceActive {
		t.Fatalf("meeting = %s grace %v", got.Status, got.GraceActive)
	}

	second := h.reconciler.Tick(ctx)
	if second.GraceResolved != 0 || second.OverdueResolved != 0 {
		t.Fatalf("second tick did work: %+v", second)
	}
	c := h.counselorStats(t, "c1")
	if c.TotalSessions != 1 || c.CompletedSessions != 1 || c.ActiveClients != 1 {
		t.Fatalf("counters = %+v", c)
	}
	entries, err := h.ratings.History(ctx, clientPrincipal("u1"), 10)
	if err != nil || len(entries) != 1 || entries[0].Status != models.StatusCompleted {
		t.Fatalf("history = %+v, %v", entries, err)
	}
	if !h.presence.has(UserTopic("u1"), EventMeetingCompleted) {
		t.Fatal("meeting.completed not published")
	}
}

func TestReconcilerRecordsIncompleteWithoutStatistics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.confirm(t, "u1", models.MeetingTypeVirtual)

	h.clock.Set(meetingAt.Add(2 * time.Hour))
	report := h.reconciler.Tick(ctx)
	if report.GraceResolved != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.meeting(t, m.ID); got.Status != models.StatusIncomplete {
		t.Fatalf("status = %s, want incomplete", got.Status)
	}
	c := h.counselorStats(t, "c1")
	if c.TotalSessions != 0 || c.CompletedSessions != 0 {
		t.Fatalf("counters changed for incomplete meeting: %+v", c)
	}
	if _, err := h.stores.History.GetByMeeting(ctx, m.ID); err == nil {
		t.Fatal("history written for incomplete meeting")
	}
}

func TestReconcilerPartialAttendance(t *testing.T) {
	tests := []struct {
		name   string
		joiner string
		want   models.MeetingStatus
	}{
		{"client only", "client", models.StatusClientOnly},
		{"counselor only", "counselor", models.StatusCounselorOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			m := h.confirm(t, "u1", models.MeetingTypeVirtual)

			h.clock.Set(meetingAt)
			p := counselor
			if tt.joiner == "client" {
				p = clientPrincipal("u1")
			}
			if _, err := h.svc.MarkJoined(ctx, p, m.ID); err != nil {
				t.Fatal(err)
			}

			h.clock.Set(meetingAt.Add(90 * time.Minute))
			h.reconciler.Tick(ctx)
			if got := h.meeting(t, m.ID); got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
			c := h.counselorStats(t, "c1")
			if c.TotalSessions != 1 || c.CompletedSessions != 0 {
				t.Fatalf("counters = %+v", c)
			}
			if h.notifier.count("u1", TemplateMeetingResolved) != 1 {
				t.Fatal("client not notified of resolution")
			}
		})
	}
}

func TestReconcilerResolvesOverduePhysicalMeetings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	attended := h.confirm(t, "u1", models.MeetingTypePhysical)
	graced := h.confirmAt(t, "u2", meetingDate, "11:00")

	h.clock.Set(meetingAt)
	if _, err := h.svc.MarkJoined(ctx, clientPrincipal("u1"), attended.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.MarkJoined(ctx, counselor, attended.ID); err != nil {
		t.Fatal(err)
	}

	// the virtual 11:00 meeting is still inside its grace window
	h.clock.Set(meetingAt.Add(61 * time.Minute))
	report := h.reconciler.Tick(ctx)
	if report.OverdueResolved != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.meeting(t, attended.ID); got.Status != models.StatusCompleted {
		t.Fatalf("attended physical meeting = %s", got.Status)
	}
	if got := h.meeting(t, graced.ID); got.Status != models.StatusConfirmed {
		t.Fatalf("virtual 11:00 meeting resolved early: %s", got.Status)
	}
}

func TestReconcilerAbandonsUnattendedPhysicalMeeting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.confirm(t, "u1", models.MeetingTypePhysical)

	h.clock.Set(meetingAt.Add(30 * time.Minute))
	if report := h.reconciler.Tick(ctx); report.OverdueResolved != 0 {
		t.Fatalf("resolved before overdue: %+v", report)
	}

	h.clock.Set(meetingAt.Add(61 * time.Minute))
	if report := h.reconciler.Tick(ctx); report.OverdueResolved != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.meeting(t, m.ID); got.Status != models.StatusAbandoned {
		t.Fatalf("status = %s, want abandoned", got.Status)
	}
	if c := h.counselorStats(t, "c1"); c.TotalSessions != 1 {
		t.Fatalf("totalSessions = %d", c.TotalSessions)
	}
}

func TestReconcilerSkipsMalformedMeetings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := &models.Meeting{
		ClientID:    "u1",
		CounselorID: "c1",
		MeetingType: models.MeetingTypePhysical,
		MeetingDate: "2026-03-01",
		MeetingTime: "25:99",
		Status:      models.StatusConfirmed,
	}
	if err := h.stores.Meetings.Create(ctx, m); err != nil {
		t.Fatal(err)
	}

	report := h.reconciler.Tick(ctx)
	if report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.meeting(t, m.ID); got.Status != models.StatusConfirmed {
		t.Fatalf("malformed meeting changed to %s", got.Status)
	}
}

func TestReconcilerExpiresUnansweredSelections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.book(t, "u1", models.MeetingTypeVirtual)
	if _, err := h.svc.SelectTime(ctx, clientPrincipal("u1"), m.ID, meetingDate, meetingTime); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(14 * time.Hour)
	if report := h.reconciler.Tick(ctx); report.Expired != 0 {
		t.Fatalf("expired inside the response window: %+v", report)
	}

	h.clock.Advance(2 * time.Hour)
	if report := h.reconciler.Tick(ctx); report.Expired != 1 {
		t.Fatalf("report = %+v", report)
	}
	got := h.meeting(t, m.ID)
	if got.Status != models.StatusCancelled || got.CancellationReason != "expired" {
		t.Fatalf("meeting = %s %q", got.Status, got.CancellationReason)
	}
	if h.notifier.count("u1", TemplateMeetingCancelled) != 1 || h.notifier.count("c1", TemplateMeetingCancelled) != 1 {
		t.Fatal("both parties should hear about the expiry")
	}

	if report := h.reconciler.Tick(ctx); report.Expired != 0 {
		t.Fatalf("second tick expired again: %+v", report)
	}
	if c := h.counselorStats(t, "c1"); c.CancelledSessions != 1 {
		t.Fatalf("cancelledSessions = %d", c.CancelledSessions)
	}
}

func TestReconcilerStartStop(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.svc, 10*time.Millisecond, time.Hour, 10)
	r.Start()
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	r.Stop()
}

func TestReconcilerOverduePassWalksEveryPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := NewReconciler(h.svc, time.Minute, time.Hour, 2)

	// created first, dated tomorrow and not due yet
	for i, at := range []string{"09:00", "10:00", "11:00"} {
		m := &models.Meeting{
			ClientID:    fmt.Sprintf("future-%d", i),
			CounselorID: "c1",
			MeetingType: models.MeetingTypePhysical,
			MeetingDate: "2026-03-05",
			MeetingTime: at,
			Timezone:    "UTC",
			Status:      models.StatusConfirmed,
		}
		if err := h.stores.Meetings.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	overdue := &models.Meeting{
		ClientID:    "u1",
		CounselorID: "c1",
		MeetingType: models.MeetingTypePhysical,
		MeetingDate: meetingDate,
		MeetingTime: meetingTime,
		Timezone:    "UTC",
		Status:      models.StatusConfirmed,
	}
	if err := h.stores.Meetings.Create(ctx, overdue); err != nil {
		t.Fatal(err)
	}

	h.clock.Set(meetingAt.Add(2 * time.Hour))
	if report := r.Tick(ctx); report.OverdueResolved != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := h.meeting(t, overdue.ID); got.Status != models.StatusAbandoned {
		t.Fatalf("overdue meeting = %s", got.Status)
	}
}
