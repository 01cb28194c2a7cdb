package services

import (
	"context"
	"testing"
	"time"

	"counselmeet/internal/models"
)

func TestCandidateTimes(t *testing.T) {
	got, err := candidateTimes(models.WorkingHours{Start: "09:00", End: "12:00"}, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if _, err := candidateTimes(models.WorkingHours{Start: "nine", End: "17:00"}, time.Hour); err == nil {
		t.Fatal("expected error for malformed working hours")
	}
}

func TestAvailableSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	slots, err := h.svc.AvailableSlots(ctx, "c1", meetingDate)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 8 || slots[0].Time != "09:00" || slots[7].Time != "16:00" {
		t.Fatalf("slots = %+v", slots)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].StartsAt.After(slots[i-1].StartsAt) {
			t.Fatalf("slots out of order at %d", i)
		}
	}

	m := h.book(t, "u1", models.MeetingTypeVirtual)
	if _, err := h.svc.SelectTime(ctx, clientPrincipal("u1"), m.ID, meetingDate, "13:00"); err != nil {
		t.Fatal(err)
	}
	slots, _ = h.svc.AvailableSlots(ctx, "c1", meetingDate)
	if len(slots) != 7 {
		t.Fatalf("got %d slots after booking, want 7", len(slots))
	}
	for _, s := range slots {
		if s.Time == "13:00" {
			t.Fatal("held slot still listed")
		}
	}
}

func TestAvailableSlotsInCounselorTimezone(t *testing.T) {
	h := newHarness(t)
	h.saveCounselor(t, &models.Counselor{
		ID:           "c-jkt",
		IsActive:     true,
		WorkingHours: models.WorkingHours{Start: "08:00", End: "10:00", Timezone: "Asia/Jakarta"},
	})
	slots, err := h.svc.AvailableSlots(context.Background(), "c-jkt", meetingDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("slots = %+v", slots)
	}
	want := time.Date(2026, 3, 4, 1, 0, 0, 0, time.UTC)
	if !slots[0].StartsAt.Equal(want) || slots[0].Timezone != "Asia/Jakarta" {
		t.Fatalf("first slot = %v %s, want %v", slots[0].StartsAt, slots[0].Timezone, want)
	}
}

func TestAvailableSlotsEdgeCases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AvailableSlots(ctx, "missing", meetingDate)
	wantKind(t, err, KindNotFound)

	_, err = h.svc.AvailableSlots(ctx, "c1", "04/03/2026")
	wantKind(t, err, KindValidation)

	c := h.counselorStats(t, "c1")
	c.UnavailableDates = []string{"2026-03-04T00:00:00Z"}
	h.saveCounselor(t, c)
	slots, err := h.svc.AvailableSlots(ctx, "c1", meetingDate)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 0 {
		t.Fatalf("unavailable date returned %d slots", len(slots))
	}
}

func TestValidateSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.counselorStats(t, "c1")
	c.UnavailableDates = []string{"2026-03-05"}

	tests := []struct {
		name  string
		date  string
		clock string
		kind  ErrorKind
	}{
		{"ok", meetingDate, "10:00", ""},
		{"exactly 24h ahead", "2026-03-03", "09:00", ""},
		{"too soon", "2026-03-02", "15:00", KindValidation},
		{"before hours", meetingDate, "08:00", KindValidation},
		{"end is exclusive", meetingDate, "17:00", KindValidation},
		{"off grid", meetingDate, "10:30", KindValidation},
		{"bad time", meetingDate, "10h", KindValidation},
		{"bad date", "2026-02-30", "10:00", KindValidation},
		{"unavailable", "2026-03-05", "10:00", KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, err := h.svc.slots.ValidateSelection(ctx, c, tt.date, tt.clock, testNow)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if at.IsZero() {
					t.Fatal("zero scheduledAt")
				}
				return
			}
			wantKind(t, err, tt.kind)
		})
	}
}

func TestValidateSelectionDailyLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.counselorStats(t, "c1")
	c.MaxDailyMeetings = 1
	h.saveCounselor(t, c)

	m := h.book(t, "u1", models.MeetingTypeVirtual)
	if _, err := h.svc.SelectTime(ctx, clientPrincipal("u1"), m.ID, meetingDate, "09:00"); err != nil {
		t.Fatal(err)
	}
	other := h.book(t, "u2", models.MeetingTypeVirtual)
	_, err := h.svc.SelectTime(ctx, clientPrincipal("u2"), other.ID, meetingDate, "11:00")
	wantKind(t, err, KindConflict)

	if _, err := h.svc.SelectTime(ctx, clientPrincipal("u2"), other.ID, "2026-03-06", "11:00"); err != nil {
		t.Fatalf("other day should be free: %v", err)
	}
}
