package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"counselmeet/internal/models"
	"counselmeet/internal/repository"
)

// Slot is one bookable start time
type Slot struct {
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	StartsAt time.Time `json:"starts_at"`
	Timezone string    `json:"timezone"`
}

// SlotService computes and validates counselor availability
type SlotService struct {
	meetings   repository.MeetingRepository
	counselors repository.CounselorRepository
	interval   time.Duration
	minNotice  time.Duration
}

func NewSlotService(meetings repository.MeetingRepository, counselors repository.CounselorRepository, interval, minNotice time.Duration) *SlotService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SlotService{
		meetings:   meetings,
		counselors: counselors,
		interval:   interval,
		minNotice:  minNotice,
	}
}

// candidateTimes lists HH:MM starts in [start, end) on the interval grid
func candidateTimes(hours models.WorkingHours, interval time.Duration) ([]string, error) {
	start, err := models.ParseClock(hours.Start)
	if err != nil {
		return nil, fmt.Errorf("working hours start: %w", err)
	}
	end, err := models.ParseClock(hours.End)
	if err != nil {
		return nil, fmt.Errorf("working hours end: %w", err)
	}
	step := int(interval / time.Minute)
	if step <= 0 {
		step = 60
	}
	var out []string
	for t := start; t < end; t += step {
		out = append(out, models.FormatClock(t))
	}
	return out, nil
}

// AvailableSlots lists the free starts for counselorID on date, in order
func (s *SlotService) AvailableSlots(ctx context.Context, counselorID, date string) ([]Slot, error) {
	counselor, err := s.counselors.GetByID(ctx, counselorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("counselor")
		}
		return nil, fmt.Errorf("load counselor: %w", err)
	}
	loc, err := counselor.Location()
	if err != nil {
		return nil, validation("counselor timezone is invalid", nil)
	}
	if _, err := time.ParseInLocation(models.DateLayout, date, loc); err != nil {
		return nil, validation("invalid date", map[string]string{"date": "Date must use the YYYY-MM-DD format"})
	}

	slots := make([]Slot, 0)
	if counselor.IsUnavailableOn(date) {
		return slots, nil
	}

	candidates, err := candidateTimes(counselor.WorkingHours, s.interval)
	if err != nil {
		return nil, validation("counselor working hours are invalid", nil)
	}
	held, err := s.meetings.HeldSlots(ctx, counselorID, date)
	if err != nil {
		return nil, fmt.Errorf("load held slots: %w", err)
	}
	taken := make(map[string]bool, len(held))
	for _, t := range held {
		taken[t] = true
	}

	for _, c := range candidates {
		if taken[c] {
			continue
		}
		startsAt, err := models.ParseSlot(date, c, loc)
		if err != nil {
			continue
		}
		slots = append(slots, Slot{Date: date, Time: c, StartsAt: startsAt, Timezone: loc.String()})
	}
	return slots, nil
}

// ValidateSelection checks a requested slot against the counselor's rules.
// The final uniqueness decision is the atomic slot hold in the store.
func (s *SlotService) ValidateSelection(ctx context.Context, counselor *models.Counselor, date, clock string, now time.Time) (time.Time, error) {
	loc, err := counselor.Location()
	if err != nil {
		return time.Time{}, validation("counselor timezone is invalid", nil)
	}
	scheduledAt, err := models.ParseSlot(date, clock, loc)
	if err != nil {
		return time.Time{}, validation("invalid date or time", map[string]string{"meeting_time": err.Error()})
	}
	if scheduledAt.Before(now.Add(s.minNotice)) {
		return time.Time{}, validation(fmt.Sprintf("meetings must be booked at least %s in advance", s.minNotice), map[string]string{
			"meeting_date": "too soon",
		})
	}
	if counselor.IsUnavailableOn(date) {
		return time.Time{}, validation("counselor is unavailable on this date", map[string]string{"meeting_date": date})
	}

	candidates, err := candidateTimes(counselor.WorkingHours, s.interval)
	if err != nil {
		return time.Time{}, validation("counselor working hours are invalid", nil)
	}
	onGrid := false
	for _, c := range candidates {
		if c == clock {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return time.Time{}, validation("time is outside working hours or off the slot grid", map[string]string{
			"meeting_time": fmt.Sprintf("must be a %s slot between %s and %s", s.interval, counselor.WorkingHours.Start, counselor.WorkingHours.End),
		})
	}

	held, err := s.meetings.HeldSlots(ctx, counselor.ID, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("load held slots: %w", err)
	}
	for _, t := range held {
		if t == clock {
			return time.Time{}, conflict("the selected slot is no longer available")
		}
	}
	if counselor.MaxDailyMeetings > 0 && len(held) >= counselor.MaxDailyMeetings {
		return time.Time{}, conflict("counselor has reached the daily meeting limit")
	}
	return scheduledAt, nil
}
