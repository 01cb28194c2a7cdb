package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"counselmeet/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemory returns in-process stores with the same conditional-write
// semantics as the MongoDB stores
func NewMemory() Stores {
	return Stores{
		Meetings:   NewMemoryMeetings(),
		Counselors: NewMemoryCounselors(),
		History:    NewMemoryHistory(),
	}
}

// MemoryMeetings is a MeetingRepository backed by a map
type MemoryMeetings struct {
	mu       sync.Mutex
	meetings map[primitive.ObjectID]*models.Meeting
	slots    map[string]primitive.ObjectID
}

func NewMemoryMeetings() *MemoryMeetings {
	return &MemoryMeetings{
		meetings: make(map[primitive.ObjectID]*models.Meeting),
		slots:    make(map[string]primitive.ObjectID),
	}
}

func cloneMeeting(m *models.Meeting) *models.Meeting {
	cp := *m
	return &cp
}

func (r *MemoryMeetings) Create(ctx context.Context, m *models.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.SlotHold != "" {
		if owner, ok := r.slots[m.SlotHold]; ok && owner != m.ID {
			return ErrSlotTaken
		}
		r.slots[m.SlotHold] = m.ID
	}
	r.meetings[m.ID] = cloneMeeting(m)
	return nil
}

func (r *MemoryMeetings) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (r *MemoryMeetings) List(ctx context.Context, f MeetingFilter) ([]*models.Meeting, error) {
	return r.collect(f.Limit, func(m *models.Meeting) bool {
		return (f.ClientID == "" || m.ClientID == f.ClientID) &&
			(f.CounselorID == "" || m.CounselorID == f.CounselorID) &&
			(f.Status == "" || m.Status == f.Status)
	}, newestFirst), nil
}

func (r *MemoryMeetings) Transition(ctx context.Context, id primitive.ObjectID, from []models.MeetingStatus, ch MeetingChanges) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !statusIn(current.Status, from) {
		return nil, ErrStateMismatch
	}
	if ch.SlotHold != nil && *ch.SlotHold != "" {
		if owner, held := r.slots[*ch.SlotHold]; held && owner != id {
			return nil, ErrSlotTaken
		}
	}

	next := cloneMeeting(current)
	applyChanges(next, ch)

	if current.SlotHold != "" && current.SlotHold != next.SlotHold {
		delete(r.slots, current.SlotHold)
	}
	if next.SlotHold != "" {
		r.slots[next.SlotHold] = id
	}
	r.meetings[id] = next
	return cloneMeeting(next), nil
}

func applyChanges(m *models.Meeting, ch MeetingChanges) {
	if ch.Status != "" {
		m.Status = ch.Status
	}
	setString(&m.CounselorID, ch.CounselorID)
	setString(&m.AdminAssignedBy, ch.AdminAssignedBy)
	setTime(&m.AdminAssignedAt, ch.AdminAssignedAt)
	setString(&m.MeetingDate, ch.MeetingDate)
	setString(&m.MeetingTime, ch.MeetingTime)
	setString(&m.Timezone, ch.Timezone)
	setString(&m.SlotHold, ch.SlotHold)
	setTime(&m.CounselorResponseDeadline, ch.CounselorResponseDeadline)
	setTime(&m.AutoExpireAt, ch.AutoExpireAt)
	setString(&m.DailyRoomName, ch.DailyRoomName)
	setString(&m.DailyRoomURL, ch.DailyRoomURL)
	if ch.GraceActive != nil {
		m.GraceActive = *ch.GraceActive
	}
	setTime(&m.GraceEndTime, ch.GraceEndTime)
	setString(&m.CancellationReason, ch.CancellationReason)
	setString(&m.CancelledBy, ch.CancelledBy)
	setString(&m.NoShowReason, ch.NoShowReason)
	setString(&m.NoShowReportedBy, ch.NoShowReportedBy)
	setTime(&m.CompletedAt, ch.CompletedAt)
	if ch.releasesSlot() {
		m.SlotHold = ""
	}
	if !ch.UpdatedAt.IsZero() {
		m.UpdatedAt = ch.UpdatedAt
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}

func (r *MemoryMeetings) SetPresence(ctx context.Context, id primitive.ObjectID, who Participant, joined bool, now time.Time) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.Status != models.StatusConfirmed {
		return nil, ErrStateMismatch
	}
	next := cloneMeeting(m)
	if who == ClientParticipant {
		next.ClientJoined = joined
	} else {
		next.CounselorJoined = joined
	}
	next.UpdatedAt = now
	r.meetings[id] = next
	return cloneMeeting(next), nil
}

func (r *MemoryMeetings) HeldSlots(ctx context.Context, counselorID, date string) ([]string, error) {
	held := r.collect(0, func(m *models.Meeting) bool {
		return m.CounselorID == counselorID && m.MeetingDate == date && m.Status.HoldsSlot()
	}, nil)
	times := make([]string, 0, len(held))
	for _, m := range held {
		times = append(times, m.MeetingTime)
	}
	sort.Strings(times)
	return times, nil
}

func (r *MemoryMeetings) LatestCounselorForClient(ctx context.Context, clientID string) (string, error) {
	found := r.collect(1, func(m *models.Meeting) bool {
		return m.ClientID == clientID && m.CounselorID != "" &&
			(m.Status == models.StatusCompleted || m.Status == models.StatusConfirmed)
	}, newestFirst)
	if len(found) == 0 {
		return "", ErrNotFound
	}
	return found[0].CounselorID, nil
}

func (r *MemoryMeetings) FindGraceExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error) {
	return r.collect(limit, func(m *models.Meeting) bool {
		return m.Status == models.StatusConfirmed && m.GraceActive &&
			m.GraceEndTime != nil && m.GraceEndTime.Before(now)
	}, nil), nil
}

func (r *MemoryMeetings) FindUngracedConfirmed(ctx context.Context, onOrBefore string, after primitive.ObjectID, limit int) ([]*models.Meeting, error) {
	cursor := after.Hex()
	return r.collect(limit, func(m *models.Meeting) bool {
		return m.Status == models.StatusConfirmed && !m.GraceActive && m.MeetingDate <= onOrBefore && m.ID.Hex() > cursor
	}, byID), nil
}

func byID(a, b *models.Meeting) bool {
	return a.ID.Hex() < b.ID.Hex()
}

func (r *MemoryMeetings) FindAutoExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error) {
	return r.collect(limit, func(m *models.Meeting) bool {
		return m.Status == models.StatusTimeSelected && m.AutoExpireAt != nil && m.AutoExpireAt.Before(now)
	}, nil), nil
}

func newestFirst(a, b *models.Meeting) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func oldestFirst(a, b *models.Meeting) bool {
	return a.CreatedAt.Before(b.CreatedAt)
}

// collect returns clones of matching meetings, ordered by less (oldest
// first when nil) and truncated to limit when positive
func (r *MemoryMeetings) collect(limit int, match func(*models.Meeting) bool, less func(a, b *models.Meeting) bool) []*models.Meeting {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Meeting, 0)
	for _, m := range r.meetings {
		if match(m) {
			out = append(out, cloneMeeting(m))
		}
	}
	if less == nil {
		less = oldestFirst
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryCounselors is a CounselorRepository backed by a map
type MemoryCounselors struct {
	mu         sync.Mutex
	counselors map[string]*models.Counselor
}

func NewMemoryCounselors() *MemoryCounselors {
	return &MemoryCounselors{counselors: make(map[string]*models.Counselor)}
}

func cloneCounselor(c *models.Counselor) *models.Counselor {
	cp := *c
	cp.UnavailableDates = append([]string(nil), c.UnavailableDates...)
	cp.ClientIDs = append([]string(nil), c.ClientIDs...)
	return &cp
}

func (r *MemoryCounselors) GetByID(ctx context.Context, id string) (*models.Counselor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counselors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCounselor(c), nil
}

func (r *MemoryCounselors) Save(ctx context.Context, c *models.Counselor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counselors[c.ID] = cloneCounselor(c)
	return nil
}

func (r *MemoryCounselors) update(id string, fn func(c *models.Counselor)) (*models.Counselor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counselors[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now()
	return cloneCounselor(c), nil
}

func (r *MemoryCounselors) RecordSession(ctx context.Context, id string, outcome SessionOutcome) error {
	_, err := r.update(id, func(c *models.Counselor) {
		c.TotalSessions++
		if !outcome.Completed {
			return
		}
		c.CompletedSessions++
		if outcome.ClientID != "" && !c.HasClient(outcome.ClientID) {
			c.ClientIDs = append(c.ClientIDs, outcome.ClientID)
			c.ActiveClients++
		}
	})
	return err
}

func (r *MemoryCounselors) RecordCancellation(ctx context.Context, id string) error {
	_, err := r.update(id, func(c *models.Counselor) {
		c.CancelledSessions++
	})
	return err
}

func (r *MemoryCounselors) ApplyRating(ctx context.Context, id string, rating int) (*models.Counselor, error) {
	return r.update(id, func(c *models.Counselor) {
		n := float64(c.TotalRatings)
		c.AverageRating = (c.AverageRating*n + float64(rating)) / (n + 1)
		c.TotalRatings++
	})
}

// MemoryHistory is a HistoryRepository backed by a map keyed on meeting id
type MemoryHistory struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]*models.SessionHistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[primitive.ObjectID]*models.SessionHistoryEntry)}
}

func cloneEntry(e *models.SessionHistoryEntry) *models.SessionHistoryEntry {
	cp := *e
	if e.Rating != nil {
		r := *e.Rating
		cp.Rating = &r
	}
	return &cp
}

func (r *MemoryHistory) Append(ctx context.Context, e *models.SessionHistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.MeetingID]; exists {
		return false, nil
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	r.entries[e.MeetingID] = cloneEntry(e)
	return true, nil
}

func (r *MemoryHistory) GetByMeeting(ctx context.Context, meetingID primitive.ObjectID) (*models.SessionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (r *MemoryHistory) SetRating(ctx context.Context, meetingID primitive.ObjectID, rating int, feedback string, now time.Time) (*models.SessionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Rating != nil {
		return nil, ErrAlreadyRated
	}
	e.Rating = &rating
	e.Feedback = feedback
	e.RatedAt = &now
	return cloneEntry(e), nil
}

func (r *MemoryHistory) ClearRating(ctx context.Context, meetingID primitive.ObjectID, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[meetingID]
	if !ok || e.Rating == nil || *e.Rating != rating {
		return ErrNotFound
	}
	e.Rating = nil
	e.Feedback = ""
	e.RatedAt = nil
	return nil
}

func (r *MemoryHistory) ListByClient(ctx context.Context, clientID string, limit int) ([]*models.SessionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.SessionHistoryEntry, 0)
	for _, e := range r.entries {
		if e.ClientID == clientID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
