// Package repository persists meetings, counselor statistics and session
// history. Every state change is a conditional write keyed on the current
// status so concurrent callers and reconciler replicas linearize per meeting.
package repository

import (
	"context"
	"errors"
	"time"

	"counselmeet/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound      = errors.New("repository: not found")
	ErrStateMismatch = errors.New("repository: current state does not allow the update")
	ErrSlotTaken     = errors.New("repository: slot already held")
	ErrAlreadyRated  = errors.New("repository: session already rated")
)

// Participant selects which presence flag to touch
type Participant int

const (
	ClientParticipant Participant = iota
	CounselorParticipant
)

// MeetingChanges describes the fields a transition writes. Nil fields are
// left untouched. Moving to a status that does not hold a slot always
// releases the slot hold.
type MeetingChanges struct {
	Status models.MeetingStatus

	CounselorID     *string
	AdminAssignedBy *string
	AdminAssignedAt *time.Time

	MeetingDate *string
	MeetingTime *string
	Timezone    *string
	SlotHold    *string

	CounselorResponseDeadline *time.Time
	AutoExpireAt              *time.Time

	DailyRoomName *string
	DailyRoomURL  *string

	GraceActive  *bool
	GraceEndTime *time.Time

	CancellationReason *string
	CancelledBy        *string
	NoShowReason       *string
	NoShowReportedBy   *string
	CompletedAt        *time.Time

	UpdatedAt time.Time
}

// releasesSlot reports whether the slot hold must be dropped
func (c MeetingChanges) releasesSlot() bool {
	return c.Status != "" && !c.Status.HoldsSlot()
}

// MeetingFilter narrows List results; zero fields are ignored
type MeetingFilter struct {
	ClientID    string
	CounselorID string
	Status      models.MeetingStatus
	Limit       int
}

// MeetingRepository stores the meeting aggregate
type MeetingRepository interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Meeting, error)
	List(ctx context.Context, f MeetingFilter) ([]*models.Meeting, error)

	// Transition applies changes only when the current status is one of
	// from. It returns ErrStateMismatch when it is not and ErrSlotTaken when
	// the requested slot hold is owned by another live meeting.
	Transition(ctx context.Context, id primitive.ObjectID, from []models.MeetingStatus, ch MeetingChanges) (*models.Meeting, error)

	// SetPresence flips a presence flag on a confirmed meeting
	SetPresence(ctx context.Context, id primitive.ObjectID, who Participant, joined bool, now time.Time) (*models.Meeting, error)

	// HeldSlots returns the meeting times held on date by live meetings
	HeldSlots(ctx context.Context, counselorID, date string) ([]string, error)

	// LatestCounselorForClient returns the counselor of the client's most
	// recent confirmed or completed meeting
	LatestCounselorForClient(ctx context.Context, clientID string) (string, error)

	FindGraceExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error)
	// FindUngracedConfirmed pages through confirmed meetings without an
	// active grace window dated on or before the given YYYY-MM-DD date,
	// in id order starting after the given id
	FindUngracedConfirmed(ctx context.Context, onOrBefore string, after primitive.ObjectID, limit int) ([]*models.Meeting, error)
	FindAutoExpired(ctx context.Context, now time.Time, limit int) ([]*models.Meeting, error)
}

// SessionOutcome is what a finished meeting contributes to counselor statistics
type SessionOutcome struct {
	ClientID  string
	Completed bool
}

// CounselorRepository reads counselor profiles and maintains their counters
type CounselorRepository interface {
	GetByID(ctx context.Context, id string) (*models.Counselor, error)
	Save(ctx context.Context, c *models.Counselor) error

	// RecordSession bumps totalSessions and, for completed sessions,
	// completedSessions plus activeClients the first time the client
	// completes with this counselor
	RecordSession(ctx context.Context, id string, outcome SessionOutcome) error
	RecordCancellation(ctx context.Context, id string) error

	// ApplyRating folds r into averageRating and totalRatings atomically
	ApplyRating(ctx context.Context, id string, r int) (*models.Counselor, error)
}

// HistoryRepository stores one entry per finished meeting
type HistoryRepository interface {
	// Append returns created=false when the meeting already has an entry
	Append(ctx context.Context, e *models.SessionHistoryEntry) (created bool, err error)
	GetByMeeting(ctx context.Context, meetingID primitive.ObjectID) (*models.SessionHistoryEntry, error)
	// SetRating stores the rating once; a second call returns ErrAlreadyRated
	SetRating(ctx context.Context, meetingID primitive.ObjectID, rating int, feedback string, now time.Time) (*models.SessionHistoryEntry, error)
	// ClearRating removes a rating equal to rating so it can be submitted again
	ClearRating(ctx context.Context, meetingID primitive.ObjectID, rating int) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]*models.SessionHistoryEntry, error)
}

// Stores bundles the repositories the services depend on
type Stores struct {
	Meetings   MeetingRepository
	Counselors CounselorRepository
	History    HistoryRepository
}

func statusIn(s models.MeetingStatus, set []models.MeetingStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
