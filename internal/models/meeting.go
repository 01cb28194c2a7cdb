package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // counselor timezones must resolve on minimal images

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeetingStatus is the lifecycle state of a Meeting
type MeetingStatus string

const (
	StatusRequestPending    MeetingStatus = "request_pending"
	StatusCounselorAssigned MeetingStatus = "counselor_assigned"
	StatusTimeSelected      MeetingStatus = "time_selected"
	StatusConfirmed         MeetingStatus = "confirmed"
	StatusCancelled         MeetingStatus = "cancelled"
	StatusCompleted         MeetingStatus = "completed"
	StatusAbandoned         MeetingStatus = "abandoned"
	StatusClientOnly        MeetingStatus = "client_only"
	StatusCounselorOnly     MeetingStatus = "counselor_only"
	StatusIncomplete        MeetingStatus = "incomplete"
)

// IsTerminal reports whether no further transitions are accepted
func (s MeetingStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusAbandoned,
		StatusClientOnly, StatusCounselorOnly, StatusIncomplete:
		return true
	}
	return false
}

// HoldsSlot reports whether a meeting in this status occupies its slot
func (s MeetingStatus) HoldsSlot() bool {
	return s == StatusTimeSelected || s == StatusConfirmed
}

// IsValid reports whether s is a known status
func (s MeetingStatus) IsValid() bool {
	switch s {
	case StatusRequestPending, StatusCounselorAssigned, StatusTimeSelected, StatusConfirmed:
		return true
	}
	return s.IsTerminal()
}

// MeetingType distinguishes video sessions from in-person sessions
type MeetingType string

const (
	MeetingTypeVirtual  MeetingType = "virtual"
	MeetingTypePhysical MeetingType = "physical"
)

// IsValid reports whether t is a known meeting type
func (t MeetingType) IsValid() bool {
	return t == MeetingTypeVirtual || t == MeetingTypePhysical
}

// Participant roles as carried by the authenticated principal
const (
	RoleClient    = "client"
	RoleCounselor = "counselor"
	RoleAdmin     = "admin"
)

const (
	// DefaultMeetingDuration is used when a meeting does not specify one
	DefaultMeetingDuration = 45

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Meeting is the booking aggregate for a single counseling engagement
type Meeting struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID         string             `bson:"client_id" json:"client_id"`
	CounselorID      string             `bson:"counselor_id,omitempty" json:"counselor_id,omitempty"`
	MeetingType      MeetingType        `bson:"meeting_type" json:"meeting_type"`
	IssueDescription string             `bson:"issue_description" json:"issue_description"`

	MeetingDate     string `bson:"meeting_date,omitempty" json:"meeting_date,omitempty"` // YYYY-MM-DD
	MeetingTime     string `bson:"meeting_time,omitempty" json:"meeting_time,omitempty"` // HH:MM wall clock
	MeetingDuration int    `bson:"meeting_duration" json:"meeting_duration"`             // minutes
	Timezone        string `bson:"timezone,omitempty" json:"timezone,omitempty"`

	Status   MeetingStatus `bson:"status" json:"status"`
	SlotHold string        `bson:"slot_hold,omitempty" json:"-"`

	CounselorResponseDeadline *time.Time `bson:"counselor_response_deadline,omitempty" json:"counselor_response_deadline,omitempty"`
	AutoExpireAt              *time.Time `bson:"auto_expire_at,omitempty" json:"auto_expire_at,omitempty"`

	ClientJoined    bool `bson:"client_joined" json:"client_joined"`
	CounselorJoined bool `bson:"counselor_joined" json:"counselor_joined"`

	GraceActive  bool       `bson:"grace_active" json:"grace_active"`
	GraceEndTime *time.Time `bson:"grace_end_time,omitempty" json:"grace_end_time,omitempty"`

	DailyRoomName string `bson:"daily_room_name,omitempty" json:"daily_room_name,omitempty"`
	DailyRoomURL  string `bson:"daily_room_url,omitempty" json:"daily_room_url,omitempty"`

	CancellationReason string     `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
	CancelledBy        string     `bson:"cancelled_by,omitempty" json:"cancelled_by,omitempty"`
	NoShowReason       string     `bson:"no_show_reason,omitempty" json:"no_show_reason,omitempty"`
	NoShowReportedBy   string     `bson:"no_show_reported_by,omitempty" json:"no_show_reported_by,omitempty"`
	AdminAssignedBy    string     `bson:"admin_assigned_by,omitempty" json:"admin_assigned_by,omitempty"`
	AdminAssignedAt    *time.Time `bson:"admin_assigned_at,omitempty" json:"admin_assigned_at,omitempty"`
	CompletedAt        *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt          time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at" json:"updated_at"`
}

// Duration returns the booked session length
func (m *Meeting) Duration() time.Duration {
	minutes := m.MeetingDuration
	if minutes <= 0 {
		minutes = DefaultMeetingDuration
	}
	return time.Duration(minutes) * time.Minute
}

// ScheduledAt resolves the wall-clock date and time in the meeting timezone
func (m *Meeting) ScheduledAt() (time.Time, error) {
	if m.MeetingDate == "" || m.MeetingTime == "" {
		return time.Time{}, fmt.Errorf("meeting %s has no date or time", m.ID.Hex())
	}
	loc, err := LoadLocation(m.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return ParseSlot(m.MeetingDate, m.MeetingTime, loc)
}

// HasParticipant reports whether userID is the client or the counselor
func (m *Meeting) HasParticipant(userID string) bool {
	return userID != "" && (userID == m.ClientID || userID == m.CounselorID)
}

// IsClient reports whether userID is the meeting's client
func (m *Meeting) IsClient(userID string) bool {
	return userID != "" && userID == m.ClientID
}

// PresenceOutcome maps the presence flags to the final status used when a
// grace window lapses
func (m *Meeting) PresenceOutcome() MeetingStatus {
	switch {
	case m.ClientJoined && m.CounselorJoined:
		return StatusCompleted
	case m.ClientJoined:
		return StatusClientOnly
	case m.CounselorJoined:
		return StatusCounselorOnly
	default:
		return StatusIncomplete
	}
}

// SlotKey identifies a counselor slot for the uniqueness guard
func SlotKey(counselorID, date, clock string) string {
	return counselorID + "|" + date + "|" + clock
}

// LoadLocation resolves an IANA zone name, defaulting to UTC
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseSlot combines a YYYY-MM-DD date and an HH:MM time in loc
func ParseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid meeting date %q: %w", date, err)
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// ParseClock converts "HH:MM" into minutes after midnight
func ParseClock(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid time %q: bad hour", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: bad minute", clock)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time %q: past midnight", clock)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes after midnight as "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
