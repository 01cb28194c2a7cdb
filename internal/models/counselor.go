package models

import (
	"time"
)

// WorkingHours is the daily window in which a counselor takes sessions
type WorkingHours struct {
	Start    string `bson:"start" json:"start"` // HH:MM
	End      string `bson:"end" json:"end"`     // HH:MM
	Timezone string `bson:"timezone" json:"timezone"`
}

// MeetingPreferences holds counselor scheduling preferences
type MeetingPreferences struct {
	MaxConsecutiveMeetings int `bson:"max_consecutive_meetings" json:"max_consecutive_meetings"`
}

// Counselor is the subset of the counselor profile the lifecycle engine reads and updates
type Counselor struct {
	ID                 string             `bson:"_id" json:"id"`
	DisplayName        string             `bson:"display_name" json:"display_name"`
	IsActive           bool               `bson:"is_active" json:"is_active"`
	WorkingHours       WorkingHours       `bson:"working_hours" json:"working_hours"`
	UnavailableDates   []string           `bson:"unavailable_dates" json:"unavailable_dates"`
	MaxDailyMeetings   int                `bson:"max_daily_meetings" json:"max_daily_meetings"`
	MeetingPreferences MeetingPreferences `bson:"meeting_preferences" json:"meeting_preferences"`

	TotalSessions     int     `bson:"total_sessions" json:"total_sessions"`
	CompletedSessions int     `bson:"completed_sessions" json:"completed_sessions"`
	CancelledSessions int     `bson:"cancelled_sessions" json:"cancelled_sessions"`
	ActiveClients     int     `bson:"active_clients" json:"active_clients"`
	TotalRatings      int     `bson:"total_ratings" json:"total_ratings"`
	AverageRating     float64 `bson:"average_rating" json:"average_rating"`

	// ClientIDs is the set of clients that completed at least one session
	// with this counselor; it drives ActiveClients.
	ClientIDs []string `bson:"client_ids" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CounselorProfile is the anonymised public view of a counselor
type CounselorProfile struct {
	ID            string       `json:"id"`
	DisplayName   string       `json:"display_name"`
	WorkingHours  WorkingHours `json:"working_hours"`
	AverageRating float64      `json:"average_rating"`
	TotalRatings  int          `json:"total_ratings"`
}

// Profile returns the public view
func (c *Counselor) Profile() CounselorProfile {
	return CounselorProfile{
		ID:            c.ID,
		DisplayName:   c.DisplayName,
		WorkingHours:  c.WorkingHours,
		AverageRating: c.AverageRating,
		TotalRatings:  c.TotalRatings,
	}
}

// Location returns the working-hours timezone
func (c *Counselor) Location() (*time.Location, error) {
	return LoadLocation(c.WorkingHours.Timezone)
}

// IsUnavailableOn reports whether date (YYYY-MM-DD) is blocked. Entries may be
// stored either as plain dates or as full timestamps.
func (c *Counselor) IsUnavailableOn(date string) bool {
	for _, d := range c.UnavailableDates {
		if len(d) >= len(DateLayout) && d[:len(DateLayout)] == date {
			return true
		}
	}
	return false
}

// HasClient reports whether clientID already completed a session with this counselor
func (c *Counselor) HasClient(clientID string) bool {
	for _, id := range c.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}
