package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionHistoryEntry records the outcome of one meeting for the client.
// There is at most one entry per meeting.
type SessionHistoryEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MeetingID   primitive.ObjectID `bson:"meeting_id" json:"meeting_id"`
	ClientID    string             `bson:"client_id" json:"client_id"`
	CounselorID string             `bson:"counselor_id" json:"counselor_id"`
	SessionDate string             `bson:"session_date" json:"session_date"`
	SessionType MeetingType        `bson:"session_type" json:"session_type"`
	Status      MeetingStatus      `bson:"status" json:"status"`
	Rating      *int               `bson:"rating,omitempty" json:"rating,omitempty"`
	Feedback    string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	RatedAt     *time.Time         `bson:"rated_at,omitempty" json:"rated_at,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// NewHistoryEntry builds the entry for a meeting that reached status
func NewHistoryEntry(m *Meeting, status MeetingStatus, now time.Time) *SessionHistoryEntry {
	return &SessionHistoryEntry{
		MeetingID:   m.ID,
		ClientID:    m.ClientID,
		CounselorID: m.CounselorID,
		SessionDate: m.MeetingDate,
		SessionType: m.MeetingType,
		Status:      status,
		CreatedAt:   now,
	}
}
