package services

import (
	"context"
	"errors"
	"fmt"

	"counselmeet/internal/clock"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RatingService maintains client session history and counselor statistics
type RatingService struct {
	meetings   repository.MeetingRepository
	counselors repository.CounselorRepository
	history    repository.HistoryRepository
	clock      clock.Clock
}

func NewRatingService(stores repository.Stores, clk clock.Clock) *RatingService {
	return &RatingService{
		meetings:   stores.Meetings,
		counselors: stores.Counselors,
		history:    stores.History,
		clock:      clk,
	}
}

// RecordOutcome appends the history entry for a meeting that reached status
// and bumps counselor counters. The unique history key makes it safe to call
// more than once for the same meeting.
func (s *RatingService) RecordOutcome(ctx context.Context, m *models.Meeting, status models.MeetingStatus) error {
	if status == models.StatusIncomplete || m.CounselorID == "" {
		return nil
	}

	created, err := s.history.Append(ctx, models.NewHistoryEntry(m, status, s.clock.Now()))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if !created {
		return nil
	}

	switch status {
	case models.StatusCancelled:
		err = s.counselors.RecordCancellation(ctx, m.CounselorID)
	case models.StatusCompleted, models.StatusAbandoned, models.StatusClientOnly, models.StatusCounselorOnly:
		err = s.counselors.RecordSession(ctx, m.CounselorID, repository.SessionOutcome{
			ClientID:  m.ClientID,
			Completed: status == models.StatusCompleted,
		})
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("update counselor statistics: %w", err)
	}
	return nil
}

// SubmitRating records the client's 1..5 rating of a completed meeting
func (s *RatingService) SubmitRating(ctx context.Context, p models.Principal, meetingID primitive.ObjectID, rating int, feedback string) (*models.SessionHistoryEntry, error) {
	if rating < 1 || rating > 5 {
		return nil, validation("rating must be between 1 and 5", map[string]string{"rating": "must be an integer from 1 to 5"})
	}
	if len(feedback) > 2000 {
		return nil, validation("feedback is too long", map[string]string{"feedback": "at most 2000 characters"})
	}

	m, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fromRepo(err, "rate", "")
	}
	if !p.IsClient() || !m.IsClient(p.UserID) {
		return nil, forbidden("only the meeting's client can rate it")
	}
	if m.Status != models.StatusCompleted {
		return nil, invalidState("rate", m.Status)
	}

	// Entries are normally written on completion; this covers a completion
	// whose history write failed.
	if _, err := s.history.Append(ctx, models.NewHistoryEntry(m, models.StatusCompleted, s.clock.Now())); err != nil {
		return nil, fmt.Errorf("ensure history: %w", err)
	}

	entry, err := s.history.SetRating(ctx, m.ID, rating, feedback, s.clock.Now())
	if err != nil {
		return nil, fromRepo(err, "rate", m.Status)
	}

	if _, err := s.counselors.ApplyRating(ctx, m.CounselorID, rating); err != nil {
		logger.LogError(err, "apply counselor rating", map[string]interface{}{
			"meeting_id":   m.ID.Hex(),
			"counselor_id": m.CounselorID,
		})
		// withdraw the rating so the client can resubmit it
		if clearErr := s.history.ClearRating(ctx, m.ID, rating); clearErr != nil {
			logger.LogError(clearErr, "withdraw rating after failed counselor update", map[string]interface{}{
				"meeting_id": m.ID.Hex(),
			})
		}
		return nil, fmt.Errorf("apply rating: %w", err)
	}

	logger.LogUserAction(p.UserID, "rate_meeting", map[string]interface{}{
		"meeting_id": m.ID.Hex(),
		"rating":     rating,
	})
	return entry, nil
}

// History lists the caller's session history
func (s *RatingService) History(ctx context.Context, p models.Principal, limit int) ([]*models.SessionHistoryEntry, error) {
	if !p.IsClient() {
		return nil, forbidden("session history is only available to clients")
	}
	entries, err := s.history.ListByClient(ctx, p.UserID, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*models.SessionHistoryEntry{}, nil
		}
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
