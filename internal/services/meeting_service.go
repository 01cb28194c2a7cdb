package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"counselmeet/internal/clock"
	"counselmeet/internal/config"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxIssueDescription = 2000
	minMeetingDuration  = 15
	maxMeetingDuration  = 180
)

// MeetingServiceDeps wires a MeetingService
type MeetingServiceDeps struct {
	Stores   repository.Stores
	Slots    *SlotService
	Ratings  *RatingService
	Video    VideoProvisioner
	Notifier Notifier
	Presence PresencePublisher
	Clock    clock.Clock
	Policy   config.MeetingsConfig
}

// MeetingService is the booking state machine
type MeetingService struct {
	meetings   repository.MeetingRepository
	counselors repository.CounselorRepository
	slots      *SlotService
	ratings    *RatingService
	video      VideoProvisioner
	notifier   Notifier
	presence   PresencePublisher
	clock      clock.Clock
	policy     config.MeetingsConfig
}

func NewMeetingService(d MeetingServiceDeps) *MeetingService {
	s := &MeetingService{
		meetings:   d.Stores.Meetings,
		counselors: d.Stores.Counselors,
		slots:      d.Slots,
		ratings:    d.Ratings,
		video:      d.Video,
		notifier:   d.Notifier,
		presence:   d.Presence,
		clock:      d.Clock,
		policy:     d.Policy,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.presence == nil {
		s.presence = nopPublisher{}
	}
	if s.policy.DefaultDuration <= 0 {
		s.policy.DefaultDuration = models.DefaultMeetingDuration
	}
	return s
}

// BookingRequest is the input of InitiateBooking
type BookingRequest struct {
	MeetingType      models.MeetingType
	IssueDescription string
	MeetingDuration  int
}

// JoinToken is what a participant needs to enter the video room
type JoinToken struct {
	Token     string    `json:"token"`
	RoomName  string    `json:"room_name"`
	RoomURL   string    `json:"room_url"`
	NotBefore time.Time `json:"not_before"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *MeetingService) load(ctx context.Context, id primitive.ObjectID) (*models.Meeting, error) {
	m, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "load", "")
	}
	return m, nil
}

func (s *MeetingService) loadForParty(ctx context.Context, p models.Principal, id primitive.ObjectID, allowAdmin bool) (*models.Meeting, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.HasParticipant(p.UserID) && !p.IsAdmin() {
		return m, nil
	}
	if allowAdmin && p.IsAdmin() {
		return m, nil
	}
	return nil, forbidden("caller is not a participant of this meeting")
}

// InitiateBooking creates a meeting for a client, reusing the client's most
// recent counselor when that counselor is still active
func (s *MeetingService) InitiateBooking(ctx context.Context, p models.Principal, req BookingRequest) (*models.Meeting, error) {
	if !p.IsClient() {
		return nil, forbidden("only clients can request a meeting")
	}
	details := map[string]string{}
	if !req.MeetingType.IsValid() {
		details["meeting_type"] = "must be virtual or physical"
	}
	description := strings.TrimSpace(req.IssueDescription)
	if description == "" {
		details["issue_description"] = "is required"
	} else if len(description) > maxIssueDescription {
		details["issue_description"] = fmt.Sprintf("at most %d characters", maxIssueDescription)
	}
	duration := req.MeetingDuration
	if duration == 0 {
		duration = s.policy.DefaultDuration
	}
	if duration < minMeetingDuration || duration > maxMeetingDuration {
		details["meeting_duration"] = fmt.Sprintf("must be between %d and %d minutes", minMeetingDuration, maxMeetingDuration)
	}
	if len(details) > 0 {
		return nil, validation("invalid booking request", details)
	}

	now := s.clock.Now()
	m := &models.Meeting{
		ClientID:         p.UserID,
		MeetingType:      req.MeetingType,
		IssueDescription: description,
		MeetingDuration:  duration,
		Status:           models.StatusRequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if counselorID := s.previousCounselor(ctx, p.UserID); counselorID != "" {
		m.CounselorID = counselorID
		m.Status = models.StatusCounselorAssigned
	}

	if err := s.meetings.Create(ctx, m); err != nil {
		logger.LogError(err, "Failed to create meeting", map[string]interface{}{"client_id": p.UserID})
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	logger.LogMeetingEvent("created", m.ID.Hex(), "", string(m.Status), map[string]interface{}{
		"meeting_type":  m.MeetingType,
		"auto_assigned": m.CounselorID != "",
	})
	s.announce(m, EventMeetingCreated)
	if m.CounselorID != "" {
		s.notifier.Notify(m.CounselorID, TemplateMeetingAssigned, s.notificationData(m))
	}
	return m, nil
}

func (s *MeetingService) previousCounselor(ctx context.Context, clientID string) string {
	counselorID, err := s.meetings.LatestCounselorForClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.LogError(err, "lookup previous counselor", map[string]interface{}{"client_id": clientID})
		}
		return ""
	}
	counselor, err := s.counselors.GetByID(ctx, counselorID)
	if err != nil || !counselor.IsActive {
		return ""
	}
	return counselorID
}

// AssignCounselor attaches a counselor to a pending request
func (s *MeetingService) AssignCounselor(ctx context.Context, p models.Principal, id primitive.ObjectID, counselorID string) (*models.Meeting, error) {
	if !p.IsAdmin() {
		return nil, forbidden("only admins can assign counselors")
	}
	counselor, err := s.counselors.GetByID(ctx, counselorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("counselor")
		}
		return nil, fmt.Errorf("load counselor: %w", err)
	}
	if !counselor.IsActive {
		return nil, validation("counselor is not active", map[string]string{"counselor_id": counselorID})
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	m, err := s.meetings.Transition(ctx, id, sourcesOf(models.StatusCounselorAssigned), repository.MeetingChanges{
		Status:          models.StatusCounselorAssigned,
		CounselorID:     &counselorID,
		AdminAssignedBy: &p.UserID,
		AdminAssignedAt: &now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, s.writeFailed(ctx, id, err, "assign", current.Status)
	}

	logger.LogAdminAction(p.UserID, "assign_counselor", m.ID.Hex(), map[string]interface{}{"counselor_id": counselorID})
	logger.LogMeetingEvent("assigned", m.ID.Hex(), string(current.Status), string(m.Status), nil)
	s.announce(m, EventMeetingAssigned)
	s.notifier.Notify(counselorID, TemplateMeetingAssigned, s.notificationData(m))
	return m, nil
}

// SelectTime books a slot for the meeting and starts the response window
func (s *MeetingService) SelectTime(ctx context.Context, p models.Principal, id primitive.ObjectID, date, clockTime string) (*models.Meeting, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsClient() || !current.IsClient(p.UserID) {
		return nil, forbidden("only the meeting's client can select a time")
	}
	if current.Status != models.StatusCounselorAssigned || current.CounselorID == "" {
		return nil, invalidState("select a time for", current.Status)
	}

	counselor, err := s.counselors.GetByID(ctx, current.CounselorID)
	if err != nil {
		return nil, fmt.Errorf("load counselor: %w", err)
	}
	now := s.clock.Now()
	if _, err := s.slots.ValidateSelection(ctx, counselor, date, clockTime, now); err != nil {
		return nil, err
	}

	loc, _ := counselor.Location()
	timezone := loc.String()
	hold := models.SlotKey(current.CounselorID, date, clockTime)
	deadline := now.Add(s.policy.ResponseWindow)
	m, err := s.meetings.Transition(ctx, id, []models.MeetingStatus{models.StatusCounselorAssigned}, repository.MeetingChanges{
		Status:                    models.StatusTimeSelected,
		MeetingDate:               &date,
		MeetingTime:               &clockTime,
		Timezone:                  &timezone,
		SlotHold:                  &hold,
		CounselorResponseDeadline: &deadline,
		AutoExpireAt:              &deadline,
		UpdatedAt:                 now,
	})
	if err != nil {
		return nil, s.writeFailed(ctx, id, err, "select a time for", current.Status)
	}

	logger.LogMeetingEvent("time_selected", m.ID.Hex(), string(current.Status), string(m.Status), map[string]interface{}{
		"meeting_date": date,
		"meeting_time": clockTime,
	})
	s.announce(m, EventMeetingTimeSelected)
	s.notifier.Notify(m.CounselorID, TemplateMeetingTimeSelected, s.notificationData(m))
	return m, nil
}

// AcceptMeeting confirms a selected slot, provisioning the video room for
// virtual meetings before committing
func (s *MeetingService) AcceptMeeting(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Meeting, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsCounselor() || current.CounselorID != p.UserID {
		return nil, forbidden("only the assigned counselor can accept this meeting")
	}
	if current.Status != models.StatusTimeSelected {
		return nil, invalidState("accept", current.Status)
	}
	if current.MeetingDate == "" || current.MeetingTime == "" {
		return nil, validation("meeting has no date or time", nil)
	}

	now := s.clock.Now()
	if current.AutoExpireAt != nil && now.After(*current.AutoExpireAt) {
		if _, err := s.expire(ctx, current); err != nil && !errors.Is(err, ErrInvalidState) {
			logger.LogError(err, "expire meeting on late accept", map[string]interface{}{"meeting_id": current.ID.Hex()})
		}
		return nil, expired("the response window for this meeting has passed")
	}

	scheduledAt, err := current.ScheduledAt()
	if err != nil {
		return nil, validation("meeting date or time is malformed", map[string]string{"meeting": err.Error()})
	}

	changes := repository.MeetingChanges{
		Status:    models.StatusConfirmed,
		UpdatedAt: now,
	}
	var room *Room
	if current.MeetingType == models.MeetingTypeVirtual {
		room, err = s.video.CreateRoom(ctx, current.ID.Hex(), scheduledAt, current.Duration())
		if err != nil {
			logger.LogError(err, "Failed to provision video room", map[string]interface{}{"meeting_id": current.ID.Hex()})
			return nil, external("could not provision the video room", err)
		}
		graceActive := true
		graceEnd := scheduledAt.Add(current.Duration()).Add(s.policy.GracePeriod)
		changes.DailyRoomName = &room.Name
		changes.DailyRoomURL = &room.URL
		changes.GraceActive = &graceActive
		changes.GraceEndTime = &graceEnd
	}

	m, err := s.meetings.Transition(ctx, id, []models.MeetingStatus{models.StatusTimeSelected}, changes)
	if err != nil {
		latest, _ := s.meetings.GetByID(ctx, id)
		// A concurrent accept may have committed the same room name.
		if room != nil && (latest == nil || latest.DailyRoomName != room.Name) {
			s.releaseRoom(room.Name, current.ID)
		}
		if latest != nil && errors.Is(err, repository.ErrStateMismatch) {
			return nil, invalidState("accept", latest.Status)
		}
		return nil, fromRepo(err, "accept", current.Status)
	}

	logger.LogMeetingEvent("confirmed", m.ID.Hex(), string(current.Status), string(m.Status), map[string]interface{}{
		"room": m.DailyRoomName,
	})
	s.announce(m, EventMeetingConfirmed)
	s.notifier.Notify(m.ClientID, TemplateMeetingConfirmed, s.notificationData(m))
	return m, nil
}

// expire moves a meeting whose response window passed to cancelled
func (s *MeetingService) expire(ctx context.Context, m *models.Meeting) (*models.Meeting, error) {
	reason := "expired"
	by := "system"
	return s.finalize(ctx, m, []models.MeetingStatus{models.StatusTimeSelected}, models.StatusCancelled, repository.MeetingChanges{
		CancellationReason: &reason,
		CancelledBy:        &by,
	}, EventMeetingCancelled)
}

// CancelMeeting cancels a meeting that has not been confirmed yet
func (s *MeetingService) CancelMeeting(ctx context.Context, p models.Principal, id primitive.ObjectID, reason string) (*models.Meeting, error) {
	current, err := s.loadForParty(ctx, p, id, true)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, validation("cancellation reason is too long", map[string]string{"reason": "at most 500 characters"})
	}
	if !CanTransition(current.Status, models.StatusCancelled) {
		return nil, invalidState("cancel", current.Status)
	}

	by := p.Role
	m, err := s.finalize(ctx, current, sourcesOf(models.StatusCancelled), models.StatusCancelled, repository.MeetingChanges{
		CancellationReason: &reason,
		CancelledBy:        &by,
	}, EventMeetingCancelled)
	if err != nil {
		return nil, err
	}
	for _, recipient := range []string{m.ClientID, m.CounselorID} {
		if recipient != p.UserID {
			s.notifier.Notify(recipient, TemplateMeetingCancelled, s.notificationData(m))
		}
	}
	return m, nil
}

// ReportNoShow marks a confirmed meeting abandoned
func (s *MeetingService) ReportNoShow(ctx context.Context, p models.Principal, id primitive.ObjectID, reason string) (*models.Meeting, error) {
	current, err := s.loadForParty(ctx, p, id, false)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusConfirmed {
		return nil, invalidState("report a no-show for", current.Status)
	}
	if err := s.requireStarted(current); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	by := p.Role
	m, err := s.finalize(ctx, current, []models.MeetingStatus{models.StatusConfirmed}, models.StatusAbandoned, repository.MeetingChanges{
		NoShowReason:     &reason,
		NoShowReportedBy: &by,
	}, EventMeetingResolved)
	if err != nil {
		return nil, err
	}
	for _, recipient := range []string{m.ClientID, m.CounselorID} {
		if recipient != p.UserID {
			s.notifier.Notify(recipient, TemplateMeetingNoShow, s.notificationData(m))
		}
	}
	return m, nil
}

// CompleteMeeting explicitly completes a confirmed meeting
func (s *MeetingService) CompleteMeeting(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Meeting, error) {
	current, err := s.loadForParty(ctx, p, id, true)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusConfirmed {
		return nil, invalidState("complete", current.Status)
	}
	if err := s.requireStarted(current); err != nil {
		return nil, err
	}
	return s.finalize(ctx, current, []models.MeetingStatus{models.StatusConfirmed}, models.StatusCompleted, repository.MeetingChanges{}, EventMeetingCompleted)
}

func (s *MeetingService) requireStarted(m *models.Meeting) error {
	scheduledAt, err := m.ScheduledAt()
	if err != nil {
		return validation("meeting date or time is malformed", nil)
	}
	if s.clock.Now().Before(scheduledAt) {
		return validation("the meeting has not started yet", nil)
	}
	return nil
}

// finalize applies a transition into a status that ends the booking phase
// and runs the outcome bookkeeping. The repository write is the commit
// point; bookkeeping and side effects after it never undo it.
func (s *MeetingService) finalize(ctx context.Context, current *models.Meeting, from []models.MeetingStatus, to models.MeetingStatus, ch repository.MeetingChanges, event string) (*models.Meeting, error) {
	now := s.clock.Now()
	ch.Status = to
	ch.UpdatedAt = now
	if current.Status == models.StatusConfirmed {
		inactive := false
		ch.GraceActive = &inactive
	}
	if to == models.StatusCompleted {
		ch.CompletedAt = &now
	}

	m, err := s.meetings.Transition(ctx, current.ID, from, ch)
	if err != nil {
		return nil, s.writeFailed(ctx, current.ID, err, "finalize", current.Status)
	}

	if err := s.ratings.RecordOutcome(ctx, m, to); err != nil {
		logger.LogError(err, "record meeting outcome", map[string]interface{}{
			"meeting_id": m.ID.Hex(),
			"status":     to,
		})
	}
	if m.DailyRoomName != "" && to != models.StatusCancelled {
		s.releaseRoom(m.DailyRoomName, m.ID)
	}

	logger.LogMeetingEvent(string(to), m.ID.Hex(), string(current.Status), string(m.Status), nil)
	s.announce(m, event)
	return m, nil
}

// writeFailed maps a failed conditional write. A state mismatch is reported
// with the status the meeting has now rather than the one read earlier.
func (s *MeetingService) writeFailed(ctx context.Context, id primitive.ObjectID, err error, op string, stale models.MeetingStatus) error {
	if errors.Is(err, repository.ErrStateMismatch) {
		if latest, loadErr := s.meetings.GetByID(ctx, id); loadErr == nil {
			return invalidState(op, latest.Status)
		}
	}
	return fromRepo(err, op, stale)
}

// joinWindow is [scheduledAt - lead, scheduledAt + duration]
func (s *MeetingService) joinWindow(m *models.Meeting, scheduledAt time.Time) (time.Time, time.Time) {
	return scheduledAt.Add(-s.policy.JoinLeadTime), scheduledAt.Add(m.Duration())
}

// releaseRoom deletes a room in the background; failures are only logged
// since the provider expires rooms on its own
func (s *MeetingService) releaseRoom(roomName string, meetingID primitive.ObjectID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.video.DeleteRoom(ctx, roomName); err != nil {
			logger.LogError(err, "Failed to delete video room", map[string]interface{}{
				"meeting_id": meetingID.Hex(),
				"room":       roomName,
			})
		}
	}()
}

// MarkJoined records that a participant entered the meeting
func (s *MeetingService) MarkJoined(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Meeting, error) {
	current, err := s.loadForParty(ctx, p, id, false)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusConfirmed {
		return nil, invalidState("join", current.Status)
	}
	scheduledAt, err := current.ScheduledAt()
	if err != nil {
		return nil, validation("meeting date or time is malformed", nil)
	}
	now := s.clock.Now()
	opensAt, closesAt := s.joinWindow(current, scheduledAt)
	if now.Before(opensAt) {
		return nil, validation("join window not open", map[string]string{"opens_at": opensAt.Format(time.RFC3339)})
	}
	if now.After(closesAt) {
		return nil, expired("the meeting has ended")
	}

	m, err := s.meetings.SetPresence(ctx, id, participantOf(current, p), true, now)
	if err != nil {
		return nil, s.writeFailed(ctx, id, err, "join", current.Status)
	}
	logger.LogUserAction(p.UserID, "join_meeting", map[string]interface{}{"meeting_id": m.ID.Hex()})
	s.announcePresence(m, p, EventPresenceJoined)
	return m, nil
}

// MarkLeft announces that a participant left. Attendance flags are kept:
// they record that the participant showed up at all.
func (s *MeetingService) MarkLeft(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.Meeting, error) {
	m, err := s.loadForParty(ctx, p, id, false)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusConfirmed {
		return nil, invalidState("leave", m.Status)
	}
	logger.LogUserAction(p.UserID, "leave_meeting", map[string]interface{}{"meeting_id": m.ID.Hex()})
	s.announcePresence(m, p, EventPresenceLeft)
	return m, nil
}

func participantOf(m *models.Meeting, p models.Principal) repository.Participant {
	if m.IsClient(p.UserID) {
		return repository.ClientParticipant
	}
	return repository.CounselorParticipant
}

// GetMeetingToken issues a video token inside the join window
func (s *MeetingService) GetMeetingToken(ctx context.Context, p models.Principal, id primitive.ObjectID) (*JoinToken, error) {
	m, err := s.loadForParty(ctx, p, id, false)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusConfirmed {
		return nil, invalidState("join", m.Status)
	}
	if m.MeetingType != models.MeetingTypeVirtual || m.DailyRoomName == "" {
		return nil, validation("meeting has no video room", nil)
	}
	scheduledAt, err := m.ScheduledAt()
	if err != nil {
		return nil, validation("meeting date or time is malformed", nil)
	}

	now := s.clock.Now()
	opensAt, closesAt := s.joinWindow(m, scheduledAt)
	if now.Before(opensAt) {
		return nil, validation("join window not open", map[string]string{"opens_at": opensAt.Format(time.RFC3339)})
	}
	if now.After(closesAt) {
		return nil, expired("the meeting has ended")
	}

	token, err := s.video.CreateToken(ctx, TokenRequest{
		RoomName:    m.DailyRoomName,
		UserID:      p.UserID,
		IsClient:    m.IsClient(p.UserID),
		ScheduledAt: scheduledAt,
		Duration:    m.Duration(),
	})
	if err != nil {
		logger.LogError(err, "Failed to create meeting token", map[string]interface{}{"meeting_id": m.ID.Hex()})
		return nil, external("could not issue a meeting token", err)
	}
	return &JoinToken{
		Token:     token,
		RoomName:  m.DailyRoomName,
		RoomURL:   m.DailyRoomURL,
		NotBefore: opensAt,
		ExpiresAt: closesAt,
	}, nil
}

// GetMeeting returns a meeting with its counselor resolved when possible
func (s *MeetingService) GetMeeting(ctx context.Context, p models.Principal, id primitive.ObjectID) (*models.MeetingView, error) {
	m, err := s.loadForParty(ctx, p, id, true)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, m), nil
}

// ListMeetings lists the caller's meetings; admins see all of them
func (s *MeetingService) ListMeetings(ctx context.Context, p models.Principal, status models.MeetingStatus, limit int) ([]*models.MeetingView, error) {
	if status != "" && !status.IsValid() {
		return nil, validation("unknown status filter", map[string]string{"status": string(status)})
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := repository.MeetingFilter{Status: status, Limit: limit}
	switch {
	case p.IsClient():
		filter.ClientID = p.UserID
	case p.IsCounselor():
		filter.CounselorID = p.UserID
	case !p.IsAdmin():
		return nil, forbidden("unknown role")
	}

	meetings, err := s.meetings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	views := make([]*models.MeetingView, 0, len(meetings))
	profiles := map[string]*models.Counselor{}
	for _, m := range meetings {
		views = append(views, s.viewCached(ctx, m, profiles))
	}
	return views, nil
}

// AvailableSlots delegates to the slot allocator
func (s *MeetingService) AvailableSlots(ctx context.Context, counselorID, date string) ([]Slot, error) {
	return s.slots.AvailableSlots(ctx, counselorID, date)
}

func (s *MeetingService) view(ctx context.Context, m *models.Meeting) *models.MeetingView {
	return s.viewCached(ctx, m, map[string]*models.Counselor{})
}

func (s *MeetingService) viewCached(ctx context.Context, m *models.Meeting, cache map[string]*models.Counselor) *models.MeetingView {
	v := &models.MeetingView{Meeting: m}
	if m.CounselorID == "" {
		return v
	}
	c, ok := cache[m.CounselorID]
	if !ok {
		loaded, err := s.counselors.GetByID(ctx, m.CounselorID)
		if err == nil {
			c = loaded
		}
		cache[m.CounselorID] = c
	}
	if c == nil {
		v.Counselor = models.Unresolved[models.CounselorProfile](m.CounselorID)
		return v
	}
	v.Counselor = models.Resolved(m.CounselorID, c.Profile())
	return v
}

func (s *MeetingService) announce(m *models.Meeting, event string) {
	payload := map[string]interface{}{
		"meeting_id": m.ID.Hex(),
		"status":     m.Status,
	}
	for _, userID := range []string{m.ClientID, m.CounselorID} {
		if userID != "" {
			s.presence.Publish(UserTopic(userID), event, payload)
		}
	}
}

func (s *MeetingService) announcePresence(m *models.Meeting, p models.Principal, event string) {
	role := models.RoleCounselor
	if m.IsClient(p.UserID) {
		role = models.RoleClient
	}
	payload := map[string]interface{}{
		"meeting_id": m.ID.Hex(),
		"role":       role,
	}
	for _, userID := range []string{m.ClientID, m.CounselorID} {
		if userID != "" && userID != p.UserID {
			s.presence.Publish(UserTopic(userID), event, payload)
		}
	}
}

func (s *MeetingService) notificationData(m *models.Meeting) map[string]interface{} {
	return map[string]interface{}{
		"meeting_id":   m.ID.Hex(),
		"status":       string(m.Status),
		"meeting_date": m.MeetingDate,
		"meeting_time": m.MeetingTime,
		"meeting_type": string(m.MeetingType),
	}
}
