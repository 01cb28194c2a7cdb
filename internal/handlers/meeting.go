package handlers

import (
	"net/http"
	"strconv"

	"counselmeet/internal/models"
	"counselmeet/internal/services"
	"counselmeet/internal/utils"

	"github.com/gin-gonic/gin"
)

type MeetingHandler struct {
	meetings *services.MeetingService
}

func NewMeetingHandler(meetings *services.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings}
}

type createMeetingRequest struct {
	MeetingType      string `json:"meeting_type" validate:"required,meeting_type"`
	IssueDescription string `json:"issue_description" validate:"required,max=2000"`
	MeetingDuration  int    `json:"meeting_duration" validate:"omitempty,min=15,max=180"`
}

type assignCounselorRequest struct {
	CounselorID string `json:"counselor_id" validate:"required"`
}

type selectTimeRequest struct {
	MeetingDate string `json:"meeting_date" validate:"required,isodate"`
	MeetingTime string `json:"meeting_time" validate:"required,hhmm"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Booking

func (h *MeetingHandler) CreateMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createMeetingRequest
	if !bindBody(c, &req, false) {
		return
	}

	m, err := h.meetings.InitiateBooking(c.Request.Context(), p, services.BookingRequest{
		MeetingType:      models.MeetingType(req.MeetingType),
		IssueDescription: req.IssueDescription,
		MeetingDuration:  req.MeetingDuration,
	})
	if err != nil {
		ServiceErrorResponse(c, err, "initiate booking")
		return
	}
	utils.CreatedResponse(c, "Meeting requested", m)
}

func (h *MeetingHandler) AssignCounselor(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req assignCounselorRequest
	if !bindBody(c, &req, false) {
		return
	}

	m, err := h.meetings.AssignCounselor(c.Request.Context(), p, id, req.CounselorID)
	if err != nil {
		ServiceErrorResponse(c, err, "assign counselor")
		return
	}
	utils.SuccessResponseWithMessage(c, "Counselor assigned", m)
}

func (h *MeetingHandler) SelectTime(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req selectTimeRequest
	if !bindBody(c, &req, false) {
		return
	}

	m, err := h.meetings.SelectTime(c.Request.Context(), p, id, req.MeetingDate, req.MeetingTime)
	if err != nil {
		ServiceErrorResponse(c, err, "select time")
		return
	}
	utils.SuccessResponseWithMessage(c, "Time selected", m)
}

func (h *MeetingHandler) AcceptMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	m, err := h.meetings.AcceptMeeting(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "accept meeting")
		return
	}
	utils.SuccessResponseWithMessage(c, "Meeting confirmed", m)
}

func (h *MeetingHandler) CancelMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindBody(c, &req, true) {
		return
	}

	m, err := h.meetings.CancelMeeting(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		ServiceErrorResponse(c, err, "cancel meeting")
		return
	}
	utils.SuccessResponseWithMessage(c, "Meeting cancelled", m)
}

// Outcomes

func (h *MeetingHandler) ReportNoShow(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindBody(c, &req, true) {
		return
	}

	m, err := h.meetings.ReportNoShow(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		ServiceErrorResponse(c, err, "report no-show")
		return
	}
	utils.SuccessResponseWithMessage(c, "No-show recorded", m)
}

func (h *MeetingHandler) CompleteMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	m, err := h.meetings.CompleteMeeting(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "complete meeting")
		return
	}
	utils.SuccessResponseWithMessage(c, "Meeting completed", m)
}

// Attendance

func (h *MeetingHandler) JoinMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	m, err := h.meetings.MarkJoined(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "join meeting")
		return
	}
	utils.SuccessResponse(c, m)
}

func (h *MeetingHandler) LeaveMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	m, err := h.meetings.MarkLeft(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "leave meeting")
		return
	}
	utils.SuccessResponse(c, m)
}

func (h *MeetingHandler) GetMeetingToken(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	token, err := h.meetings.GetMeetingToken(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "get meeting token")
		return
	}
	utils.SuccessResponse(c, token)
}

// Queries

func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}

	view, err := h.meetings.GetMeeting(c.Request.Context(), p, id)
	if err != nil {
		ServiceErrorResponse(c, err, "get meeting")
		return
	}
	utils.SuccessResponse(c, view)
}

func (h *MeetingHandler) ListMeetings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "limit must be a number")
		return
	}

	views, err := h.meetings.ListMeetings(c.Request.Context(), p, models.MeetingStatus(c.Query("status")), limit)
	if err != nil {
		ServiceErrorResponse(c, err, "list meetings")
		return
	}
	utils.SuccessResponseWithMeta(c, views, &utils.Meta{Limit: limit, Count: len(views)})
}

func (h *MeetingHandler) GetAvailableSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		utils.ValidationErrorResponse(c, map[string]string{"date": "This field is required"})
		return
	}

	slots, err := h.meetings.AvailableSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		ServiceErrorResponse(c, err, "list available slots")
		return
	}
	utils.SuccessResponseWithMeta(c, slots, &utils.Meta{Count: len(slots)})
}
