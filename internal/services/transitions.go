package services

import "counselmeet/internal/models"

// transitions is the meeting state graph. Terminal statuses have no edges.
var transitions = map[models.MeetingStatus][]models.MeetingStatus{
	models.StatusRequestPending:    {models.StatusCounselorAssigned, models.StatusCancelled},
	models.StatusCounselorAssigned: {models.StatusTimeSelected, models.StatusCancelled},
	models.StatusTimeSelected:      {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {
		models.StatusCompleted,
		models.StatusAbandoned,
		models.StatusClientOnly,
		models.StatusCounselorOnly,
		models.StatusIncomplete,
	},
}

// CanTransition reports whether from -> to is an edge of the graph
func CanTransition(from, to models.MeetingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf lists the statuses that may move to to
func sourcesOf(to models.MeetingStatus) []models.MeetingStatus {
	var out []models.MeetingStatus
	for _, from := range []models.MeetingStatus{
		models.StatusRequestPending,
		models.StatusCounselorAssigned,
		models.StatusTimeSelected,
		models.StatusConfirmed,
	} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
