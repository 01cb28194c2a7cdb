package handlers

import (
	"net/http"
	"strconv"

	"counselmeet/internal/services"
	"counselmeet/internal/utils"

	"github.com/gin-gonic/gin"
)

type RatingHandler struct {
	ratings *services.RatingService
}

func NewRatingHandler(ratings *services.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type submitRatingRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

func (h *RatingHandler) SubmitRating(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	var req submitRatingRequest
	if !bindBody(c, &req, false) {
		return
	}

	entry, err := h.ratings.SubmitRating(c.Request.Context(), p, id, req.Rating, req.Feedback)
	if err != nil {
		ServiceErrorResponse(c, err, "submit rating")
		return
	}
	utils.SuccessResponseWithMessage(c, "Rating submitted", entry)
}

func (h *RatingHandler) GetHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		utils.ErrorResponse(c, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}

	entries, err := h.ratings.History(c.Request.Context(), p, limit)
	if err != nil {
		ServiceErrorResponse(c, err, "list session history")
		return
	}
	utils.SuccessResponseWithMeta(c, entries, &utils.Meta{Limit: limit, Count: len(entries)})
}
