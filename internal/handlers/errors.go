package handlers

import (
	"errors"
	"io"
	"net/http"

	"counselmeet/internal/middleware"
	"counselmeet/internal/models"
	"counselmeet/internal/services"
	"counselmeet/internal/utils"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:     http.StatusNotFound,
	services.KindInvalidState: http.StatusConflict,
	services.KindConflict:     http.StatusConflict,
	services.KindValidation:   http.StatusBadRequest,
	services.KindExternal:     http.StatusBadGateway,
	services.KindExpired:      http.StatusGone,
	services.KindForbidden:    http.StatusForbidden,
}

// ServiceErrorResponse maps a service error onto the API error envelope.
// Untyped errors are logged and reported as 500 without their text.
func ServiceErrorResponse(c *gin.Context, err error, operation string) {
	var me *services.MeetingError
	if errors.As(err, &me) {
		if status, ok := kindStatus[me.Kind]; ok {
			if me.Kind == services.KindExternal {
				logger.LogError(err, operation, map[string]interface{}{"request_id": c.GetString("request_id")})
			}
			utils.ErrorResponseWithCode(c, status, string(me.Kind), me.Message, me.Details)
			return
		}
	}

	logger.LogError(err, operation, map[string]interface{}{
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
	})
	utils.InternalErrorResponse(c, "")
}

// principal returns the authenticated caller or writes a 401
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authentication required")
	}
	return p, ok
}

// meetingID parses the :id path parameter or writes a 400
func meetingID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, string(services.KindValidation), "Invalid meeting ID", map[string]string{"id": "must be a valid identifier"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// bindBody decodes and validates a JSON body. An empty body is accepted
// when optional is set.
func bindBody(c *gin.Context, dst interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			utils.ValidationErrorResponse(c, map[string]string{"body": "Invalid request format"})
			return false
		}
	}
	if errs := utils.ValidateStruct(dst); len(errs) > 0 {
		utils.ValidationErrorResponse(c, utils.ValidationErrorMap(errs))
		return false
	}
	return true
}
