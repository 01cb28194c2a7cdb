package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"counselmeet/internal/services"
	"counselmeet/internal/utils"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func serveError(err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	ServiceErrorResponse(c, err, "test")
	return w
}

func TestServiceErrorResponse(t *testing.T) {
	tests := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.KindNotFound, http.StatusNotFound},
		{services.KindInvalidState, http.StatusConflict},
		{services.KindConflict, http.StatusConflict},
		{services.KindValidation, http.StatusBadRequest},
		{services.KindExternal, http.StatusBadGateway},
		{services.KindExpired, http.StatusGone},
		{services.KindForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("handler: %w", &services.MeetingError{
				Kind:    tt.kind,
				Message: "boom",
				Details: map[string]string{"field": "bad"},
			})
			w := serveError(err)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			var resp utils.APIResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error.Code != string(tt.kind) || resp.Error.Details["field"] != "bad" {
				t.Fatalf("response = %+v", resp.Error)
			}
		})
	}
}

func TestServiceErrorResponseHidesUntypedErrors(t *testing.T) {
	w := serveError(errors.New("mongo: connection refused on 10.0.0.5"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
}

func TestBindBodyOptional(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	var req reasonRequest
	if !bindBody(c, &req, true) {
		t.Fatalf("empty optional body rejected: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"reason":`))
	if bindBody(c, &req, true) {
		t.Fatal("malformed body accepted")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"reason":"`+strings.Repeat("x", 501)+`"}`))
	if bindBody(c, &req, true) {
		t.Fatal("overlong reason accepted")
	}
}
