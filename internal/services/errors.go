package services

import (
	"errors"
	"fmt"

	"counselmeet/internal/models"
	"counselmeet/internal/repository"
)

// ErrorKind classifies failures so transports can map them
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindConflict     ErrorKind = "CONFLICT"
	KindValidation   ErrorKind = "VALIDATION_ERROR"
	KindExternal     ErrorKind = "EXTERNAL_SERVICE_FAILURE"
	KindExpired      ErrorKind = "EXPIRED"
	KindForbidden    ErrorKind = "FORBIDDEN"
)

// MeetingError is the typed error every service operation returns
type MeetingError struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

func (e *MeetingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MeetingError) Unwrap() error { return e.Err }

// Is matches the kind sentinels below
func (e *MeetingError) Is(target error) bool {
	t, ok := target.(*MeetingError)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotFound     = &MeetingError{Kind: KindNotFound}
	ErrInvalidState = &MeetingError{Kind: KindInvalidState}
	ErrConflict     = &MeetingError{Kind: KindConflict}
	ErrValidation   = &MeetingError{Kind: KindValidation}
	ErrExternal     = &MeetingError{Kind: KindExternal}
	ErrExpired      = &MeetingError{Kind: KindExpired}
	ErrForbidden    = &MeetingError{Kind: KindForbidden}
)

// KindOf returns the kind of err, or "" for untyped errors
func KindOf(err error) ErrorKind {
	var me *MeetingError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

func notFound(what string) error {
	return &MeetingError{Kind: KindNotFound, Message: what + " not found"}
}

func invalidState(op string, current models.MeetingStatus) error {
	return &MeetingError{
		Kind:    KindInvalidState,
		Message: fmt.Sprintf("cannot %s a meeting in status %s", op, current),
		Details: map[string]string{"status": string(current)},
	}
}

func conflict(msg string) error {
	return &MeetingError{Kind: KindConflict, Message: msg}
}

func validation(msg string, details map[string]string) error {
	return &MeetingError{Kind: KindValidation, Message: msg, Details: details}
}

func external(msg string, err error) error {
	return &MeetingError{Kind: KindExternal, Message: msg, Err: err}
}

func expired(msg string) error {
	return &MeetingError{Kind: KindExpired, Message: msg}
}

func forbidden(msg string) error {
	return &MeetingError{Kind: KindForbidden, Message: msg}
}

// fromRepo translates repository sentinels for operation op
func fromRepo(err error, op string, current models.MeetingStatus) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound("meeting")
	case errors.Is(err, repository.ErrStateMismatch):
		return invalidState(op, current)
	case errors.Is(err, repository.ErrSlotTaken):
		return conflict("the selected slot is no longer available")
	case errors.Is(err, repository.ErrAlreadyRated):
		return conflict("this session has already been rated")
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
