package utils

import (
	"strings"
	"time"

	"counselmeet/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("hhmm", validateClock)
	validate.RegisterValidation("isodate", validateISODate)
	validate.RegisterValidation("meeting_type", validateMeetingType)
	validate.RegisterValidation("objectid", validateObjectID)
}

// ValidationError represents validation error details
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidateStruct validates a struct and returns user-friendly error messages
func ValidateStruct(s interface{}) []ValidationError {
	var errors []ValidationError

	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: "body", Tag: "invalid", Message: err.Error()}}
	}
	for _, fe := range fieldErrors {
		errors = append(errors, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Tag:     fe.Tag(),
			Value:   fe.Param(),
			Message: getErrorMessage(fe),
		})
	}
	return errors
}

// ValidationErrorMap flattens errors into field -> message
func ValidationErrorMap(errs []ValidationError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Message
	}
	return out
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := models.ParseClock(fl.Field().String())
	return err == nil && len(fl.Field().String()) == 5
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}

func validateMeetingType(fl validator.FieldLevel) bool {
	return models.MeetingType(fl.Field().String()).IsValid()
}

func validateObjectID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "This field must be at least " + fe.Param()
	case "max":
		return "This field must be no more than " + fe.Param()
	case "hhmm":
		return "Time must use the HH:MM format"
	case "isodate":
		return "Date must use the YYYY-MM-DD format"
	case "meeting_type":
		return "Meeting type must be virtual or physical"
	case "objectid":
		return "Must be a valid identifier"
	default:
		return "This field is invalid"
	}
}
