package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ClientAttrs is the input for registering or updating a client.
type ClientAttrs struct {
	Code  string `json:"code" validate:"required,max=16"`
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CandidateAttrs is the input for registering or updating a candidate.
type CandidateAttrs struct {
	NationalID    string `json:"national_id" validate:"required"`
	FullName      string `json:"full_name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"omitempty,max=40"`
	Email         string `json:"email" validate:"omitempty,email"`
	Experience    string `json:"experience" validate:"max=2000"`
	Availability  string `json:"availability" validate:"max=200"`
	Skills        string `json:"skills" validate:"max=2000"`
	HasReferences bool   `json:"has_references"`
	SleepsIn      bool   `json:"sleeps_in"`
}

// RequestAttrs is the input for creating a request.
type RequestAttrs struct {
	Position string `json:"position" validate:"required,max=200"`
	Modality string `json:"modality" validate:"omitempty,oneof=live_in live_out hourly"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ReplacementAttrs is the input for recording an assignment failure.
type ReplacementAttrs struct {
	OldCandidateID int64      `json:"old_candidate_id" validate:"required,gt=0"`
	Reason         string     `json:"reason"`
	PlannedStart   *time.Time `json:"planned_start,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct tags on an attrs value and converts the first
// failure into a validation error naming the JSON field.
func Validate(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return NewValidationError(fe.Field(), describeFieldError(fe))
	}
	return NewValidationError("", err.Error())
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
