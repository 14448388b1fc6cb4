package model

import (
	"errors"
	"fmt"
)

// ValidationError is returned when request fields are rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError is returned when a uniqueness rule would be violated.
type ConflictError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError is returned when a required record does not exist.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return e.Resource + ": " + e.Err.Error()
	}
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error { return e.Err }

type ForbiddenError struct {
	Reason string
	Err    error
}

func (e *ForbiddenError) Error() string { return e.Reason }

func (e *ForbiddenError) Unwrap() error { return e.Err }

var (
	// Ingest
	ErrStepsNegative          = errors.New("steps must be >= 0")
	ErrStepsTooHigh           = errors.New("steps_today exceeds the daily maximum")
	ErrFutureDay              = errors.New("day is in the future")
	ErrDeviceBoundToOtherUser = errors.New("device already submitted a different username today")
	ErrBanned                 = errors.New("player or device is banned on this server")

	// Claims
	ErrMinStepsNegative   = errors.New("min_steps must be >= 0")
	ErrOutsideClaimWindow = errors.New("day is outside the claim window")
	ErrStepRecordNotFound = errors.New("no step record for that day")
	ErrNotEligible        = errors.New("not enough steps for this tier")
	ErrUnknownTier        = errors.New("no reward tier with that min_steps")

	// Catalog
	ErrTierLabelEmpty = errors.New("label cannot be empty")

	// Identity
	ErrPlayerNotFound = errors.New("player not registered on this server")
	ErrServerNotFound = errors.New("server not found")
	ErrNotServerOwner = errors.New("not the owner of this server")

	// Push
	ErrInvalidPlatform    = errors.New("platform must be ios or android")
	ErrTokenRequired      = errors.New("token is required")
	ErrMessageRequired    = errors.New("message is required")
	ErrMessageTooLong     = errors.New("message too long")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrScheduleInPast     = errors.New("scheduled time must be in the future")
	ErrInvalidScheduleAt  = errors.New("scheduled_at must be ISO 8601")
	ErrNotificationExists = errors.New("a notification is already scheduled for that day")
	ErrNoTokensForEnv     = errors.New("no push tokens registered for this environment")

	// Settings and general input
	ErrBufferDaysNegative = errors.New("claim_buffer_days must be >= 0")
	ErrIdentifierRequired = errors.New("identifier is required")
	ErrLimitOutOfRange    = errors.New("limit must be between 1 and 1000")
)

// Validation wraps a sentinel into a ValidationError for field.
func Validation(field string, err error) error {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

func Conflict(resource string, err error) error {
	return &ConflictError{Resource: resource, Reason: err.Error(), Err: err}
}

func NotFound(resource string, err error) error {
	return &NotFoundError{Resource: resource, Err: err}
}

func Forbidden(err error) error {
	return &ForbiddenError{Reason: err.Error(), Err: err}
}
