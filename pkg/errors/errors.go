package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error categories surfaced by the API.
type Kind string

// Supported error kinds.
const (
	KindValidation   Kind = "validation"
	KindConstraint   Kind = "constraint"
	KindState        Kind = "state"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindPersistence  Kind = "persistence"
	KindInternal     Kind = "internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so sentinel comparisons survive Clone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Kind: kind, Status: status, Message: message}
}

// Wrap attaches context to an existing error, keeping the template's code, kind and status.
func Wrap(err error, template *Error, message string) *Error {
	if template == nil {
		template = ErrInternal
	}
	if message == "" {
		message = template.Message
	}
	return &Error{Code: template.Code, Kind: template.Kind, Status: template.Status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation   = New("VALIDATION_ERROR", KindValidation, http.StatusBadRequest, "validation failed")
	ErrNotFound     = New("NOT_FOUND", KindNotFound, http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", KindForbidden, http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", KindUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrPersistence  = New("PERSISTENCE_ERROR", KindPersistence, http.StatusServiceUnavailable, "data store unavailable")
	ErrInternal     = New("INTERNAL_ERROR", KindInternal, http.StatusInternalServerError, "internal server error")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", KindUnauthorized, http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", KindForbidden, http.StatusForbidden, "account is inactive")

	ErrDuplicateRegistration = New("DUPLICATE_REGISTRATION", KindConstraint, http.StatusConflict, "course already registered for semester")
	ErrQuotaExceeded         = New("CREDIT_QUOTA_EXCEEDED", KindConstraint, http.StatusConflict, "credit unit limit exceeded")
	ErrPrerequisitesUnmet    = New("PREREQUISITES_UNMET", KindConstraint, http.StatusConflict, "prerequisites not satisfied")
	ErrRegistrationClosed    = New("REGISTRATION_CLOSED", KindConstraint, http.StatusConflict, "registration window is closed")
	ErrCourseInactive        = New("COURSE_INACTIVE", KindConstraint, http.StatusConflict, "course is not active")
	ErrCycleDetected         = New("PREREQUISITE_CYCLE", KindConstraint, http.StatusConflict, "prerequisite would create a cycle")
	ErrSelfPrerequisite      = New("SELF_PREREQUISITE", KindValidation, http.StatusBadRequest, "a course cannot be its own prerequisite")

	ErrInvalidTransition = New("INVALID_TRANSITION", KindState, http.StatusConflict, "transition not allowed from current state")

	ErrCacheMiss = New("CACHE_MISS", KindInternal, http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, "")
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]interface{}, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetails returns a copy of err carrying the structured details.
func WithDetails(err *Error, message string, details map[string]interface{}) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// KindOf reports the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a typed error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
