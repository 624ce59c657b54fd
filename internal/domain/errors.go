package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the quiz and feed services unwraps to
// exactly one of these so the transport can map it without knowing the detail.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbiddenOperation = errors.New("operation not allowed")
	ErrUnauthorized       = errors.New("unauthorized")
)

var (
	// ErrQuizNotFound is returned when a quiz does not exist in the named course.
	ErrQuizNotFound = kindError(ErrNotFound, "quiz not found")
	// ErrQuestionNotFound is returned when a question id is absent from its quiz.
	ErrQuestionNotFound = kindError(ErrNotFound, "question not found")
	// ErrFeedItemNotFound is returned for missing or cross-course feed items.
	ErrFeedItemNotFound = kindError(ErrNotFound, "feed item not found")
	// ErrQuizClosed rejects submissions to a CLOSED quiz.
	ErrQuizClosed = kindError(ErrForbiddenOperation, "quiz is closed for submissions")
	// ErrAutoItemImmutable rejects edits and deletes of system generated feed items.
	ErrAutoItemImmutable = kindError(ErrForbiddenOperation, "automatic feed events cannot be modified")
	// ErrCredentialMissing and ErrCredentialInvalid reject lecturer operations.
	ErrCredentialMissing = kindError(ErrUnauthorized, "lecturer token is required")
	ErrCredentialInvalid = kindError(ErrUnauthorized, "lecturer token is invalid")
)

type kinded struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &kinded{kind: kind, msg: msg}
}

func (e *kinded) Error() string { return e.msg }
func (e *kinded) Unwrap() error { return e.kind }

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
