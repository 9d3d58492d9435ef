package domain

import "errors"

var (
	// ErrTaskNotFound is returned when an audit task cannot be found in the database
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTaskType is returned for queue messages with an unknown type
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidStatus is returned when a status string is outside its enum
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPayload is returned when a queue message body is malformed
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrPositionNotFound is returned when a position or scraped position does not exist
	ErrPositionNotFound = errors.New("position not found")

	// ErrFetchFailed is returned when a page could not be rendered
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrExtractionInvalid is returned when the model output fails validation
	ErrExtractionInvalid = errors.New("extraction output invalid")

	// ErrNotificationFailed is returned when the notification endpoint rejects a broadcast
	ErrNotificationFailed = errors.New("notification delivery failed")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsValidationError reports whether err is a client-side problem that must
// not be retried.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrInvalidTaskType) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrPositionNotFound)
}
