package reports

import "errors"

var (
	// ErrUnauthorized is returned when a mutation has no caller identity.
	ErrUnauthorized = errors.New("caller identity required")
	// ErrForbidden is returned when the caller does not own the report.
	ErrForbidden = errors.New("report belongs to another user")
)

// ValidationError describes input that was rejected before any write.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	return e.Message
}
