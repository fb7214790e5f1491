package leave

import "errors"

var (
	// ErrRequestNotFound is returned when the referenced request is missing.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrInvalidState is returned when a transition is not allowed from the
	// request's current status (e.g. cancelling an approved request).
	ErrInvalidState = errors.New("invalid request state for this operation")

	// ErrInvalidDateRange is returned when the end date precedes the start.
	ErrInvalidDateRange = errors.New("end date before start date")
)
