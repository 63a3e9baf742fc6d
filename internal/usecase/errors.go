package usecase

import "errors"

// Error taxonomy shared by all services. Services wrap these with %w and an
// actionable message; handlers map them to HTTP status codes with errors.Is.
var (
	// ErrValidation - bad input shape or range (400)
	ErrValidation = errors.New("validation failed")

	// ErrForbidden - role/ownership/age check failed (403)
	ErrForbidden = errors.New("not allowed to perform this operation")

	// ErrNotFound - entity does not exist (404)
	ErrNotFound = errors.New("not found")

	// ErrConflict - invalid state transition or concurrent-write loss (409)
	ErrConflict = errors.New("conflicting state")

	// ErrGateway - payment or meeting provider failure; retried for payments,
	// best-effort-ignored for meetings
	ErrGateway = errors.New("upstream gateway failure")
)
