package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. The API layer maps
// each of these to a user-facing message; none of them is fatal.

var (
	// Registration / lookup errors
	ErrAllFieldsRequired = errors.New("all registration fields are required")
	ErrUserNotFound      = errors.New("invalid user ID")
	ErrMeterMismatch     = errors.New("meter ID does not match the registered meter")
	ErrInvalidDate       = errors.New("invalid date")

	// Submission errors
	ErrDayComplete = errors.New("system maintenance in progress — data upload is not allowed at this time")

	// History errors
	ErrNoData         = errors.New("no data available")
	ErrIncompleteData = errors.New("incomplete data for the requested date")

	// Service state
	ErrDraining = errors.New("service is consolidating readings — try again shortly")
)
