package database

import "errors"

// Sentinel errors surfaced to handlers, which map them to HTTP statuses.
var (
	// ErrUnresolvableLocation means no ward contains the point and none is
	// within the configured fallback radius.
	ErrUnresolvableLocation = errors.New("location not serviceable")

	// ErrDataIntegrity means a ward references a municipality that does not
	// exist. Server-side misconfiguration, not a user input problem.
	ErrDataIntegrity = errors.New("ward references unknown municipality")

	// ErrNoAuthority means the municipality has no Low-tier actor configured.
	ErrNoAuthority = errors.New("no authority configured")

	ErrValidation    = errors.New("invalid report payload")
	ErrNotFound      = errors.New("report not found")
	ErrNotRejected   = errors.New("report is not rejected")
	ErrNotOwner      = errors.New("report belongs to another reporter")
	ErrInvalidStatus = errors.New("invalid status")
)
