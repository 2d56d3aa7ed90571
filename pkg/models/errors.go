package models

import (
	"errors"
)

// Error taxonomy shared across the core. The gateway maps these to HTTP
// statuses; internal callers test with errors.Is.
var (
	// ErrUnauthenticated indicates a missing or invalid caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates a cross-tenant access without the admin
	// capability.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates an unknown resource, file, or category.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate resource or category.
	ErrConflict = errors.New("conflict")

	// ErrUnsupportedFormat indicates a MIME type no processor handles.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrTooLarge indicates an upload over the configured size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation failed")

	// ErrProcessor indicates a file processor failure. Any partially
	// written blob is rolled back.
	ErrProcessor = errors.New("processor error")
)
