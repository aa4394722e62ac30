package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrIntegrity is returned when a write would break a ledger or graph invariant
	ErrIntegrity = errors.New("integrity violation")
	// ErrConflict is returned when a concurrent writer won and the caller may retry
	ErrConflict = errors.New("concurrent update conflict")
	// ErrUnauthorized is returned when a caller is not authenticated
	ErrUnauthorized = errors.New("unauthorized")
)
