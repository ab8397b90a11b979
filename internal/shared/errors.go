package shared

import "errors"

// Error taxonomy shared by all modules. Services wrap these with context via
// fmt.Errorf and the HTTP layer maps them to responses with errors.Is.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate record or a lost optimistic-lock race.
	ErrConflict = errors.New("conflict")
	// ErrPrecondition indicates the record exists but is not in a state that
	// allows the requested mutation.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the actor lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
