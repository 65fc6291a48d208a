package domain

import "errors"

// Error taxonomy surfaced across the service boundary. Storage maps driver
// constraint failures onto these; handlers map them onto HTTP statuses.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)
