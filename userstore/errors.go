package userstore

import "errors"

var (
	// ErrDuplicateKey is returned when creating a user whose id is
	// already taken.
	ErrDuplicateKey = errors.New("mortise: user already exists")

	// ErrConcurrentModification is returned when the version-token
	// precondition fails on update, delete, or rename (optimistic lock).
	ErrConcurrentModification = errors.New("mortise: user was modified concurrently")

	// ErrInvalidArgument is returned when a required argument is nil,
	// empty, or malformed. It is detected before any backend I/O.
	ErrInvalidArgument = errors.New("mortise: invalid argument")
)
