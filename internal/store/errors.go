package store

import "errors"

var (
	// ErrNotFound is returned for lookup misses on comments and notifications.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when an actor mutates a resource it does not own.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrThreadNotFound is returned when a reply targets an annotation with no
	// surviving comments.
	ErrThreadNotFound = errors.New("thread not found")
)
