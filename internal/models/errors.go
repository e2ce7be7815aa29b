package models

import "errors"

var (
	// ErrDuplicateIdentity is returned by stores when an insert collides with
	// an existing (source name, event URL) pair.
	ErrDuplicateIdentity = errors.New("event with this source identity already exists")

	// ErrEventNotFound is returned when an event ID does not exist.
	ErrEventNotFound = errors.New("event not found")
)
