package store

import "errors"

var (
	// ErrNotFound is returned when a session has no persisted document
	ErrNotFound = errors.New("session document not found")

	// ErrCorrupt is returned when a persisted document cannot be decoded
	ErrCorrupt = errors.New("session document corrupt")

	// ErrIO is returned when the durability layer fails to read or write
	ErrIO = errors.New("store i/o failure")
)
