package store

import "github.com/google/uuid"

// IDGenerator mints record ids for records created without one.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function into an IDGenerator.
type IDGeneratorFunc func() string

// NewID delegates to the underlying function.
func (fn IDGeneratorFunc) NewID() string {
	return fn()
}

// UUIDGenerator produces time-ordered UUIDv7 strings.
type UUIDGenerator struct{}

// NewID returns a fresh UUIDv7.
func (UUIDGenerator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
