package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID signals that a seed or inserted record reuses an id.
	ErrDuplicateID = errors.New("store: duplicate record id")
	// ErrUnknownRecord signals a mutation against an id the store does not hold.
	ErrUnknownRecord = errors.New("store: unknown record")
	// ErrIndexOutOfRange signals positional access past the store bounds.
	ErrIndexOutOfRange = errors.New("store: index out of range")
)

// DuplicateIDError reports the colliding id.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("store: duplicate record id %q", e.ID)
}

// Is makes errors.Is(err, ErrDuplicateID) hold.
func (e DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// UnknownRecordError reports the id that could not be found.
type UnknownRecordError struct {
	ID string
}

func (e UnknownRecordError) Error() string {
	return fmt.Sprintf("store: unknown record %q", e.ID)
}

// Is makes errors.Is(err, ErrUnknownRecord) hold.
func (e UnknownRecordError) Is(target error) bool {
	return target == ErrUnknownRecord
}

// IndexOutOfRangeError reports the offending index and the store length at
// the time of the call.
type IndexOutOfRangeError struct {
	Index  int
	Length int
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("store: index %d out of range [0,%d)", e.Index, e.Length)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) hold.
func (e IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
