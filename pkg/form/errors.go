package form

import (
	"errors"
	"fmt"
)

// ErrUnknownField is matched by UnknownFieldError.
var ErrUnknownField = errors.New("form: unknown field")

// UnknownFieldError reports a field name the form model does not declare.
type UnknownFieldError struct {
	Field string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("form: unknown field %q", e.Field)
}

// Is allows errors.Is(err, ErrUnknownField).
func (e UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField
}
