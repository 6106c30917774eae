package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoRecords is reported when an action needs a row and the form has
	// none.
	ErrNoRecords = errors.New("tui: form has no rows")
)
