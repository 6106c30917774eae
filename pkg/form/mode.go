package form

import (
	"fmt"
	"strings"
)

// Mode selects when the engine schedules a validation pass.
type Mode string

const (
	// ModeOnChange validates after every field edit and array operation.
	ModeOnChange Mode = "onChange"
	// ModeOnBlur validates when a field edit session ends.
	ModeOnBlur Mode = "onBlur"
	// ModeOnSubmit validates only on Submit or Trigger.
	ModeOnSubmit Mode = "onSubmit"
	// ModeOnTouched validates on the first blur of a field and on every
	// change after that.
	ModeOnTouched Mode = "onTouched"
	// ModeAll validates on both change and blur.
	ModeAll Mode = "all"
)

var modeAliases = map[string]Mode{
	"onchange":  ModeOnChange,
	"change":    ModeOnChange,
	"onblur":    ModeOnBlur,
	"blur":      ModeOnBlur,
	"onsubmit":  ModeOnSubmit,
	"submit":    ModeOnSubmit,
	"ontouched": ModeOnTouched,
	"touched":   ModeOnTouched,
	"all":       ModeAll,
}

// ParseMode resolves a mode name. Matching ignores case, dashes and
// underscores, so "on-blur" and "ON_BLUR" both resolve to ModeOnBlur.
func ParseMode(raw string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if mode, ok := modeAliases[key]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("form: unknown mode %q", raw)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeOnChange, ModeOnBlur, ModeOnSubmit, ModeOnTouched, ModeAll:
		return true
	}
	return false
}

func (m Mode) String() string {
	return string(m)
}

type trigger int

const (
	triggerChange trigger = iota
	triggerBlur
)

// validates reports whether mode schedules a pass for t. touched tells
// whether the affected field (or, for array operations, the form) has been
// blurred before.
func (m Mode) validates(t trigger, touched bool) bool {
	switch m {
	case ModeOnChange:
		return t == triggerChange
	case ModeOnBlur:
		return t == triggerBlur
	case ModeOnTouched:
		return t == triggerBlur || touched
	case ModeAll:
		return true
	default:
		return false
	}
}
