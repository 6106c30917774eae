package model

// FieldStatus tracks where a field sits in its validation lifecycle:
// Pristine until first edited, Dirty while an edit has not been covered by an
// applied validation pass, then Valid or Invalid. There is no terminal state.
type FieldStatus string

const (
	StatusPristine FieldStatus = "pristine"
	StatusDirty    FieldStatus = "dirty"
	StatusValid    FieldStatus = "valid"
	StatusInvalid  FieldStatus = "invalid"
)

// FieldState is what observers receive for a FieldPath.
type FieldState struct {
	Value   any
	Error   string
	Visible bool
	Status  FieldStatus
	Dirty   bool
	Touched bool
}

// Equal reports whether two states would render identically. Values are the
// normalised scalars produced by NormalizeValue, so == comparison is safe.
func (s FieldState) Equal(other FieldState) bool {
	return s == other
}
