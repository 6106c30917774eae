package form

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Report is a point-in-time view of the form used for previews and CLI
// output.
type Report struct {
	Values     []any             `json:"values"`
	Errors     map[string]string `json:"errors,omitempty"`
	FormErrors []string          `json:"formErrors,omitempty"`
	State      FormState         `json:"state"`
}

// JSON renders the ordered records as indented JSON, each record flattened
// with its id.
func (e *Engine) JSON() ([]byte, error) {
	return MarshalRecords(e.Values())
}

// Report captures values, errors and state in one consistent read.
func (e *Engine) Report() Report {
	e.mu.Lock()
	values := e.store.Values()
	errs := e.errors.Flatten()
	formErrors := append([]string(nil), e.formErrors...)
	state := e.stateLocked()
	e.mu.Unlock()

	return Report{
		Values:     validation.Collection(values),
		Errors:     errs,
		FormErrors: formErrors,
		State:      state,
	}
}

// MarshalRecords encodes records the way JSON previews them.
func MarshalRecords(records []model.Record) ([]byte, error) {
	out, err := json.MarshalIndent(validation.Collection(records), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("form: encode values: %w", err)
	}
	return out, nil
}

// MarshalReport encodes r as indented JSON.
func MarshalReport(r Report) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("form: encode report: %w", err)
	}
	return out, nil
}
