// Package testsupport holds the demo form, seed rows and scripted
// collaborators shared by package tests.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"

	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/validation"
	"github.com/goliatone/go-formstate/pkg/validation/rules"
)

// DemoForm returns the reference row form: name, age, checked and a
// description that is only shown while checked is true.
func DemoForm() model.FormModel {
	return model.FormModel{
		Name: "test",
		Fields: []model.Field{
			{Name: "name", Type: model.FieldTypeString, Label: "Name"},
			{Name: "age", Type: model.FieldTypeNumber, Label: "Age"},
			{Name: "checked", Type: model.FieldTypeBoolean, Label: "Checked"},
			{Name: "description", Type: model.FieldTypeString, Label: "Description", VisibleWhen: "checked"},
		},
	}
}

// DemoSeed returns the four demo rows.
func DemoSeed() []model.Record {
	row := func(id, name string, age float64) model.Record {
		return model.Record{ID: id, Values: map[string]any{
			"name":        name,
			"age":         age,
			"checked":     false,
			"description": "",
		}}
	}
	return []model.Record{
		row("abc", "test", 12),
		row("def", "test2", 13),
		row("ghi", "test3", 14),
		row("jkl", "test4", 15),
	}
}

// DemoValidator mirrors the demo schema: non-empty name, age of at least 10,
// boolean checked and string description.
func DemoValidator() validation.Validator {
	return rules.Array(
		rules.Field("id", rules.String()),
		rules.Field("name", rules.String().NonEmpty("Name is required")),
		rules.Field("age", rules.Number().Min(10, "Age must be at least 10")),
		rules.Field("checked", rules.Bool()),
		rules.Field("description", rules.String()),
	)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// Golden returns a goldie instance reading fixtures from testdata/golden.
func Golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// LoadFormModel reads a JSON fixture into a FormModel.
func LoadFormModel(path string) (model.FormModel, error) {
	if path == "" {
		return model.FormModel{}, errors.New("testsupport: form model path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FormModel{}, fmt.Errorf("testsupport: read form model: %w", err)
	}
	var out model.FormModel
	if err := json.Unmarshal(data, &out); err != nil {
		return model.FormModel{}, fmt.Errorf("testsupport: unmarshal form model: %w", err)
	}
	return out, nil
}

// Call is one pending Validate invocation of a ScriptedValidator.
type Call struct {
	Records []model.Record
	reply   chan reply
}

type reply struct {
	result validation.Result
	err    error
}

// Resolve settles the call with result.
func (c *Call) Resolve(result validation.Result) {
	c.reply <- reply{result: result}
}

// Fail settles the call with a capability error.
func (c *Call) Fail(err error) {
	c.reply <- reply{err: err}
}

// ScriptedValidator blocks every Validate call until the test resolves it.
// It ignores context cancellation so tests decide when superseded passes
// settle.
type ScriptedValidator struct {
	calls chan *Call
}

// NewScriptedValidator returns a validator with room for a few queued calls.
func NewScriptedValidator() *ScriptedValidator {
	return &ScriptedValidator{calls: make(chan *Call, 16)}
}

// Validate implements validation.Validator.
func (v *ScriptedValidator) Validate(_ context.Context, records []model.Record) (validation.Result, error) {
	call := &Call{Records: records, reply: make(chan reply, 1)}
	v.calls <- call
	r := <-call.reply
	return r.result, r.err
}

// Next returns the oldest unclaimed call, failing the test after a timeout.
func (v *ScriptedValidator) Next(t *testing.T) *Call {
	t.Helper()
	select {
	case call := <-v.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("scripted validator: no call arrived")
		return nil
	}
}

// Recorder collects the states delivered to a subscription.
type Recorder struct {
	mu     sync.Mutex
	states []model.FieldState
}

// Callback matches binding.Callback.
func (r *Recorder) Callback(_ model.FieldPath, state model.FieldState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

// States returns a copy of every delivered state.
func (r *Recorder) States() []model.FieldState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FieldState(nil), r.states...)
}

// Len returns the number of deliveries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Last returns the most recent state.
func (r *Recorder) Last() model.FieldState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return model.FieldState{}
	}
	return r.states[len(r.states)-1]
}
