package visibility

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/model"
)

// Evaluator determines whether a field should be visible based on a rule
// string and the current values of the record that owns the field.
type Evaluator interface {
	Eval(fieldPath, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values holds the owning record's
// current values (plus its id under "id") while Extras allows callers to
// inject arbitrary context such as user roles or feature flags.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, rule string, ctx Context) (bool, error) {
	return fn(fieldPath, rule, ctx)
}

// Resolver derives the effective presence of fields. Results are never
// stored; every call evaluates the rule against the record it is given.
type Resolver struct {
	evaluator Evaluator
	rules     map[string]string
	extras    map[string]any
}

// NewResolver collects the VisibleWhen rules of form. A nil evaluator makes
// every field visible.
func NewResolver(form model.FormModel, evaluator Evaluator, extras map[string]any) *Resolver {
	rules := make(map[string]string)
	for _, field := range form.Fields {
		if rule := strings.TrimSpace(field.VisibleWhen); rule != "" {
			rules[field.Name] = rule
		}
	}
	return &Resolver{evaluator: evaluator, rules: rules, extras: extras}
}

// Rule returns the visibility rule configured for field.
func (r *Resolver) Rule(field string) (string, bool) {
	if r == nil {
		return "", false
	}
	rule, ok := r.rules[field]
	return rule, ok
}

// Visible reports whether field is currently shown for rec.
func (r *Resolver) Visible(rec model.Record, field string) (bool, error) {
	if r == nil || r.evaluator == nil {
		return true, nil
	}
	rule, ok := r.rules[field]
	if !ok {
		return true, nil
	}
	visible, err := r.evaluator.Eval(model.Path(rec.ID, field).String(), rule, Context{
		Values: rec.Flat(),
		Extras: r.extras,
	})
	if err != nil {
		return false, fmt.Errorf("visibility: field %q: %w", field, err)
	}
	return visible, nil
}
