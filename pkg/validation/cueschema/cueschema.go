// Package cueschema validates array forms against a CUE definition. The
// definition is unified with the encoded collection and every resulting
// error is reported as a positional issue.
//
//	#Row: {
//		id:          string
//		name:        string & !=""
//		age:         number & >=10
//		checked:     bool
//		description: string
//	}
//	#Rows: [...#Row]
package cueschema

import (
	"context"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// DefaultPath is the definition looked up when no path is configured.
const DefaultPath = "#Rows"

// Validator implements validation.Validator on top of a compiled CUE value.
type Validator struct {
	ctx      *cue.Context
	schema   cue.Value
	path     string
	messages map[string]string
}

// Option configures a Validator.
type Option func(*Validator)

// WithPath selects the definition describing the collection.
func WithPath(path string) Option {
	return func(v *Validator) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			v.path = trimmed
		}
	}
}

// WithMessages overrides the CUE error text per field name, e.g.
// {"age": "Age must be at least 10"}.
func WithMessages(messages map[string]string) Option {
	return func(v *Validator) {
		for field, msg := range messages {
			v.messages[field] = msg
		}
	}
}

// New compiles src and resolves the collection definition.
func New(src string, options ...Option) (*Validator, error) {
	v := &Validator{
		ctx:      cuecontext.New(),
		path:     DefaultPath,
		messages: make(map[string]string),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}

	root := v.ctx.CompileString(src)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("cueschema: compile: %w", err)
	}
	schema := root.LookupPath(cue.ParsePath(v.path))
	if !schema.Exists() {
		return nil, fmt.Errorf("cueschema: definition %q not found", v.path)
	}
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("cueschema: definition %q: %w", v.path, err)
	}
	v.schema = schema
	return v, nil
}

// Validate implements validation.Validator.
func (v *Validator) Validate(ctx context.Context, records []model.Record) (validation.Result, error) {
	if err := ctx.Err(); err != nil {
		return validation.Result{}, err
	}

	data := v.ctx.Encode(validation.Collection(records))
	if err := data.Err(); err != nil {
		return validation.Result{}, fmt.Errorf("cueschema: encode: %w", err)
	}

	err := v.schema.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return validation.Valid(), nil
	}

	var issues []validation.Issue
	for _, e := range cueerrors.Errors(err) {
		issues = append(issues, v.issueFrom(e))
	}
	if len(issues) == 0 {
		issues = append(issues, validation.Issue{Code: validation.CodeSchema, Message: err.Error()})
	}
	return validation.Invalid(issues...), nil
}

func (v *Validator) issueFrom(e cueerrors.Error) validation.Issue {
	segments := trimDefinitionSegments(e.Path())

	format, args := e.Msg()
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if field := lastField(segments); field != "" {
		if custom, ok := v.messages[field]; ok {
			message = custom
		}
	}

	return validation.Issue{
		Path:    "/" + strings.Join(segments, "/"),
		Code:    validation.CodeSchema,
		Message: message,
	}
}

func trimDefinitionSegments(path []string) []string {
	out := make([]string, 0, len(path))
	for _, segment := range path {
		if strings.HasPrefix(segment, "#") {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func lastField(segments []string) string {
	for i := len(segments) - 1; i >= 0; i-- {
		segment := segments[i]
		if segment == "" {
			continue
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return ""
		}
		return segment
	}
	return ""
}
