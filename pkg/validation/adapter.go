package validation

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/model"
)

// Outcome is a translated validation result: field and record level messages
// keyed by record id, plus collection level messages that cannot be
// attributed to a record.
type Outcome struct {
	Errors     ErrorMap
	FormErrors []string
}

// Valid reports whether the outcome carries no messages at all.
func (o Outcome) Valid() bool {
	return len(o.Errors) == 0 && len(o.FormErrors) == 0
}

// Adapter wraps a Validator and maps its positional issues onto record ids.
type Adapter struct {
	validator Validator
	arrayName string
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithArrayName strips a leading collection name from issue paths, so
// "test.0.age" and "/test/0/age" resolve like "/0/age".
func WithArrayName(name string) AdapterOption {
	return func(a *Adapter) {
		a.arrayName = strings.TrimSpace(name)
	}
}

// NewAdapter wraps validator. A nil validator accepts everything.
func NewAdapter(validator Validator, options ...AdapterOption) *Adapter {
	a := &Adapter{validator: validator}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(a)
	}
	return a
}

// Run validates the entire snapshot and translates issue positions using the
// ids of that same snapshot, so results stay attributed to the right records
// even if the live store has changed since.
func (a *Adapter) Run(ctx context.Context, snapshot []model.Record) (Outcome, error) {
	if a == nil || a.validator == nil {
		return Outcome{Errors: ErrorMap{}}, nil
	}
	if ctx == nil {
		return Outcome{}, errors.New("validation: context is required")
	}
	result, err := a.validator.Validate(ctx, snapshot)
	if err != nil {
		return Outcome{}, err
	}
	return a.Translate(result, snapshot), nil
}

// Translate maps positional issues onto ids. The first message for a path
// wins; issues without a resolvable record become form errors.
func (a *Adapter) Translate(result Result, snapshot []model.Record) Outcome {
	out := Outcome{Errors: ErrorMap{}}
	if result.Success && len(result.Issues) == 0 {
		return out
	}

	for _, issue := range result.Issues {
		msg := strings.TrimSpace(issue.Message)
		if msg == "" {
			msg = strings.TrimSpace(issue.Code)
		}
		if msg == "" {
			continue
		}

		index, field, ok := a.locate(issue.Path)
		if !ok || index < 0 || index >= len(snapshot) {
			out.FormErrors = appendUnique(out.FormErrors, msg)
			continue
		}

		path := model.Path(snapshot[index].ID, field)
		if _, exists := out.Errors[path]; exists {
			continue
		}
		out.Errors[path] = msg
	}

	if !result.Success && len(out.Errors) == 0 && len(out.FormErrors) == 0 {
		out.FormErrors = []string{"validation failed"}
	}
	return out
}

func (a *Adapter) locate(raw string) (int, string, bool) {
	segments := parsePathSegments(raw)
	segments = dropWrapperSegments(segments, a.arrayName)

	for i, segment := range segments {
		idx, err := strconv.Atoi(segment)
		if err != nil {
			continue
		}
		field := ""
		for _, next := range segments[i+1:] {
			if _, err := strconv.Atoi(next); err == nil {
				continue
			}
			field = next
			break
		}
		return idx, field, true
	}
	return -1, "", false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return nil
	}

	clean = strings.TrimPrefix(clean, "#/")
	clean = strings.TrimPrefix(clean, "$/")
	clean = strings.TrimPrefix(clean, "$.")
	for strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, ".") || strings.HasPrefix(clean, "$") {
		clean = strings.TrimLeft(clean, "#/.$")
	}

	replacer := strings.NewReplacer("[", ".", "]", "", "//", "/")
	clean = strings.Trim(replacer.Replace(clean), "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

func dropWrapperSegments(segments []string, arrayName string) []string {
	wrappers := map[string]struct{}{
		"body":    {},
		"payload": {},
		"data":    {},
	}
	if arrayName != "" {
		wrappers[strings.ToLower(arrayName)] = struct{}{}
	}

	out := segments
	for len(out) > 0 {
		if _, ok := wrappers[strings.ToLower(out[0])]; ok {
			out = out[1:]
			continue
		}
		break
	}
	return out
}

func appendUnique(list []string, msg string) []string {
	for _, existing := range list {
		if existing == msg {
			return list
		}
	}
	return append(list, msg)
}
