// Package rules provides a small, zod-like schema builder for array forms.
// A Schema validates every record of the collection field by field and then
// runs collection-wide refinements such as uniqueness, so cross-record rules
// are always evaluated against the full snapshot.
//
//	schema := rules.Array(
//		rules.Field("name", rules.String().NonEmpty("Name is required")),
//		rules.Field("age", rules.Number().Min(10, "Age must be at least 10")),
//		rules.Field("checked", rules.Bool()),
//		rules.Field("description", rules.String()),
//	)
package rules

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Rule checks a single field value. present is false when the record has no
// entry for the field.
type Rule interface {
	Check(value any, present bool) (code, message string, ok bool)
}

// FieldRule binds a Rule to a field name.
type FieldRule struct {
	Name string
	Rule Rule
}

// Field is shorthand for FieldRule{Name: name, Rule: rule}.
func Field(name string, rule Rule) FieldRule {
	return FieldRule{Name: name, Rule: rule}
}

// Refinement inspects the whole collection and returns positional issues.
type Refinement func(records []model.Record) []validation.Issue

// Schema validates an array of records.
type Schema struct {
	fields      []FieldRule
	refinements []Refinement
	minItems    int
	minMessage  string
}

// Array builds a schema for a collection whose items carry fields.
func Array(fields ...FieldRule) *Schema {
	return &Schema{fields: fields, minItems: -1}
}

// Refine registers a collection-wide check.
func (s *Schema) Refine(fn Refinement) *Schema {
	if fn != nil {
		s.refinements = append(s.refinements, fn)
	}
	return s
}

// MinItems requires at least n records.
func (s *Schema) MinItems(n int, message string) *Schema {
	s.minItems = n
	s.minMessage = message
	return s
}

// Unique requires field to hold distinct values across records. Every record
// after the first occurrence is flagged.
func (s *Schema) Unique(field, message string) *Schema {
	if message == "" {
		message = fmt.Sprintf("%s must be unique", field)
	}
	return s.Refine(func(records []model.Record) []validation.Issue {
		seen := make(map[any]struct{}, len(records))
		var issues []validation.Issue
		for i, rec := range records {
			value, ok := rec.Get(field)
			if !ok || value == nil || value == "" {
				continue
			}
			if _, dup := seen[value]; dup {
				issues = append(issues, validation.Issue{
					Path:    validation.Pointer(i, field),
					Code:    validation.CodeUniqueness,
					Message: message,
				})
				continue
			}
			seen[value] = struct{}{}
		}
		return issues
	})
}

// Validate implements validation.Validator.
func (s *Schema) Validate(ctx context.Context, records []model.Record) (validation.Result, error) {
	if err := ctx.Err(); err != nil {
		return validation.Result{}, err
	}

	var issues []validation.Issue
	if s.minItems >= 0 && len(records) < s.minItems {
		msg := s.minMessage
		if msg == "" {
			msg = fmt.Sprintf("Array must contain at least %d element(s)", s.minItems)
		}
		issues = append(issues, validation.Issue{Path: "/", Code: validation.CodeTooShort, Message: msg})
	}

	for i, rec := range records {
		flat := rec.Flat()
		for _, field := range s.fields {
			if field.Rule == nil {
				continue
			}
			value, present := flat[field.Name]
			code, msg, ok := field.Rule.Check(value, present)
			if ok {
				continue
			}
			issues = append(issues, validation.Issue{
				Path:    validation.Pointer(i, field.Name),
				Code:    code,
				Message: msg,
			})
		}
	}

	for _, refine := range s.refinements {
		issues = append(issues, refine(records)...)
	}
	return validation.Invalid(issues...), nil
}

// StringRule validates string values.
type StringRule struct {
	optional   bool
	minLen     int
	minMessage string
	maxLen     int
	maxMessage string
	pattern    *regexp.Regexp
	patternMsg string
}

// String starts a string rule.
func String() *StringRule {
	return &StringRule{maxLen: -1}
}

// Optional accepts a missing field.
func (r *StringRule) Optional() *StringRule { r.optional = true; return r }

// NonEmpty rejects the empty string.
func (r *StringRule) NonEmpty(message string) *StringRule {
	return r.Min(1, message)
}

// Min requires at least n characters.
func (r *StringRule) Min(n int, message string) *StringRule {
	r.minLen = n
	r.minMessage = message
	return r
}

// Max allows at most n characters.
func (r *StringRule) Max(n int, message string) *StringRule {
	r.maxLen = n
	r.maxMessage = message
	return r
}

// Matches requires the value to match expr.
func (r *StringRule) Matches(expr *regexp.Regexp, message string) *StringRule {
	r.pattern = expr
	r.patternMsg = message
	return r
}

// Check implements Rule.
func (r *StringRule) Check(value any, present bool) (string, string, bool) {
	if !present {
		if r.optional {
			return "", "", true
		}
		return validation.CodeRequired, "Required", false
	}
	s, ok := value.(string)
	if !ok {
		return validation.CodeInvalidType, "Expected string, received " + kindOf(value), false
	}
	length := utf8.RuneCountInString(s)
	if r.minLen > 0 && length < r.minLen {
		return validation.CodeTooShort, orDefault(r.minMessage, fmt.Sprintf("String must contain at least %d character(s)", r.minLen)), false
	}
	if r.maxLen >= 0 && length > r.maxLen {
		return validation.CodeTooLong, orDefault(r.maxMessage, fmt.Sprintf("String must contain at most %d character(s)", r.maxLen)), false
	}
	if r.pattern != nil && !r.pattern.MatchString(s) {
		return validation.CodePattern, orDefault(r.patternMsg, "Invalid"), false
	}
	return "", "", true
}

// NumberRule validates numeric values.
type NumberRule struct {
	optional   bool
	min        *float64
	minMessage string
	max        *float64
	maxMessage string
	integer    bool
	intMessage string
}

// Number starts a numeric rule.
func Number() *NumberRule {
	return &NumberRule{}
}

// Optional accepts a missing field.
func (r *NumberRule) Optional() *NumberRule { r.optional = true; return r }

// Min requires value >= bound.
func (r *NumberRule) Min(bound float64, message string) *NumberRule {
	r.min = &bound
	r.minMessage = message
	return r
}

// Max requires value <= bound.
func (r *NumberRule) Max(bound float64, message string) *NumberRule {
	r.max = &bound
	r.maxMessage = message
	return r
}

// Int requires a whole number.
func (r *NumberRule) Int(message string) *NumberRule {
	r.integer = true
	r.intMessage = message
	return r
}

// Check implements Rule.
func (r *NumberRule) Check(value any, present bool) (string, string, bool) {
	if !present {
		if r.optional {
			return "", "", true
		}
		return validation.CodeRequired, "Required", false
	}
	n, ok := value.(float64)
	if !ok || math.IsNaN(n) {
		return validation.CodeInvalidType, "Expected number, received " + kindOf(value), false
	}
	if r.integer && n != float64(int64(n)) {
		return validation.CodeInvalidType, orDefault(r.intMessage, "Expected integer, received float"), false
	}
	if r.min != nil && n < *r.min {
		return validation.CodeTooSmall, orDefault(r.minMessage, fmt.Sprintf("Number must be greater than or equal to %v", *r.min)), false
	}
	if r.max != nil && n > *r.max {
		return validation.CodeTooBig, orDefault(r.maxMessage, fmt.Sprintf("Number must be less than or equal to %v", *r.max)), false
	}
	return "", "", true
}

// BoolRule validates boolean values.
type BoolRule struct {
	optional bool
}

// Bool starts a boolean rule.
func Bool() *BoolRule {
	return &BoolRule{}
}

// Optional accepts a missing field.
func (r *BoolRule) Optional() *BoolRule { r.optional = true; return r }

// Check implements Rule.
func (r *BoolRule) Check(value any, present bool) (string, string, bool) {
	if !present {
		if r.optional {
			return "", "", true
		}
		return validation.CodeRequired, "Required", false
	}
	if _, ok := value.(bool); !ok {
		return validation.CodeInvalidType, "Expected boolean, received " + kindOf(value), false
	}
	return "", "", true
}

func kindOf(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if math.IsNaN(v) {
			return "nan"
		}
		return "number"
	default:
		return strings.ToLower(fmt.Sprintf("%T", value))
	}
}

func orDefault(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
