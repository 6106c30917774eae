package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/model"
)

// MessageExtension is the schema extension key holding a custom message for
// every failure reported against that (sub)schema.
const MessageExtension = "x-message"

// JSONSchemaValidator validates the collection against an OpenAPI 3 /
// JSON Schema document. The schema describes the array itself, or an object
// holding the array under RootProperty.
type JSONSchemaValidator struct {
	schema       *openapi3.Schema
	rootProperty string
}

// JSONSchemaOption configures a JSONSchemaValidator.
type JSONSchemaOption func(*JSONSchemaValidator)

// WithRootProperty wraps the collection as {name: [...]} before validating,
// matching schemas written for the whole form value.
func WithRootProperty(name string) JSONSchemaOption {
	return func(v *JSONSchemaValidator) {
		v.rootProperty = strings.TrimSpace(name)
	}
}

// NewJSONSchemaValidator parses raw (JSON or YAML) into a schema.
func NewJSONSchemaValidator(raw []byte, options ...JSONSchemaOption) (*JSONSchemaValidator, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("validation: jsonschema document is empty")
	}

	if trimmed[0] != '{' {
		var doc any
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("validation: decode yaml schema: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("validation: convert yaml schema: %w", err)
		}
		trimmed = converted
	}

	schema := &openapi3.Schema{}
	if err := schema.UnmarshalJSON(trimmed); err != nil {
		return nil, fmt.Errorf("validation: decode jsonschema: %w", err)
	}
	return NewSchemaValidator(schema, options...)
}

// NewSchemaValidator wraps an already parsed schema, for example one resolved
// out of an OpenAPI document.
func NewSchemaValidator(schema *openapi3.Schema, options ...JSONSchemaOption) (*JSONSchemaValidator, error) {
	if schema == nil {
		return nil, errors.New("validation: schema is nil")
	}
	v := &JSONSchemaValidator{schema: schema}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v, nil
}

// Validate implements Validator.
func (v *JSONSchemaValidator) Validate(ctx context.Context, records []model.Record) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var value any = Collection(records)
	if v.rootProperty != "" {
		value = map[string]any{v.rootProperty: value}
	}

	err := v.schema.VisitJSON(value, openapi3.MultiErrors())
	if err == nil {
		return Valid(), nil
	}

	var issues []Issue
	collectSchemaIssues(err, &issues)
	return Invalid(issues...), nil
}

func collectSchemaIssues(err error, out *[]Issue) {
	switch typed := err.(type) {
	case openapi3.MultiError:
		for _, inner := range typed {
			collectSchemaIssues(inner, out)
		}
	case *openapi3.SchemaError:
		*out = append(*out, issueFromSchemaError(typed))
	default:
		*out = append(*out, Issue{Code: CodeSchema, Message: strings.TrimSpace(err.Error())})
	}
}

func issueFromSchemaError(err *openapi3.SchemaError) Issue {
	segments := err.JSONPointer()
	if err.SchemaField == "required" {
		if name := missingProperty(err.Reason); name != "" {
			segments = append(append([]string(nil), segments...), name)
		}
	}

	message := strings.TrimSpace(err.Reason)
	if err.Schema != nil {
		if custom, ok := err.Schema.Extensions[MessageExtension].(string); ok && strings.TrimSpace(custom) != "" {
			message = strings.TrimSpace(custom)
		}
	}

	return Issue{
		Path:    "/" + strings.Join(segments, "/"),
		Code:    codeForSchemaField(err.SchemaField),
		Message: message,
	}
}

// missingProperty extracts X from kin-openapi's `property "X" is missing`.
func missingProperty(reason string) string {
	idx := strings.Index(reason, "property ")
	if idx < 0 {
		return ""
	}
	quoted, err := strconv.QuotedPrefix(reason[idx+len("property "):])
	if err != nil {
		return ""
	}
	name, err := strconv.Unquote(quoted)
	if err != nil {
		return ""
	}
	return name
}

func codeForSchemaField(field string) string {
	switch field {
	case "required":
		return CodeRequired
	case "type", "nullable":
		return CodeInvalidType
	case "minimum", "exclusiveMinimum":
		return CodeTooSmall
	case "maximum", "exclusiveMaximum":
		return CodeTooBig
	case "minLength", "minItems":
		return CodeTooShort
	case "maxLength", "maxItems":
		return CodeTooLong
	case "pattern":
		return CodePattern
	case "uniqueItems":
		return CodeUniqueness
	default:
		return CodeSchema
	}
}
