package validation

import (
	"context"
	"testing"

	"github.com/goliatone/go-formstate/pkg/model"
)

const rowsSchemaYAML = `
type: array
items:
  type: object
  required: [id, name, age, checked, description]
  properties:
    id:
      type: string
    name:
      type: string
      minLength: 1
      x-message: Name is required
    age:
      type: number
      minimum: 10
      x-message: Age must be at least 10
    checked:
      type: boolean
    description:
      type: string
`

func demoRows(age float64) []model.Record {
	return []model.Record{
		{ID: "abc", Values: map[string]any{"name": "test", "age": float64(12), "checked": false, "description": ""}},
		{ID: "def", Values: map[string]any{"name": "test2", "age": age, "checked": false, "description": ""}},
	}
}

func TestJSONSchemaValidatorMinimum(t *testing.T) {
	t.Parallel()

	validator, err := NewJSONSchemaValidator([]byte(rowsSchemaYAML))
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	adapter := NewAdapter(validator)

	out, err := adapter.Run(context.Background(), demoRows(9))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	msg, ok := out.Errors.Get(model.Path("def", "age"))
	if !ok {
		t.Fatalf("expected age error, got %#v (form: %v)", out.Errors, out.FormErrors)
	}
	if msg != "Age must be at least 10" {
		t.Fatalf("unexpected message %q", msg)
	}

	out, err = adapter.Run(context.Background(), demoRows(10))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Valid() {
		t.Fatalf("expected age 10 to pass, got %#v %v", out.Errors, out.FormErrors)
	}
}

func TestJSONSchemaValidatorRootProperty(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
  "type": "object",
  "properties": {
    "test": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`)
	validator, err := NewJSONSchemaValidator(raw, WithRootProperty("test"))
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}

	rows := demoRows(12)
	rows[0].Values["name"] = ""

	out, err := NewAdapter(validator, WithArrayName("test")).Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	msg, ok := out.Errors.Get(model.Path("abc", "name"))
	if !ok || msg == "" {
		t.Fatalf("expected name error on abc, got %#v (form: %v)", out.Errors, out.FormErrors)
	}
}

func TestJSONSchemaValidatorTypeMismatch(t *testing.T) {
	t.Parallel()

	validator, err := NewJSONSchemaValidator([]byte(rowsSchemaYAML))
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator: %v", err)
	}
	rows := demoRows(12)
	rows[1].Values["checked"] = "yes"

	result, err := validator.Validate(context.Background(), rows)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure")
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Path == "/1/checked" && issue.Code == CodeInvalidType {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected invalid_type issue at /1/checked, got %#v", result.Issues)
	}
}

func TestJSONSchemaValidatorRejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	if _, err := NewJSONSchemaValidator([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty schema")
	}
}

func TestMissingProperty(t *testing.T) {
	t.Parallel()

	if got := missingProperty(`property "name" is missing`); got != "name" {
		t.Fatalf("missingProperty = %q", got)
	}
	if got := missingProperty("number must be at least 10"); got != "" {
		t.Fatalf("missingProperty = %q", got)
	}
}
