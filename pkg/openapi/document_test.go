package openapi

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/schema"
	"github.com/goliatone/go-formstate/pkg/validation"
)

func loadFixture(t *testing.T) Document {
	t.Helper()

	doc, err := Load(context.Background(), nil, schema.SourceFromFile("testdata/rows.openapi.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return doc
}

func rows(age float64) []model.Record {
	return []model.Record{
		{ID: "abc", Values: map[string]any{"name": "test", "age": float64(12), "checked": false, "description": ""}},
		{ID: "def", Values: map[string]any{"name": "test2", "age": age, "checked": false, "description": ""}},
	}
}

func TestComponentBacksValidator(t *testing.T) {
	t.Parallel()

	doc := loadFixture(t)
	if doc.Location() != "testdata/rows.openapi.yaml" {
		t.Fatalf("unexpected location %q", doc.Location())
	}

	s, err := doc.Component(context.Background(), "Rows")
	if err != nil {
		t.Fatalf("Component: %v", err)
	}
	v, err := validation.NewSchemaValidator(s)
	if err != nil {
		t.Fatalf("NewSchemaValidator: %v", err)
	}

	out, err := validation.NewAdapter(v).Run(context.Background(), rows(9))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if msg, ok := out.Errors.Get(model.Path("def", "age")); !ok || msg != "Age must be at least 10" {
		t.Fatalf("expected age error on def, got %#v (form: %v)", out.Errors, out.FormErrors)
	}
	if _, ok := out.Errors.Get(model.Path("abc", "age")); ok {
		t.Fatalf("abc should be valid")
	}
}

func TestRequestSchema(t *testing.T) {
	t.Parallel()

	doc := loadFixture(t)
	s, err := doc.RequestSchema(context.Background(), "replaceRows")
	if err != nil {
		t.Fatalf("RequestSchema: %v", err)
	}
	v, err := validation.NewSchemaValidator(s)
	if err != nil {
		t.Fatalf("NewSchemaValidator: %v", err)
	}
	result, err := v.Validate(context.Background(), rows(10))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected age 10 to pass, got %#v", result.Issues)
	}
}

func TestDocumentParsesOnce(t *testing.T) {
	t.Parallel()

	doc := loadFixture(t)
	first, err := doc.Component(context.Background(), "Rows")
	if err != nil {
		t.Fatalf("Component: %v", err)
	}
	shared := doc
	second, err := shared.Component(context.Background(), "Rows")
	if err != nil {
		t.Fatalf("Component: %v", err)
	}
	if first != second {
		t.Fatalf("expected copies of the document to reuse the parsed schema")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := doc.RequestSchema(cancelled, "replaceRows"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestLookupErrors(t *testing.T) {
	t.Parallel()

	doc := loadFixture(t)
	if _, err := doc.Component(context.Background(), "Missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing component error, got %v", err)
	}
	if _, err := doc.RequestSchema(context.Background(), "deleteRows"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing operation error, got %v", err)
	}
	if _, err := NewDocument(nil, []byte("x")); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := NewDocument(schema.SourceFromFile("x.yaml"), nil); err == nil {
		t.Fatalf("expected error for empty document")
	}

	bad, err := NewDocument(schema.SourceFromFile("bad.yaml"), []byte("openapi: ["))
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if _, err := bad.Component(context.Background(), "Rows"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFieldsFromComponent(t *testing.T) {
	t.Parallel()

	doc := loadFixture(t)
	s, err := doc.Component(context.Background(), "Rows")
	if err != nil {
		t.Fatalf("Component: %v", err)
	}
	fields, err := Fields(s)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}

	want := []model.Field{
		{Name: "name", Type: model.FieldTypeString, Label: "Name"},
		{Name: "age", Type: model.FieldTypeNumber, Label: "Age"},
		{Name: "checked", Type: model.FieldTypeBoolean, Label: "Checked"},
		{Name: "description", Type: model.FieldTypeString, Label: "Description", VisibleWhen: "checked"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if _, err := Fields(nil); err == nil {
		t.Fatalf("expected error for nil schema")
	}
}

func TestLabelFor(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"firstName":   "First name",
		"postal_code": "Postal code",
		"line2":       "Line 2",
		"userID":      "User id",
		"":            "",
		"__":          "",
	}
	for in, want := range cases {
		if got := LabelFor(in); got != want {
			t.Fatalf("LabelFor(%q) = %q, want %q", in, got, want)
		}
	}
}
