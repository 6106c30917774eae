package formstate

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/form"
)

func TestDemo(t *testing.T) {
	t.Parallel()

	engine, err := Demo(form.WithMode(form.ModeOnSubmit))
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if diff := cmp.Diff([]string{"abc", "def", "ghi", "jkl"}, engine.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if engine.Mode() != form.ModeOnSubmit {
		t.Fatalf("caller option should override config mode, got %s", engine.Mode())
	}

	if _, err := engine.SetField("abc", "age", 3); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, ok := engine.Error("abc", "age"); ok {
		t.Fatalf("onSubmit should defer validation")
	}
	valid, err := engine.Submit(context.Background(), nil)
	if err != nil || valid {
		t.Fatalf("expected invalid submit, got %v %v", valid, err)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	engine, err := Open(context.Background(), "internal/config/testdata/demo.yaml")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if engine.Len() != 2 || engine.Mode() != form.ModeOnBlur {
		t.Fatalf("unexpected engine: %d rows, mode %s", engine.Len(), engine.Mode())
	}

	if _, err := Open(context.Background(), "internal/config/testdata/missing.yaml"); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
