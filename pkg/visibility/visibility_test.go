package visibility

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-formstate/pkg/model"
)

func demoForm() model.FormModel {
	return model.FormModel{
		Name: "test",
		Fields: []model.Field{
			{Name: "checked", Type: model.FieldTypeBoolean},
			{Name: "description", Type: model.FieldTypeString, VisibleWhen: " checked "},
		},
	}
}

func TestResolverEvaluatesOnEveryCall(t *testing.T) {
	t.Parallel()

	calls := 0
	eval := EvaluatorFunc(func(fieldPath, rule string, ctx Context) (bool, error) {
		calls++
		if fieldPath != "abc.description" || rule != "checked" {
			t.Fatalf("unexpected call %q %q", fieldPath, rule)
		}
		if ctx.Values["id"] != "abc" || ctx.Extras["role"] != "admin" {
			t.Fatalf("unexpected context %#v", ctx)
		}
		checked, _ := ctx.Values["checked"].(bool)
		return checked, nil
	})
	resolver := NewResolver(demoForm(), eval, map[string]any{"role": "admin"})

	rec := model.Record{ID: "abc", Values: map[string]any{"checked": true, "description": "x"}}
	if ok, err := resolver.Visible(rec, "description"); err != nil || !ok {
		t.Fatalf("expected visible, got %v %v", ok, err)
	}
	rec.Values["checked"] = false
	if ok, err := resolver.Visible(rec, "description"); err != nil || ok {
		t.Fatalf("expected hidden, got %v %v", ok, err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 evaluations, got %d", calls)
	}

	if ok, _ := resolver.Visible(rec, "checked"); !ok {
		t.Fatalf("fields without a rule are visible")
	}
	if rule, ok := resolver.Rule("description"); !ok || rule != "checked" {
		t.Fatalf("unexpected rule %q", rule)
	}
}

func TestResolverWrapsEvaluatorErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad rule")
	resolver := NewResolver(demoForm(), EvaluatorFunc(func(string, string, Context) (bool, error) {
		return false, boom
	}), nil)

	_, err := resolver.Visible(model.Record{ID: "abc"}, "description")
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), `"description"`) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNilResolverAndEvaluator(t *testing.T) {
	t.Parallel()

	var resolver *Resolver
	if ok, err := resolver.Visible(model.Record{ID: "abc"}, "description"); err != nil || !ok {
		t.Fatalf("nil resolver should report visible")
	}
	if ok, _ := NewResolver(demoForm(), nil, nil).Visible(model.Record{ID: "abc"}, "description"); !ok {
		t.Fatalf("resolver without evaluator should report visible")
	}
}
