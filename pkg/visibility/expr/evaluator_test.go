package expr

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/visibility"
)

func TestEvaluatorBooleanComparison(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval("threshold", "enabled == true", visibility.Context{
		Values: map[string]any{"enabled": true},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true")
	}

	ok, err = eval.Eval("threshold", "enabled == true", visibility.Context{
		Values: map[string]any{"enabled": "true"},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for string true")
	}
}

func TestEvaluatorTruthyAndNot(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval("threshold", "enabled", visibility.Context{
		Values: map[string]any{"enabled": true},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true")
	}

	ok, err = eval.Eval("threshold", "!enabled", visibility.Context{
		Values: map[string]any{"enabled": false},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for !false")
	}
}

func TestEvaluatorDotLookup(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval("cta.headline", `cta.headline != ""`, visibility.Context{
		Values: map[string]any{"cta.headline": "Hello"},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for flattened dotted key")
	}

	ok, err = eval.Eval("cta.headline", `cta.headline == "Hello"`, visibility.Context{
		Values: map[string]any{
			"cta": map[string]any{
				"headline": "Hello",
			},
		},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for nested map lookup")
	}
}

func TestEvaluatorNullLiteral(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval("threshold", "missing == null", visibility.Context{
		Values: map[string]any{},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for missing == null")
	}

	ok, err = eval.Eval("threshold", "enabled != null", visibility.Context{
		Values: map[string]any{"enabled": false},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for present != null")
	}
}

func TestEvaluatorBooleanComposition(t *testing.T) {
	t.Parallel()

	eval := New()

	ok, err := eval.Eval("threshold", `enabled == true && role == "admin"`, visibility.Context{
		Values: map[string]any{
			"enabled": true,
			"role":    "admin",
		},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for conjunction")
	}

	ok, err = eval.Eval("threshold", `enabled == true && role == "admin"`, visibility.Context{
		Values: map[string]any{
			"enabled": true,
			"role":    "user",
		},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected false for conjunction mismatch")
	}

	ok, err = eval.Eval("threshold", `enabled == true || role == "admin"`, visibility.Context{
		Values: map[string]any{
			"enabled": false,
			"role":    "admin",
		},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for disjunction")
	}
}

func TestEvaluatorOrdering(t *testing.T) {
	t.Parallel()

	eval := New()

	cases := []struct {
		rule  string
		value any
		want  bool
	}{
		{"age >= 18", float64(18), true},
		{"age >= 18", float64(17), false},
		{"age > 18", float64(18), false},
		{"age < 65", float64(30), true},
		{"age <= 65", "65", true},
		{"age < 10", nil, false},
		{"age != 10", nil, true},
		{`name < "m"`, "alice", true},
	}

	for _, tc := range cases {
		values := map[string]any{}
		if tc.value != nil {
			values["age"] = tc.value
			values["name"] = tc.value
		}
		got, err := eval.Eval("abc.description", tc.rule, visibility.Context{Values: values})
		if err != nil {
			t.Fatalf("%s: Eval returned error: %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("%s with %v: got %v want %v", tc.rule, tc.value, got, tc.want)
		}
	}
}

func TestEvaluatorCheckedGate(t *testing.T) {
	t.Parallel()

	eval := New()

	for _, checked := range []bool{true, false} {
		ok, err := eval.Eval("abc.description", "checked", visibility.Context{
			Values: map[string]any{"id": "abc", "checked": checked},
		})
		if err != nil {
			t.Fatalf("Eval returned error: %v", err)
		}
		if ok != checked {
			t.Fatalf("checked=%v: visible=%v", checked, ok)
		}
	}
}

func TestEvaluatorExtras(t *testing.T) {
	t.Parallel()

	ok, err := New().Eval("abc.description", `extras.role == "admin"`, visibility.Context{
		Extras: map[string]any{"role": "admin"},
	})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected extras lookup to match")
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{
		"age = 1",
		"a & b",
		"(a || b",
		`name == "open`,
		"age >= true",
		"a b",
	} {
		if _, err := Compile(rule); err == nil {
			t.Fatalf("expected compile error for %q", rule)
		}
	}
}

func TestProgramIdentifiersAndEmptyRule(t *testing.T) {
	t.Parallel()

	program, err := Compile(`checked && (age >= 18 || checked == true) && !extras.flag`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []string{"checked", "age", "extras.flag"}
	if diff := cmp.Diff(want, program.Identifiers()); diff != "" {
		t.Fatalf("identifiers mismatch (-want +got):\n%s", diff)
	}

	empty, err := Compile("   ")
	if err != nil {
		t.Fatalf("Compile empty: %v", err)
	}
	ok, err := empty.Eval(visibility.Context{})
	if err != nil || !ok {
		t.Fatalf("empty rule should be visible, got %v %v", ok, err)
	}
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	t.Parallel()

	eval := New()
	ctx := visibility.Context{Values: map[string]any{"checked": true}}
	for i := 0; i < 3; i++ {
		if _, err := eval.Eval("abc.description", " checked ", ctx); err != nil {
			t.Fatalf("Eval: %v", err)
		}
	}
	eval.mu.RLock()
	defer eval.mu.RUnlock()
	if len(eval.programs) != 1 {
		t.Fatalf("expected one cached program, got %d", len(eval.programs))
	}
}
