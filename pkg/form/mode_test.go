package form

import (
	"context"
	"testing"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	cases := map[string]Mode{
		"onChange":  ModeOnChange,
		"on-blur":   ModeOnBlur,
		"ON_SUBMIT": ModeOnSubmit,
		" touched ": ModeOnTouched,
		"all":       ModeAll,
		"submit":    ModeOnSubmit,
	}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseMode("eventually"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestModeValidates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mode    Mode
		trigger trigger
		touched bool
		want    bool
	}{
		{ModeOnChange, triggerChange, false, true},
		{ModeOnChange, triggerBlur, true, false},
		{ModeOnBlur, triggerChange, true, false},
		{ModeOnBlur, triggerBlur, true, true},
		{ModeOnSubmit, triggerChange, true, false},
		{ModeOnSubmit, triggerBlur, true, false},
		{ModeOnTouched, triggerChange, false, false},
		{ModeOnTouched, triggerChange, true, true},
		{ModeOnTouched, triggerBlur, false, true},
		{ModeAll, triggerChange, false, true},
		{ModeAll, triggerBlur, false, true},
	}
	for _, tc := range cases {
		if got := tc.mode.validates(tc.trigger, tc.touched); got != tc.want {
			t.Fatalf("%s trigger=%d touched=%v: got %v", tc.mode, tc.trigger, tc.touched, got)
		}
	}
}

func TestNilPassIsSettled(t *testing.T) {
	t.Parallel()

	var p *Pass
	if p.Pending() || p.Applied() || p.Err() != nil || p.Seq() != 0 {
		t.Fatalf("nil pass should report as settled and empty")
	}
	select {
	case <-p.Done():
	default:
		t.Fatalf("nil pass Done channel should be closed")
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
