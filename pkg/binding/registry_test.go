package binding

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/model"
)

type recorder struct {
	calls []model.FieldState
}

func (r *recorder) callback(_ model.FieldPath, state model.FieldState) {
	r.calls = append(r.calls, state)
}

func TestSubscribeDeliversInitialState(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := &recorder{}
	initial := model.FieldState{Value: "test", Visible: true, Status: model.StatusPristine}

	handle := reg.Subscribe(model.Path("abc", "name"), rec.callback, initial)
	if handle.Path() != model.Path("abc", "name") {
		t.Fatalf("unexpected handle path %v", handle.Path())
	}
	if diff := cmp.Diff([]model.FieldState{initial}, rec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyOnlyChangedSubscribedPaths(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	name := &recorder{}
	age := &recorder{}
	initial := model.FieldState{Value: "test", Visible: true}
	reg.Subscribe(model.Path("abc", "name"), name.callback, initial)
	reg.Subscribe(model.Path("abc", "age"), age.callback, model.FieldState{Value: float64(12), Visible: true})

	updated := model.FieldState{Value: "", Error: "Name is required", Visible: true, Status: model.StatusInvalid, Dirty: true}
	delivered := reg.Notify(1, map[model.FieldPath]model.FieldState{
		model.Path("abc", "name"): updated,
		model.Path("def", "name"): updated,
	})
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(age.calls) != 1 {
		t.Fatalf("age subscriber should only have its initial call, got %d", len(age.calls))
	}

	// Same state again is not redelivered.
	if delivered := reg.Notify(1, map[model.FieldPath]model.FieldState{model.Path("abc", "name"): updated}); delivered != 0 {
		t.Fatalf("expected no redelivery, got %d", delivered)
	}

	want := []model.FieldState{initial, updated}
	if diff := cmp.Diff(want, name.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := &recorder{}
	path := model.Path("abc", "description")
	handle := reg.Subscribe(path, rec.callback, model.FieldState{Visible: false})
	other := reg.Subscribe(path, (&recorder{}).callback, model.FieldState{Visible: false})

	handle.Unsubscribe()
	handle.Unsubscribe()

	if reg.Len() != 1 || !reg.Has(path) {
		t.Fatalf("expected one remaining subscriber, got %d", reg.Len())
	}

	reg.Notify(1, map[model.FieldPath]model.FieldState{path: {Visible: true}})
	if len(rec.calls) != 1 {
		t.Fatalf("unsubscribed callback invoked: %d calls", len(rec.calls))
	}

	other.Unsubscribe()
	if reg.Has(path) || len(reg.Paths()) != 0 {
		t.Fatalf("expected registry to be empty, got %v", reg.Paths())
	}
}

func TestCallbackMayUnsubscribeDuringNotify(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	path := model.Path("abc", "checked")
	var handle *Handle
	calls := 0
	handle = reg.Subscribe(path, func(model.FieldPath, model.FieldState) {
		calls++
		if calls > 1 {
			handle.Unsubscribe()
		}
	}, model.FieldState{Value: false})

	reg.Notify(1, map[model.FieldPath]model.FieldState{path: {Value: true}})
	reg.Notify(2, map[model.FieldPath]model.FieldState{path: {Value: false}})

	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected subscription removed")
	}
}

func TestNilRegistryAndCallback(t *testing.T) {
	t.Parallel()

	var reg *Registry
	handle := reg.Subscribe(model.Path("abc", "name"), func(model.FieldPath, model.FieldState) {}, model.FieldState{})
	handle.Unsubscribe()
	if reg.Notify(1, map[model.FieldPath]model.FieldState{model.Path("abc", "name"): {}}) != 0 {
		t.Fatalf("nil registry should not deliver")
	}

	live := NewRegistry()
	live.Subscribe(model.Path("abc", "name"), nil, model.FieldState{}).Unsubscribe()
	if live.Len() != 0 {
		t.Fatalf("nil callback should not register")
	}
}

func TestNotifyDropsOlderBatches(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := &recorder{}
	path := model.Path("abc", "age")
	reg.Subscribe(path, rec.callback, model.FieldState{Value: float64(12)})

	reg.Notify(5, map[model.FieldPath]model.FieldState{path: {Value: float64(40)}})
	if delivered := reg.Notify(4, map[model.FieldPath]model.FieldState{path: {Value: float64(30)}}); delivered != 0 {
		t.Fatalf("older batch delivered %d states", delivered)
	}

	want := []model.FieldState{{Value: float64(12)}, {Value: float64(40)}}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterDefersInitialState(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rec := &recorder{}
	path := model.Path("abc", "age")
	handle := reg.Register(path, rec.callback, model.FieldState{Value: float64(9)}, 3)
	if len(rec.calls) != 0 {
		t.Fatalf("Register should not deliver, got %d calls", len(rec.calls))
	}

	// A newer batch replaces the queued initial state.
	reg.Notify(4, map[model.FieldPath]model.FieldState{path: {Value: float64(9), Error: "Age must be at least 10"}})
	if handle.Flush() != 0 {
		t.Fatalf("nothing should be left to flush")
	}

	want := []model.FieldState{{Value: float64(9), Error: "Age must be at least 10"}}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockedCallbackDoesNotReceiveStaleState(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	path := model.Path("abc", "age")
	initial := model.FieldState{Value: float64(12)}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var blockOnce sync.Once
	var mu sync.Mutex
	var first, second []any

	reg.Subscribe(path, func(_ model.FieldPath, state model.FieldState) {
		mu.Lock()
		first = append(first, state.Value)
		mu.Unlock()
		if state.Value == float64(30) {
			blockOnce.Do(func() {
				close(entered)
				<-unblock
			})
		}
	}, initial)
	reg.Subscribe(path, func(_ model.FieldPath, state model.FieldState) {
		mu.Lock()
		second = append(second, state.Value)
		mu.Unlock()
	}, initial)

	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.Notify(1, map[model.FieldPath]model.FieldState{path: {Value: float64(30)}})
	}()
	<-entered

	// The first subscriber is busy; this call must not block on it.
	reg.Notify(2, map[model.FieldPath]model.FieldState{path: {Value: float64(40)}})
	close(unblock)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]any{float64(12), float64(30), float64(40)}, first); diff != "" {
		t.Fatalf("first subscriber mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{float64(12), float64(40)}, second); diff != "" {
		t.Fatalf("second subscriber mismatch (-want +got):\n%s", diff)
	}
}
