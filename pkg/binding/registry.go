// Package binding keeps path-scoped subscriptions for field state. Observers
// register interest in a single FieldPath and are only called when the state
// delivered for that path changes.
package binding

import (
	"sort"
	"sync"

	"github.com/goliatone/go-formstate/pkg/model"
)

// Callback receives the state of the subscribed path.
type Callback func(path model.FieldPath, state model.FieldState)

type subscriber struct {
	id       uint64
	path     model.FieldPath
	callback Callback
	active   bool

	// last is the newest state accepted for delivery and seq the batch it
	// came from. pending holds a state not yet handed to callback; only the
	// goroutine that set draining delivers it.
	last     model.FieldState
	seq      uint64
	pending  *model.FieldState
	draining bool
}

// Registry maps field paths to their subscribers.
//
// Each subscriber is delivered to by at most one goroutine at a time and
// never receives a state older than one it has already been given: a batch
// whose sequence number is below the subscriber's last accepted batch is
// dropped, and states that arrive while a callback is running replace the
// pending one instead of queueing behind it.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	byPath map[model.FieldPath]map[uint64]*subscriber
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byPath: make(map[model.FieldPath]map[uint64]*subscriber)}
}

// Handle deregisters a subscription.
type Handle struct {
	registry *Registry
	sub      *subscriber
	path     model.FieldPath
	once     sync.Once
}

// Path returns the subscribed path.
func (h *Handle) Path() model.FieldPath {
	if h == nil {
		return model.FieldPath{}
	}
	return h.path
}

// Unsubscribe removes the subscription. Calling it more than once is a no-op.
func (h *Handle) Unsubscribe() {
	if h == nil || h.registry == nil || h.sub == nil {
		return
	}
	h.once.Do(func() {
		h.registry.remove(h.sub)
	})
}

// Flush delivers the subscription's pending state, if any, and reports how
// many callbacks ran. It returns immediately when another goroutine is
// already delivering to the same subscriber.
func (h *Handle) Flush() int {
	if h == nil || h.registry == nil || h.sub == nil {
		return 0
	}
	r := h.registry
	r.mu.Lock()
	if h.sub.draining || h.sub.pending == nil {
		r.mu.Unlock()
		return 0
	}
	h.sub.draining = true
	r.mu.Unlock()
	return r.drain(h.sub)
}

// Subscribe registers callback for path and invokes it once with initial
// before returning.
func (r *Registry) Subscribe(path model.FieldPath, callback Callback, initial model.FieldState) *Handle {
	h := r.Register(path, callback, initial, 0)
	h.Flush()
	return h
}

// Register adds callback for path with initial queued as its first state,
// taken at batch seq. Nothing is delivered until Flush or a later Notify, so
// callers may register while holding their own locks.
func (r *Registry) Register(path model.FieldPath, callback Callback, initial model.FieldState, seq uint64) *Handle {
	if r == nil || callback == nil {
		return &Handle{path: path}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byPath == nil {
		r.byPath = make(map[model.FieldPath]map[uint64]*subscriber)
	}
	r.nextID++
	first := initial
	sub := &subscriber{
		id:       r.nextID,
		path:     path,
		callback: callback,
		active:   true,
		last:     initial,
		seq:      seq,
		pending:  &first,
	}
	subs := r.byPath[path]
	if subs == nil {
		subs = make(map[uint64]*subscriber)
		r.byPath[path] = subs
	}
	subs[sub.id] = sub
	return &Handle{registry: r, sub: sub, path: path}
}

func (r *Registry) remove(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub.active = false
	sub.pending = nil
	subs := r.byPath[sub.path]
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(r.byPath, sub.path)
	}
}

// Notify offers the states of batch seq to the subscribers of their paths
// and returns the number of callbacks run by this call. Paths not in states
// are left alone; a subscriber already holding a newer batch, or an equal
// state, is skipped.
func (r *Registry) Notify(seq uint64, states map[model.FieldPath]model.FieldState) int {
	if r == nil || len(states) == 0 {
		return 0
	}

	r.mu.Lock()
	var owned []*subscriber
	for path, state := range states {
		for _, sub := range r.byPath[path] {
			if seq < sub.seq {
				continue
			}
			sub.seq = seq
			if sub.last.Equal(state) {
				continue
			}
			next := state
			sub.last = state
			sub.pending = &next
			if !sub.draining {
				sub.draining = true
				owned = append(owned, sub)
			}
		}
	}
	r.mu.Unlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].id < owned[j].id
	})

	delivered := 0
	for _, sub := range owned {
		delivered += r.drain(sub)
	}
	return delivered
}

// drain hands pending states to sub until none is left. The caller must have
// set sub.draining.
func (r *Registry) drain(sub *subscriber) int {
	delivered := 0
	for {
		r.mu.Lock()
		if !sub.active || sub.pending == nil {
			sub.draining = false
			r.mu.Unlock()
			return delivered
		}
		state := *sub.pending
		sub.pending = nil
		r.mu.Unlock()

		sub.callback(sub.path, state)
		delivered++
	}
}

// Paths lists the paths that currently have at least one subscriber.
func (r *Registry) Paths() []model.FieldPath {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]model.FieldPath, 0, len(r.byPath))
	for path := range r.byPath {
		out = append(out, path)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Has reports whether path has subscribers.
func (r *Registry) Has(path model.FieldPath) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPath[path]) > 0
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, subs := range r.byPath {
		total += len(subs)
	}
	return total
}
