// Package form implements the form state engine: an ordered array of records
// with stable ids, whole-collection validation mapped back onto record ids,
// path-scoped subscriptions and derived field visibility.
//
// All mutation goes through the Engine so that validation scheduling and
// observer notification stay consistent with the stored records.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formstate/pkg/binding"
	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/store"
	"github.com/goliatone/go-formstate/pkg/validation"
	"github.com/goliatone/go-formstate/pkg/visibility"
	"github.com/goliatone/go-formstate/pkg/visibility/expr"
)

// SubmitHandler receives the validated snapshot.
type SubmitHandler func(ctx context.Context, records []model.Record) error

// Engine owns the record store and error map of one array form.
//
// Validators and subscriber callbacks are always invoked without the engine
// lock held, so callbacks may read engine state or start new mutations.
type Engine struct {
	mu sync.Mutex

	form     model.FormModel
	fields   map[string]model.Field
	store    *store.Store
	adapter  *validation.Adapter
	resolver *visibility.Resolver
	registry *binding.Registry
	logger   zerolog.Logger

	validator      validation.Validator
	evaluator      visibility.Evaluator
	extras         map[string]any
	ids            store.IDGenerator
	arrayName      string
	mode           Mode
	reValidateMode Mode
	async          bool

	errors       validation.ErrorMap
	formErrors   []string
	edits        map[model.FieldPath]uint64
	touched      map[model.FieldPath]bool
	gen          uint64
	validatedGen uint64
	seq          uint64
	latest       *Pass
	cancel       context.CancelFunc
	modified     bool
	submitCount  int
	// notifySeq orders observer batches; it only grows under mu.
	notifySeq uint64
}

type passJob struct {
	pass     *Pass
	ctx      context.Context
	cancel   context.CancelFunc
	snapshot []model.Record
	gen      uint64
}

// New builds an engine for form. The store starts empty; call Initialize to
// seed it.
func New(form model.FormModel, options ...Option) (*Engine, error) {
	e := &Engine{
		form:           form,
		fields:         make(map[string]model.Field, len(form.Fields)),
		logger:         zerolog.Nop(),
		evaluator:      expr.New(),
		arrayName:      form.Name,
		mode:           ModeOnChange,
		reValidateMode: ModeOnChange,
		errors:         validation.ErrorMap{},
		edits:          make(map[model.FieldPath]uint64),
		touched:        make(map[model.FieldPath]bool),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}

	if !e.mode.Valid() {
		return nil, fmt.Errorf("form: unknown mode %q", e.mode)
	}
	if !e.reValidateMode.Valid() {
		return nil, fmt.Errorf("form: unknown re-validate mode %q", e.reValidateMode)
	}

	for _, field := range form.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" || name == "id" {
			return nil, fmt.Errorf("form: invalid field name %q", field.Name)
		}
		if _, dup := e.fields[name]; dup {
			return nil, fmt.Errorf("form: duplicate field %q", name)
		}
		if _, ok := e.evaluator.(*expr.Evaluator); ok && field.VisibleWhen != "" {
			if _, err := expr.Compile(field.VisibleWhen); err != nil {
				return nil, fmt.Errorf("form: field %q visibility rule: %w", name, err)
			}
		}
		e.fields[name] = field
	}

	var storeOpts []store.Option
	if e.ids != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(e.ids))
	}
	e.store = store.New(storeOpts...)
	e.adapter = validation.NewAdapter(e.validator, validation.WithArrayName(e.arrayName))
	e.resolver = visibility.NewResolver(form, e.evaluator, e.extras)
	e.registry = binding.NewRegistry()
	return e, nil
}

// Model returns the form model the engine was built with.
func (e *Engine) Model() model.FormModel {
	return e.form
}

// Mode returns the mode currently in effect: the configured mode before the
// first submit and the re-validate mode afterwards.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeModeLocked()
}

// Initialize replaces every record with seed and resets errors, edit
// tracking and the submit count. Any pass in flight is discarded.
func (e *Engine) Initialize(seed []model.Record) error {
	prepared := make([]model.Record, 0, len(seed))
	for _, rec := range seed {
		p, err := e.prepareRecord(rec)
		if err != nil {
			return err
		}
		prepared = append(prepared, p)
	}

	e.mu.Lock()
	if err := e.store.Initialize(prepared); err != nil {
		e.mu.Unlock()
		return err
	}
	e.supersedeLocked()
	e.errors = validation.ErrorMap{}
	e.formErrors = nil
	e.edits = make(map[model.FieldPath]uint64)
	e.touched = make(map[model.FieldPath]bool)
	e.validatedGen = e.gen
	e.modified = false
	e.submitCount = 0
	e.logger.Debug().Int("records", e.store.Len()).Msg("form initialized")
	e.release(e.registry.Paths(), nil)
	return nil
}

// Len returns the number of records.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}

// Get returns a copy of the record at index.
func (e *Engine) Get(index int) (model.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(index)
}

// Lookup returns a copy of the record with id.
func (e *Engine) Lookup(id string) (model.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Lookup(id)
}

// IDs returns the record ids in order.
func (e *Engine) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IDs()
}

// Values returns a deep copy of the ordered records.
func (e *Engine) Values() []model.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Values()
}

// SetField updates one field. The returned pass is nil when the value did
// not change or the active mode schedules no validation for edits.
func (e *Engine) SetField(id, field string, value any) (*Pass, error) {
	if err := e.checkField(field); err != nil {
		return nil, err
	}

	e.mu.Lock()
	changed, err := e.store.SetField(id, field, value)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !changed {
		e.mu.Unlock()
		return nil, nil
	}

	path := model.Path(id, field)
	e.gen++
	e.edits[path] = e.gen
	e.modified = true

	var job *passJob
	if e.activeModeLocked().validates(triggerChange, e.touched[path]) {
		job = e.issueLocked("change")
	}
	return e.release(e.recordPathsLocked(id), job), nil
}

// Blur ends the edit session of a field and marks it touched.
func (e *Engine) Blur(id, field string) (*Pass, error) {
	if err := e.checkField(field); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !e.store.Has(id) {
		e.mu.Unlock()
		return nil, store.UnknownRecordError{ID: id}
	}

	path := model.Path(id, field)
	var paths []model.FieldPath
	if !e.touched[path] {
		e.touched[path] = true
		paths = append(paths, path)
	}

	var job *passJob
	if e.activeModeLocked().validates(triggerBlur, true) {
		job = e.issueLocked("blur")
	}
	return e.release(paths, job), nil
}

// Insert places rec at index (clamped to [0, Len()]). Missing declared
// fields are filled with their defaults and a fresh id is generated when rec
// has none.
func (e *Engine) Insert(index int, rec model.Record) (string, *Pass, error) {
	return e.insert("insert", rec, func(s *store.Store, prepared model.Record) (string, error) {
		return s.Insert(index, prepared)
	})
}

// Append adds rec after the last record.
func (e *Engine) Append(rec model.Record) (string, *Pass, error) {
	return e.insert("append", rec, func(s *store.Store, prepared model.Record) (string, error) {
		return s.Append(prepared)
	})
}

// Prepend adds rec before the first record.
func (e *Engine) Prepend(rec model.Record) (string, *Pass, error) {
	return e.insert("prepend", rec, func(s *store.Store, prepared model.Record) (string, error) {
		return s.Prepend(prepared)
	})
}

func (e *Engine) insert(reason string, rec model.Record, place func(*store.Store, model.Record) (string, error)) (string, *Pass, error) {
	prepared, err := e.prepareRecord(rec)
	if err != nil {
		return "", nil, err
	}

	e.mu.Lock()
	id, err := place(e.store, prepared)
	if err != nil {
		e.mu.Unlock()
		return "", nil, err
	}
	e.modified = true
	job := e.arrayOpLocked(reason)
	return id, e.release(e.recordPathsLocked(id), job), nil
}

// Remove deletes the record with id together with its errors and edit
// state. Removing an absent id is a no-op and returns nil.
func (e *Engine) Remove(id string) *Pass {
	e.mu.Lock()
	if !e.store.Remove(id) {
		e.mu.Unlock()
		return nil
	}
	e.errors = e.errors.Without(id)
	for path := range e.edits {
		if path.ID == id {
			delete(e.edits, path)
		}
	}
	for path := range e.touched {
		if path.ID == id {
			delete(e.touched, path)
		}
	}
	e.modified = true
	job := e.arrayOpLocked("remove")
	return e.release(nil, job)
}

// Move relocates the record at from to position to.
func (e *Engine) Move(from, to int) (*Pass, error) {
	e.mu.Lock()
	if err := e.store.Move(from, to); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if from == to {
		e.mu.Unlock()
		return nil, nil
	}
	e.modified = true
	job := e.arrayOpLocked("move")
	return e.release(nil, job), nil
}

// Swap exchanges the records at positions a and b.
func (e *Engine) Swap(a, b int) (*Pass, error) {
	e.mu.Lock()
	if err := e.store.Swap(a, b); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if a == b {
		e.mu.Unlock()
		return nil, nil
	}
	e.modified = true
	job := e.arrayOpLocked("swap")
	return e.release(nil, job), nil
}

// Trigger issues a full validation pass regardless of mode.
func (e *Engine) Trigger() *Pass {
	e.mu.Lock()
	job := e.issueLocked("trigger")
	return e.release(nil, job)
}

// Wait blocks until the most recently issued pass has settled.
func (e *Engine) Wait(ctx context.Context) error {
	if ctx == nil {
		return errors.New("form: context is required")
	}
	for {
		p := e.latestPass()
		if err := p.Wait(ctx); err != nil {
			return err
		}
		if e.latestPass() == p {
			return nil
		}
	}
}

// Submit revalidates the whole collection, waits for the latest pass to
// settle and hands the snapshot to handler when no errors remain. valid
// reports the validation outcome; err is only set when the validator, the
// context or the handler failed.
func (e *Engine) Submit(ctx context.Context, handler SubmitHandler) (valid bool, err error) {
	if ctx == nil {
		return false, errors.New("form: context is required")
	}

	e.Trigger()
	if err := e.Wait(ctx); err != nil {
		return false, err
	}

	e.mu.Lock()
	latest := e.latest
	e.submitCount++
	valid = len(e.errors) == 0 && len(e.formErrors) == 0
	snapshot := e.store.Values()
	count := e.submitCount
	errCount := len(e.errors) + len(e.formErrors)
	e.mu.Unlock()

	if err := latest.Err(); err != nil {
		return false, fmt.Errorf("form: validation did not run: %w", err)
	}

	e.logger.Debug().Int("submit_count", count).Bool("valid", valid).Int("errors", errCount).Msg("form submitted")
	if !valid || handler == nil {
		return valid, nil
	}
	if err := handler(ctx, snapshot); err != nil {
		return true, fmt.Errorf("form: submit handler: %w", err)
	}
	return true, nil
}

// Subscribe registers callback for path. It is invoked once with the current
// state and again whenever the state of path changes; a state is never
// followed by an older one. A path with an empty field
// receives record-level errors.
func (e *Engine) Subscribe(path model.FieldPath, callback binding.Callback) (*binding.Handle, error) {
	if path.Field != "" {
		if err := e.checkField(path.Field); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	rec, ok := e.store.Lookup(path.ID)
	if !ok {
		e.mu.Unlock()
		return nil, store.UnknownRecordError{ID: path.ID}
	}
	e.notifySeq++
	handle := e.registry.Register(path, callback, e.fieldStateLocked(rec, path.Field), e.notifySeq)
	e.mu.Unlock()

	handle.Flush()
	return handle, nil
}

// Field returns the current state of one field. Visibility is evaluated
// against the record's current values on every call.
func (e *Engine) Field(id, field string) (model.FieldState, error) {
	if err := e.checkField(field); err != nil {
		return model.FieldState{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.store.Lookup(id)
	if !ok {
		return model.FieldState{}, store.UnknownRecordError{ID: id}
	}
	return e.fieldStateLocked(rec, field), nil
}

// Visible reports whether field is shown for the record with id.
func (e *Engine) Visible(id, field string) (bool, error) {
	if err := e.checkField(field); err != nil {
		return false, err
	}

	e.mu.Lock()
	rec, ok := e.store.Lookup(id)
	e.mu.Unlock()
	if !ok {
		return false, store.UnknownRecordError{ID: id}
	}
	return e.resolver.Visible(rec, field)
}

// Errors returns a copy of the error map.
func (e *Engine) Errors() validation.ErrorMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors.Clone()
}

// Error returns the message for one field.
func (e *Engine) Error(id, field string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors.Get(model.Path(id, field))
}

// FormErrors returns collection-level messages that are not attributed to a
// record.
func (e *Engine) FormErrors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.formErrors...)
}

// State summarises the form.
func (e *Engine) State() FormState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() FormState {
	return FormState{
		Dirty:       e.modified,
		Valid:       len(e.errors) == 0 && len(e.formErrors) == 0,
		Validating:  e.latest.Pending(),
		Submitted:   e.submitCount > 0,
		SubmitCount: e.submitCount,
		ErrorCount:  len(e.errors) + len(e.formErrors),
		Records:     e.store.Len(),
	}
}

func (e *Engine) latestPass() *Pass {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

func (e *Engine) activeModeLocked() Mode {
	if e.submitCount > 0 {
		return e.reValidateMode
	}
	return e.mode
}

func (e *Engine) arrayOpLocked(reason string) *passJob {
	if !e.activeModeLocked().validates(triggerChange, len(e.touched) > 0) {
		return nil
	}
	return e.issueLocked(reason)
}

func (e *Engine) checkField(field string) error {
	if field == "" || field == "id" {
		return UnknownFieldError{Field: field}
	}
	if len(e.fields) == 0 {
		return nil
	}
	if _, ok := e.fields[field]; !ok {
		return UnknownFieldError{Field: field}
	}
	return nil
}

func (e *Engine) prepareRecord(rec model.Record) (model.Record, error) {
	out := rec.Clone()
	if out.Values == nil {
		out.Values = make(map[string]any, len(e.form.Fields))
	}
	for name := range out.Values {
		if err := e.checkField(name); err != nil {
			return model.Record{}, err
		}
	}
	for _, field := range e.form.Fields {
		if _, ok := out.Values[field.Name]; !ok {
			out.Values[field.Name] = field.ZeroValue()
		}
	}
	return out, nil
}

// recordPathsLocked lists every path of the record with id, including the
// record-level path.
func (e *Engine) recordPathsLocked(id string) []model.FieldPath {
	paths := []model.FieldPath{model.Path(id, "")}
	if len(e.form.Fields) > 0 {
		for _, field := range e.form.Fields {
			paths = append(paths, model.Path(id, field.Name))
		}
		return paths
	}
	if rec, ok := e.store.Lookup(id); ok {
		for name := range rec.Values {
			paths = append(paths, model.Path(id, name))
		}
	}
	return paths
}

func (e *Engine) fieldStateLocked(rec model.Record, field string) model.FieldState {
	path := model.Path(rec.ID, field)
	state := model.FieldState{Visible: true, Touched: e.touched[path]}
	if field != "" {
		state.Value, _ = rec.Get(field)
		visible, err := e.resolver.Visible(rec, field)
		if err != nil {
			e.logger.Warn().Err(err).Str("path", path.String()).Msg("visibility rule failed")
			visible = true
		}
		state.Visible = visible
	}
	msg, hasError := e.errors.Get(path)
	state.Error = msg

	editGen, edited := e.edits[path]
	state.Dirty = edited
	switch {
	case edited && editGen > e.validatedGen:
		state.Status = model.StatusDirty
	case hasError:
		state.Status = model.StatusInvalid
	case edited:
		state.Status = model.StatusValid
	default:
		state.Status = model.StatusPristine
	}
	return state
}

func (e *Engine) statesLocked(paths []model.FieldPath) map[model.FieldPath]model.FieldState {
	if len(paths) == 0 {
		return nil
	}
	states := make(map[model.FieldPath]model.FieldState, len(paths))
	for _, path := range paths {
		if _, done := states[path]; done || !e.registry.Has(path) {
			continue
		}
		rec, ok := e.store.Lookup(path.ID)
		if !ok {
			continue
		}
		states[path] = e.fieldStateLocked(rec, path.Field)
	}
	return states
}

// release computes the observer states for paths, unlocks the engine,
// notifies subscribers and finally starts job. It must be called with the
// lock held.
func (e *Engine) release(paths []model.FieldPath, job *passJob) *Pass {
	e.notifySeq++
	seq := e.notifySeq
	states := e.statesLocked(paths)
	e.mu.Unlock()

	e.registry.Notify(seq, states)
	if job == nil {
		return nil
	}
	if e.async {
		go e.run(job)
	} else {
		e.run(job)
	}
	return job.pass
}

// supersedeLocked cancels any in-flight pass and bumps the sequence so it is
// discarded when it settles.
func (e *Engine) supersedeLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.seq++
}

func (e *Engine) issueLocked(reason string) *passJob {
	e.supersedeLocked()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	p := newPass(e.seq, reason)
	e.latest = p
	job := &passJob{
		pass:     p,
		ctx:      ctx,
		cancel:   cancel,
		snapshot: e.store.Values(),
		gen:      e.gen,
	}
	e.logger.Debug().Uint64("seq", p.seq).Str("reason", reason).Int("records", len(job.snapshot)).Msg("validation pass issued")
	return job
}

func (e *Engine) run(job *passJob) {
	outcome, err := e.adapter.Run(job.ctx, job.snapshot)
	job.cancel()
	e.settle(job, outcome, err)
}

func (e *Engine) settle(job *passJob, outcome validation.Outcome, err error) {
	e.mu.Lock()
	if job.pass.seq != e.seq {
		latest := e.seq
		e.mu.Unlock()
		e.logger.Debug().Uint64("seq", job.pass.seq).Uint64("latest", latest).Msg("validation pass discarded")
		job.pass.settle(outcome, false, nil)
		return
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Error().Err(err).Uint64("seq", job.pass.seq).Msg("validator failed")
		job.pass.settle(validation.Outcome{}, false, err)
		return
	}

	next := make(validation.ErrorMap, len(outcome.Errors))
	for path, msg := range outcome.Errors {
		// Records removed after the snapshot was taken keep no errors.
		if e.store.Has(path.ID) {
			next[path] = msg
		}
	}

	paths := validation.Diff(e.errors, next)
	for path, editGen := range e.edits {
		if editGen > e.validatedGen && editGen <= job.gen {
			paths = append(paths, path)
		}
	}

	e.errors = next
	e.formErrors = append([]string(nil), outcome.FormErrors...)
	e.validatedGen = max(e.validatedGen, job.gen)

	e.logger.Debug().Uint64("seq", job.pass.seq).Int("errors", len(next)).Int("form_errors", len(e.formErrors)).Msg("validation pass applied")
	e.release(paths, nil)
	job.pass.settle(outcome, true, nil)
}
