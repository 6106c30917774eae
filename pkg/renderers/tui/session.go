package tui

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/binding"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Menu entries offered by Run, in display order.
const (
	ActionEdit   = "Edit row"
	ActionAdd    = "Add row"
	ActionRemove = "Remove row"
	ActionSubmit = "Submit"
	ActionQuit   = "Quit"
)

var actions = []string{ActionEdit, ActionAdd, ActionRemove, ActionSubmit, ActionQuit}

// Session drives an engine from the terminal: it previews the rows, edits
// them through the prompt driver and submits them.
type Session struct {
	engine            *form.Engine
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
}

// New constructs a session with defaults (survey driver, JSON output).
func New(engine *form.Engine, options ...Option) (*Session, error) {
	if engine == nil {
		return nil, errors.New("tui: engine is required")
	}

	s := &Session{
		engine:       engine,
		outputFormat: OutputFormatJSON,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.driver == nil {
		s.driver = NewSurveyDriver(nil)
	}
	return s, nil
}

// ContentType reports the serialization format used for submitted values.
func (s *Session) ContentType() string {
	switch s.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Run loops over the action menu until the user submits valid rows or quits.
// It returns the serialized payload of a valid submit, or nil on quit.
func (s *Session) Run(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.preview(ctx); err != nil {
			return nil, err
		}

		idx, err := s.driver.Select(ctx, SelectConfig{
			Message:      s.theme.PromptPrefix + "Action",
			Options:      actions,
			DefaultIndex: 0,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(actions) {
			_ = s.info(ctx, "Invalid action selection")
			continue
		}

		switch actions[idx] {
		case ActionEdit:
			id, err := s.chooseRow(ctx, "Row to edit")
			if err != nil {
				if errors.Is(err, ErrNoRecords) {
					_ = s.info(ctx, "No rows to edit")
					continue
				}
				return nil, err
			}
			if err := s.EditRecord(ctx, id); err != nil {
				return nil, err
			}
		case ActionAdd:
			id, _, err := s.engine.Append(model.Record{})
			if err != nil {
				return nil, fmt.Errorf("tui: add row: %w", err)
			}
			if err := s.EditRecord(ctx, id); err != nil {
				return nil, err
			}
		case ActionRemove:
			id, err := s.chooseRow(ctx, "Row to remove")
			if err != nil {
				if errors.Is(err, ErrNoRecords) {
					_ = s.info(ctx, "No rows to remove")
					continue
				}
				return nil, err
			}
			s.engine.Remove(id)
			if err := s.engine.Wait(ctx); err != nil {
				return nil, err
			}
		case ActionSubmit:
			payload, ok, err := s.submit(ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				return payload, nil
			}
		case ActionQuit:
			return nil, nil
		}
	}
}

func (s *Session) preview(ctx context.Context) error {
	out, err := s.engine.JSON()
	if err != nil {
		return err
	}
	return s.info(ctx, string(out))
}

func (s *Session) chooseRow(ctx context.Context, message string) (string, error) {
	records := s.engine.Values()
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	options := make([]string, len(records))
	for i, rec := range records {
		options[i] = rowLabel(i, rec)
	}

	for {
		idx, err := s.driver.Select(ctx, SelectConfig{
			Message:      s.theme.PromptPrefix + message,
			Options:      options,
			DefaultIndex: 0,
		})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(records) {
			_ = s.info(ctx, "Invalid row selection")
			continue
		}
		return records[idx].ID, nil
	}
}

// fieldWatch collects the errors delivered to the subscriptions of one row.
type fieldWatch struct {
	mu      sync.Mutex
	errors  map[string]string
	handles []*binding.Handle
}

func (w *fieldWatch) callback(path model.FieldPath, state model.FieldState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors[path.Field] = state.Error
}

func (w *fieldWatch) errorFor(field string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errors[field]
}

func (w *fieldWatch) close() {
	for _, h := range w.handles {
		h.Unsubscribe()
	}
}

// EditRecord prompts every visible field of the row with id, in declaration
// order, and reports the errors the row carries afterwards. Visibility is
// re-read before each prompt so toggling a gate shows or hides the gated
// field within the same edit.
func (s *Session) EditRecord(ctx context.Context, id string) error {
	fields := s.engine.Model().Fields
	watch := &fieldWatch{errors: make(map[string]string)}
	defer watch.close()

	paths := []model.FieldPath{model.Path(id, "")}
	for _, field := range fields {
		paths = append(paths, model.Path(id, field.Name))
	}
	for _, path := range paths {
		handle, err := s.engine.Subscribe(path, watch.callback)
		if err != nil {
			return fmt.Errorf("tui: subscribe %s: %w", path, err)
		}
		watch.handles = append(watch.handles, handle)
	}

	for _, field := range fields {
		visible, err := s.engine.Visible(id, field.Name)
		if err != nil {
			return err
		}
		if !visible {
			continue
		}
		state, err := s.engine.Field(id, field.Name)
		if err != nil {
			return err
		}

		value, err := s.promptField(ctx, field, state.Value)
		if err != nil {
			return err
		}
		if _, err := s.engine.SetField(id, field.Name, value); err != nil {
			return fmt.Errorf("tui: set %s: %w", model.Path(id, field.Name), err)
		}
		if _, err := s.engine.Blur(id, field.Name); err != nil {
			return fmt.Errorf("tui: blur %s: %w", model.Path(id, field.Name), err)
		}
	}

	if err := s.engine.Wait(ctx); err != nil {
		return err
	}

	if msg := watch.errorFor(""); msg != "" {
		_ = s.info(ctx, s.theme.ErrorPrefix+msg)
	}
	for _, field := range fields {
		msg := watch.errorFor(field.Name)
		if msg == "" {
			continue
		}
		if visible, _ := s.engine.Visible(id, field.Name); !visible {
			continue
		}
		_ = s.info(ctx, fmt.Sprintf("%s%s: %s", s.theme.ErrorPrefix, field.DisplayLabel(), msg))
	}
	return nil
}

func (s *Session) promptField(ctx context.Context, field model.Field, current any) (any, error) {
	label := s.theme.PromptPrefix + field.DisplayLabel()
	help := field.Metadata["help"]

	switch field.Type {
	case model.FieldTypeBoolean:
		def, _ := current.(bool)
		return s.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: def, Help: help})
	case model.FieldTypeNumber:
		return s.promptNumber(ctx, field, label, help, current)
	default:
		def, _ := current.(string)
		if field.Metadata["input"] == "textarea" {
			return s.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: def, Help: help})
		}
		return s.driver.Input(ctx, InputConfig{Message: label, Default: def, Help: help})
	}
}

func (s *Session) promptNumber(ctx context.Context, field model.Field, label, help string, current any) (any, error) {
	def := ""
	if n, ok := current.(float64); ok {
		def = strconv.FormatFloat(n, 'f', -1, 64)
	}

	for {
		input, err := s.driver.Input(ctx, InputConfig{
			Message: label,
			Default: def,
			Help:    help,
			Validator: func(raw string) error {
				_, err := parseNumber(raw)
				return err
			},
		})
		if err != nil {
			return nil, err
		}
		n, err := parseNumber(input)
		if err != nil {
			_ = s.info(ctx, fmt.Sprintf("%sInvalid %s: %v", s.theme.ErrorPrefix, field.Name, err))
			continue
		}
		return n, nil
	}
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("a number is required")
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return n, nil
}

func (s *Session) submit(ctx context.Context) ([]byte, bool, error) {
	var payload []byte
	valid, err := s.engine.Submit(ctx, func(_ context.Context, records []model.Record) error {
		out, err := s.serialize(records)
		if err != nil {
			return err
		}
		payload = out
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if valid {
		return payload, true, nil
	}

	errs := s.engine.Errors()
	index := make(map[string]int)
	for i, id := range s.engine.IDs() {
		index[id] = i
	}
	for _, msg := range s.engine.FormErrors() {
		_ = s.info(ctx, s.theme.ErrorPrefix+msg)
	}
	for _, path := range errs.Paths() {
		msg, _ := errs.Get(path)
		where := fmt.Sprintf("row %d", index[path.ID]+1)
		if path.Field != "" {
			where += " " + path.Field
		}
		_ = s.info(ctx, fmt.Sprintf("%s%s: %s", s.theme.ErrorPrefix, where, msg))
	}
	return nil, false, nil
}

func (s *Session) serialize(records []model.Record) ([]byte, error) {
	name := s.engine.Model().Name
	if name == "" {
		name = "records"
	}
	values := map[string]any{name: validation.Collection(records)}
	if s.submitTransformer != nil {
		var err error
		values, err = s.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}

	switch s.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}

func (s *Session) info(ctx context.Context, msg string) error {
	return s.driver.Info(ctx, s.theme.InfoPrefix+msg)
}

func rowLabel(index int, rec model.Record) string {
	label := fmt.Sprintf("%d. %s", index+1, rec.ID)
	if name, ok := rec.Values["name"].(string); ok && name != "" {
		label += " (" + name + ")"
	}
	return label
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	flatten("", values, flattened)
	return flattened.Encode()
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flatten(next, val, out)
		}
	case []any:
		for idx, val := range v {
			flatten(fmt.Sprintf("%s[%d]", prefix, idx), val, out)
		}
	default:
		out.Set(prefix, fmt.Sprint(v))
	}
}

func prettyPrint(values map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", values)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%v\n", prefix, v)
		}
	}
}
