package form

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formstate/pkg/store"
	"github.com/goliatone/go-formstate/pkg/validation"
	"github.com/goliatone/go-formstate/pkg/visibility"
)

// Option configures an Engine.
type Option func(*Engine)

// WithValidator sets the schema capability run on every pass. Without one
// every pass succeeds.
func WithValidator(v validation.Validator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithMode sets the mode used until the first submit. Defaults to
// ModeOnChange.
func WithMode(mode Mode) Option {
	return func(e *Engine) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithReValidateMode sets the mode used after the first submit. Defaults to
// ModeOnChange.
func WithReValidateMode(mode Mode) Option {
	return func(e *Engine) {
		if mode != "" {
			e.reValidateMode = mode
		}
	}
}

// WithLogger sets the engine logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator overrides how ids are generated for records inserted
// without one.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.ids = gen
		}
	}
}

// WithEvaluator overrides the visibility rule evaluator. Defaults to the
// expr evaluator.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(e *Engine) {
		if evaluator != nil {
			e.evaluator = evaluator
		}
	}
}

// WithExtras exposes values to visibility rules under the `extras.` prefix.
func WithExtras(extras map[string]any) Option {
	return func(e *Engine) {
		e.extras = extras
	}
}

// WithAsyncValidation runs passes on their own goroutine. Mutations return
// immediately with a pending Pass.
func WithAsyncValidation(enabled bool) Option {
	return func(e *Engine) {
		e.async = enabled
	}
}

// WithArrayName sets the collection name stripped from issue paths.
// Defaults to the form model name.
func WithArrayName(name string) Option {
	return func(e *Engine) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			e.arrayName = trimmed
		}
	}
}
