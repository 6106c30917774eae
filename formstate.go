// Package formstate manages the state of an array form: an ordered collection
// of records with stable ids, validated as a whole and observed per field.
package formstate

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstate/internal/config"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/model"
)

// Engine aliases form.Engine for callers importing only the root package.
type Engine = form.Engine

// Option configures an Engine.
type Option = form.Option

// FormModel describes the array field and its per-record fields.
type FormModel = model.FormModel

// Record is one row of the collection.
type Record = model.Record

// New builds an empty engine for m, mirroring form.New.
func New(m FormModel, options ...Option) (*Engine, error) {
	return form.New(m, options...)
}

// Open loads a YAML or TOML form config, builds its validator and returns an
// engine seeded with the configured rows. options are applied after the
// config-derived ones, so callers can override mode or logger.
func Open(ctx context.Context, path string, options ...Option) (*Engine, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return fromConfig(ctx, cfg, options...)
}

// Demo returns an engine holding the four demo rows with the name and age
// rules applied.
func Demo(options ...Option) (*Engine, error) {
	return fromConfig(context.Background(), config.Default(), options...)
}

func fromConfig(ctx context.Context, cfg config.Config, options ...Option) (*Engine, error) {
	cfg, err := cfg.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	base, err := cfg.Options(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := form.New(cfg.Model(), append(base, options...)...)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(cfg.Seed()); err != nil {
		return nil, fmt.Errorf("formstate: seed rows: %w", err)
	}
	return engine, nil
}
