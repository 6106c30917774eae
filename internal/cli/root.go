// Package cli wires the formstate commands: preview, validate and edit.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/goliatone/go-formstate/internal/config"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/renderers/tui"
)

// ErrInvalid is returned by validate when the collection has errors.
var ErrInvalid = errors.New("form is invalid")

// RootOptions holds global flags and injectable collaborators.
type RootOptions struct {
	ConfigPath     string
	Mode           string
	ReValidateMode string
	Async          bool
	Verbose        bool

	// Driver replaces the survey prompt driver used by edit.
	Driver tui.PromptDriver
	// LookupEnv replaces os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// NewRootCommand creates the formstate command tree. A nil opts uses
// defaults.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	cmd := &cobra.Command{
		Use:   "formstate",
		Short: "Inspect and edit array forms from the terminal",
		Long: `Load an array form (YAML or TOML, or the built-in demo), then preview
its rows, validate them against the configured schema, or edit them
interactively with live per-field validation.`,
		Example: `  formstate preview
  formstate validate --config rows.yaml
  formstate edit --mode onBlur --format pretty`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "form config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.Mode, "mode", "", "revalidation mode (onChange|onBlur|onSubmit|onTouched|all)")
	cmd.PersistentFlags().StringVar(&opts.ReValidateMode, "revalidate-mode", "", "revalidation mode after the first submit")
	cmd.PersistentFlags().BoolVar(&opts.Async, "async", false, "run validation passes in the background")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))

	return cmd
}

// session is the loaded form shared by every subcommand.
type session struct {
	cfg    config.Config
	engine *form.Engine
	log    zerolog.Logger
}

func (o *RootOptions) load(cmd *cobra.Command) (*session, error) {
	log := NewLogger(cmd.ErrOrStderr(), o.Verbose)

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Debug().Str("path", o.ConfigPath).Msg("config loaded")
	}

	lookup := o.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup, changed); err != nil {
		return nil, err
	}
	if changed["mode"] {
		cfg.Mode = o.Mode
	}
	if changed["revalidate-mode"] {
		cfg.ReValidateMode = o.ReValidateMode
	}
	if changed["async"] {
		cfg.Async = o.Async
	}
	cfg, err := cfg.Resolve(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	options, err := cfg.Options(cmd.Context())
	if err != nil {
		return nil, err
	}
	options = append(options, form.WithLogger(log))

	engine, err := form.New(cfg.Model(), options...)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(cfg.Seed()); err != nil {
		return nil, fmt.Errorf("seed rows: %w", err)
	}

	log.Debug().
		Str("form", cfg.Name).
		Str("mode", engine.Mode().String()).
		Int("rows", engine.Len()).
		Bool("async", cfg.Async).
		Msg("form ready")

	return &session{cfg: cfg, engine: engine, log: log}, nil
}
