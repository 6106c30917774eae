package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// InputConfig configures a single-line prompt. Validator runs on every
// answer before it is accepted.
type InputConfig struct {
	Message   string
	Default   string
	Help      string
	Validator func(string) error
}

type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
}

type TextAreaConfig struct {
	Message string
	Default string
	Help    string
}

// PromptDriver is what a Session talks to. The survey driver is the default;
// tests script their own.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	TextArea(ctx context.Context, cfg TextAreaConfig) (string, error)
	Info(ctx context.Context, msg string) error
}

type surveyDriver struct {
	out   io.Writer
	stdio survey.AskOpt
}

// NewSurveyDriver returns a terminal driver. Prompts and Info messages are
// written to out (stderr when nil) so stdout stays free for the submitted
// payload; answers are read from stdin.
func NewSurveyDriver(out io.Writer) PromptDriver {
	if out == nil {
		out = os.Stderr
	}
	return &surveyDriver{
		out:   out,
		stdio: survey.WithStdio(os.Stdin, fileWriter(out), os.Stderr),
	}
}

// fileWriter keeps survey's cursor handling when out is a terminal.
func fileWriter(out io.Writer) terminal.FileWriter {
	if f, ok := out.(terminal.FileWriter); ok {
		return f
	}
	return os.Stderr
}

func (d *surveyDriver) ask(ctx context.Context, prompt survey.Prompt, answer any, opts ...survey.AskOpt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := survey.AskOne(prompt, answer, append(opts, d.stdio)...)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	var opts []survey.AskOpt
	if cfg.Validator != nil {
		check := cfg.Validator
		opts = append(opts, survey.WithValidator(func(ans any) error {
			s, _ := ans.(string)
			return check(s)
		}))
	}
	var answer string
	err := d.ask(ctx, &survey.Input{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &answer, opts...)
	return answer, err
}

func (d *surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	var answer bool
	err := d.ask(ctx, &survey.Confirm{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &answer)
	return answer, err
}

func (d *surveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	prompt := &survey.Select{Message: cfg.Message, Options: cfg.Options}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		prompt.Default = cfg.Options[cfg.DefaultIndex]
	}
	var answer string
	if err := d.ask(ctx, prompt, &answer); err != nil {
		return -1, err
	}
	return slices.Index(cfg.Options, answer), nil
}

func (d *surveyDriver) TextArea(ctx context.Context, cfg TextAreaConfig) (string, error) {
	var answer string
	err := d.ask(ctx, &survey.Multiline{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default}, &answer)
	return answer, err
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}
