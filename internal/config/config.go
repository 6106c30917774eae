// Package config loads the form description used by the formstate CLI: the
// array model, its seed rows, revalidation modes and the validator backend.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/model"
	"github.com/goliatone/go-formstate/pkg/openapi"
	"github.com/goliatone/go-formstate/pkg/schema"
	"github.com/goliatone/go-formstate/pkg/validation"
	"github.com/goliatone/go-formstate/pkg/validation/cueschema"
	"github.com/goliatone/go-formstate/pkg/validation/rules"
)

// Schema kinds accepted by Config.Validator.
const (
	SchemaRules      = "rules"
	SchemaJSONSchema = "jsonschema"
	SchemaCUE        = "cue"
	SchemaOpenAPI    = "openapi"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FORMSTATE_"

// Schema selects the validator backend. Path is resolved relative to the
// config file when it is not absolute.
type Schema struct {
	Kind string `yaml:"kind" toml:"kind"`
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
	// Definition is the CUE path describing the collection (default #Rows).
	Definition string `yaml:"definition,omitempty" toml:"definition,omitempty"`
	// Root wraps the collection as {root: [...]} for JSON schemas written
	// against the whole form value.
	Root string `yaml:"root,omitempty" toml:"root,omitempty"`
	// Component and Operation pick the row schema out of an OpenAPI
	// document: components.schemas[Component] or the request body of
	// Operation.
	Component string `yaml:"component,omitempty" toml:"component,omitempty"`
	Operation string `yaml:"operation,omitempty" toml:"operation,omitempty"`
}

// FieldRules is the declarative rule set for one field when Schema.Kind is
// "rules". Empty messages disable the corresponding check.
type FieldRules struct {
	Required   string   `yaml:"required,omitempty" toml:"required,omitempty"`
	Min        *float64 `yaml:"min,omitempty" toml:"min,omitempty"`
	MinMessage string   `yaml:"minMessage,omitempty" toml:"min_message,omitempty"`
	Max        *float64 `yaml:"max,omitempty" toml:"max,omitempty"`
	MaxMessage string   `yaml:"maxMessage,omitempty" toml:"max_message,omitempty"`
}

// Config is the on-disk form description.
type Config struct {
	Name           string                `yaml:"name" toml:"name"`
	Mode           string                `yaml:"mode,omitempty" toml:"mode,omitempty"`
	ReValidateMode string                `yaml:"reValidateMode,omitempty" toml:"revalidate_mode,omitempty"`
	Async          bool                  `yaml:"async,omitempty" toml:"async,omitempty"`
	Schema         Schema                `yaml:"schema,omitempty" toml:"schema,omitempty"`
	Fields         []model.Field         `yaml:"fields" toml:"fields"`
	Rules          map[string]FieldRules `yaml:"rules,omitempty" toml:"rules,omitempty"`
	Rows           []map[string]any      `yaml:"rows,omitempty" toml:"rows,omitempty"`

	dir string
}

// Default returns the demo form: four rows of name, age, checked and a
// description gated on checked.
func Default() Config {
	ten := float64(10)
	row := func(id, name string, age int) map[string]any {
		return map[string]any{"id": id, "name": name, "age": age, "checked": false, "description": ""}
	}
	return Config{
		Name:   "test",
		Mode:   form.ModeOnChange.String(),
		Schema: Schema{Kind: SchemaRules},
		Fields: []model.Field{
			{Name: "name", Type: model.FieldTypeString, Label: "Name"},
			{Name: "age", Type: model.FieldTypeNumber, Label: "Age"},
			{Name: "checked", Type: model.FieldTypeBoolean, Label: "Checked"},
			{Name: "description", Type: model.FieldTypeString, Label: "Description", VisibleWhen: "checked"},
		},
		Rules: map[string]FieldRules{
			"name": {Required: "Name is required"},
			"age":  {Min: &ten, MinMessage: "Age must be at least 10"},
		},
		Rows: []map[string]any{
			row("abc", "test", 12),
			row("def", "test2", 13),
			row("ghi", "test3", 14),
			row("jkl", "test4", 15),
		},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) config file.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, errors.New("config: path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: decode yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		return cfg, fmt.Errorf("config: unsupported file extension %q", ext)
	}

	cfg.dir = filepath.Dir(path)
	if err := cfg.Check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FileExists reports whether a file exists at p.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Check validates the structural parts of the config.
func (c Config) Check() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("config: name is required")
	}
	if len(c.Fields) == 0 && c.schemaKind() != SchemaOpenAPI {
		return errors.New("config: at least one field is required")
	}
	for _, raw := range []string{c.Mode, c.ReValidateMode} {
		if raw == "" {
			continue
		}
		if _, err := form.ParseMode(raw); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	switch c.schemaKind() {
	case SchemaRules:
	case SchemaJSONSchema, SchemaCUE, SchemaOpenAPI:
		if strings.TrimSpace(c.Schema.Path) == "" {
			return fmt.Errorf("config: schema kind %q requires a path", c.Schema.Kind)
		}
		if c.schemaKind() == SchemaOpenAPI && c.Schema.Component == "" && c.Schema.Operation == "" {
			return errors.New("config: openapi schema requires a component or an operation")
		}
	default:
		return fmt.Errorf("config: unknown schema kind %q", c.Schema.Kind)
	}
	return nil
}

// ApplyEnv overrides mode settings from FORMSTATE_MODE,
// FORMSTATE_REVALIDATE_MODE and FORMSTATE_ASYNC. Keys marked in changed were
// set on the command line and win over the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool), changed map[string]bool) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvPrefix + "MODE"); ok && !changed["mode"] {
		c.Mode = v
	}
	if v, ok := lookup(EnvPrefix + "REVALIDATE_MODE"); ok && !changed["revalidate-mode"] {
		c.ReValidateMode = v
	}
	if v, ok := lookup(EnvPrefix + "ASYNC"); ok && !changed["async"] {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sASYNC: %w", EnvPrefix, err)
		}
		c.Async = b
	}
	return nil
}

// Resolve fills Fields from the OpenAPI row schema when the config uses the
// openapi kind and declares no fields of its own.
func (c Config) Resolve(ctx context.Context) (Config, error) {
	if len(c.Fields) > 0 || c.schemaKind() != SchemaOpenAPI {
		return c, nil
	}
	rows, err := c.openAPIRows(ctx)
	if err != nil {
		return c, err
	}
	fields, err := openapi.Fields(rows)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	c.Fields = fields
	return c, nil
}

// Model returns the array form model.
func (c Config) Model() model.FormModel {
	fields := make([]model.Field, len(c.Fields))
	copy(fields, c.Fields)
	return model.FormModel{Name: c.Name, Fields: fields}
}

// Seed converts the configured rows into records. Rows without an "id" get
// one from the engine's generator.
func (c Config) Seed() []model.Record {
	out := make([]model.Record, 0, len(c.Rows))
	for _, row := range c.Rows {
		out = append(out, model.NewRecord(row))
	}
	return out
}

// Options returns the engine options described by the config.
func (c Config) Options(ctx context.Context) ([]form.Option, error) {
	validator, err := c.Validator(ctx)
	if err != nil {
		return nil, err
	}
	opts := []form.Option{
		form.WithValidator(validator),
		form.WithAsyncValidation(c.Async),
	}
	if c.Mode != "" {
		mode, err := form.ParseMode(c.Mode)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts = append(opts, form.WithMode(mode))
	}
	if c.ReValidateMode != "" {
		mode, err := form.ParseMode(c.ReValidateMode)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts = append(opts, form.WithReValidateMode(mode))
	}
	return opts, nil
}

// Validator builds the configured validator backend.
func (c Config) Validator(ctx context.Context) (validation.Validator, error) {
	switch c.schemaKind() {
	case SchemaRules:
		return c.rulesValidator(), nil
	case SchemaJSONSchema:
		raw, err := c.readSchema(ctx)
		if err != nil {
			return nil, err
		}
		var opts []validation.JSONSchemaOption
		if c.Schema.Root != "" {
			opts = append(opts, validation.WithRootProperty(c.Schema.Root))
		}
		return validation.NewJSONSchemaValidator(raw, opts...)
	case SchemaOpenAPI:
		return c.openAPIValidator(ctx)
	case SchemaCUE:
		raw, err := c.readSchema(ctx)
		if err != nil {
			return nil, err
		}
		return cueschema.New(string(raw),
			cueschema.WithPath(c.Schema.Definition),
			cueschema.WithMessages(c.messages()),
		)
	default:
		return nil, fmt.Errorf("config: unknown schema kind %q", c.Schema.Kind)
	}
}

func (c Config) schemaKind() string {
	kind := strings.ToLower(strings.TrimSpace(c.Schema.Kind))
	if kind == "" {
		return SchemaRules
	}
	return kind
}

func (c Config) schemaSource() (schema.Source, error) {
	src, err := schema.ParseSource(c.Schema.Path, c.dir)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return src, nil
}

func (c Config) readSchema(ctx context.Context) ([]byte, error) {
	src, err := c.schemaSource()
	if err != nil {
		return nil, err
	}
	data, err := schema.NewLoader().Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("config: read schema: %w", err)
	}
	return data, nil
}

func (c Config) openAPIRows(ctx context.Context) (*openapi3.Schema, error) {
	src, err := c.schemaSource()
	if err != nil {
		return nil, err
	}
	doc, err := openapi.Load(ctx, schema.NewLoader(), src)
	if err != nil {
		return nil, fmt.Errorf("config: read schema: %w", err)
	}

	var rows *openapi3.Schema
	if c.Schema.Component != "" {
		rows, err = doc.Component(ctx, c.Schema.Component)
	} else {
		rows, err = doc.RequestSchema(ctx, c.Schema.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return rows, nil
}

func (c Config) openAPIValidator(ctx context.Context) (validation.Validator, error) {
	rows, err := c.openAPIRows(ctx)
	if err != nil {
		return nil, err
	}

	var opts []validation.JSONSchemaOption
	if c.Schema.Root != "" {
		opts = append(opts, validation.WithRootProperty(c.Schema.Root))
	}
	return validation.NewSchemaValidator(rows, opts...)
}

// messages collects the first configured message per field, used to replace
// backend-generated text.
func (c Config) messages() map[string]string {
	out := make(map[string]string, len(c.Rules))
	for field, r := range c.Rules {
		for _, msg := range []string{r.Required, r.MinMessage, r.MaxMessage} {
			if msg != "" {
				out[field] = msg
				break
			}
		}
	}
	return out
}

func (c Config) rulesValidator() *rules.Schema {
	fields := []rules.FieldRule{rules.Field("id", rules.String())}
	for _, f := range c.Fields {
		fields = append(fields, rules.Field(f.Name, ruleFor(f, c.Rules[f.Name])))
	}
	return rules.Array(fields...)
}

func ruleFor(f model.Field, r FieldRules) rules.Rule {
	switch f.Type {
	case model.FieldTypeNumber:
		rule := rules.Number()
		if r.Min != nil {
			rule.Min(*r.Min, r.MinMessage)
		}
		if r.Max != nil {
			rule.Max(*r.Max, r.MaxMessage)
		}
		return rule
	case model.FieldTypeBoolean:
		return rules.Bool()
	default:
		rule := rules.String()
		if r.Required != "" {
			rule.NonEmpty(r.Required)
		}
		if r.Min != nil {
			rule.Min(int(*r.Min), r.MinMessage)
		}
		if r.Max != nil {
			rule.Max(int(*r.Max), r.MaxMessage)
		}
		return rule
	}
}
