package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/internal/config"
	"github.com/goliatone/go-formstate/pkg/openapi"
	"github.com/goliatone/go-formstate/pkg/schema"
)

func main() {
	var (
		schemaPath  = flag.String("schema", "pkg/openapi/testdata/rows.openapi.yaml", "OpenAPI document path")
		component   = flag.String("component", "", "components.schemas entry describing the rows")
		operationID = flag.String("operation", "", "operation whose request body describes the rows")
		name        = flag.String("name", "test", "array field name")
		mode        = flag.String("mode", "onChange", "revalidation mode")
		outputPath  = flag.String("output", "", "output path for the YAML config (stdout when empty)")
	)
	flag.Parse()

	if *component == "" && *operationID == "" {
		fmt.Fprintln(os.Stderr, "one of -component or -operation is required")
		os.Exit(2)
	}

	ctx := context.Background()

	src, err := schema.ParseSource(*schemaPath, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid schema source: %v\n", err)
		os.Exit(1)
	}
	doc, err := openapi.Load(ctx, schema.NewLoader(), src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load document: %v\n", err)
		os.Exit(1)
	}

	var rows *openapi3.Schema
	if *component != "" {
		rows, err = doc.Component(ctx, *component)
	} else {
		rows, err = doc.RequestSchema(ctx, *operationID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve row schema: %v\n", err)
		os.Exit(1)
	}
	fields, err := openapi.Fields(rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to derive fields: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Config{
		Name: *name,
		Mode: *mode,
		Schema: config.Schema{
			Kind:      config.SchemaOpenAPI,
			Path:      *schemaPath,
			Component: *component,
			Operation: *operationID,
		},
		Fields: fields,
	}
	if err := cfg.Check(); err != nil {
		fmt.Fprintf(os.Stderr, "generated config is invalid: %v\n", err)
		os.Exit(1)
	}

	payload, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode config: %v\n", err)
		os.Exit(1)
	}
	if *outputPath == "" {
		fmt.Print(string(payload))
		return
	}
	if err := os.WriteFile(*outputPath, payload, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", *outputPath)
}
