// Package openapi resolves row schemas out of OpenAPI 3 documents, either a
// named component or the JSON request body of an operation, so they can back a
// validation.JSONSchemaValidator.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/pkg/schema"
)

// Document wraps the raw OpenAPI payload and its origin. The payload is
// parsed and validated on first use; copies of a Document share the result.
type Document struct {
	source schema.Source
	raw    []byte
	parsed *parsedSpec
}

type parsedSpec struct {
	mu   sync.Mutex
	spec *openapi3.T
}

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src schema.Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("openapi: source is required")
	}
	if len(raw) == 0 {
		return Document{}, errors.New("openapi: raw document is empty")
	}

	clone := append([]byte(nil), raw...)
	return Document{source: src, raw: clone, parsed: &parsedSpec{}}, nil
}

// Load fetches src through loader and wraps it in a Document.
func Load(ctx context.Context, loader *schema.Loader, src schema.Source) (Document, error) {
	if loader == nil {
		loader = schema.NewLoader()
	}
	raw, err := loader.Load(ctx, src)
	if err != nil {
		return Document{}, err
	}
	return NewDocument(src, raw)
}

// Source returns the origin metadata for the document.
func (d Document) Source() schema.Source {
	return d.source
}

// Raw returns a copy of the OpenAPI payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

func (d Document) spec(ctx context.Context) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.parsed == nil {
		return parse(ctx, d.raw)
	}

	d.parsed.mu.Lock()
	defer d.parsed.mu.Unlock()
	if d.parsed.spec != nil {
		return d.parsed.spec, nil
	}
	spec, err := parse(ctx, d.raw)
	if err != nil {
		return nil, err
	}
	d.parsed.spec = spec
	return spec, nil
}

func parse(ctx context.Context, raw []byte) (*openapi3.T, error) {
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return spec, nil
}

// Component returns components.schemas[name] with references resolved.
func (d Document) Component(ctx context.Context, name string) (*openapi3.Schema, error) {
	spec, err := d.spec(ctx)
	if err != nil {
		return nil, err
	}
	if spec.Components == nil {
		return nil, fmt.Errorf("openapi: component %q not found", name)
	}
	ref, ok := spec.Components.Schemas[name]
	if !ok || ref == nil || ref.Value == nil {
		return nil, fmt.Errorf("openapi: component %q not found", name)
	}
	return ref.Value, nil
}

// RequestSchema returns the request body schema of operationID, preferring
// application/json content.
func (d Document) RequestSchema(ctx context.Context, operationID string) (*openapi3.Schema, error) {
	spec, err := d.spec(ctx)
	if err != nil {
		return nil, err
	}
	if spec.Paths != nil {
		for _, item := range spec.Paths.Map() {
			if item == nil {
				continue
			}
			for _, op := range item.Operations() {
				if op == nil || op.OperationID != operationID {
					continue
				}
				return requestBodySchema(operationID, op.RequestBody)
			}
		}
	}
	return nil, fmt.Errorf("openapi: operation %q not found", operationID)
}

func requestBodySchema(operationID string, body *openapi3.RequestBodyRef) (*openapi3.Schema, error) {
	if body == nil || body.Value == nil {
		return nil, fmt.Errorf("openapi: operation %q has no request body", operationID)
	}
	content := body.Value.Content
	if mt, ok := content["application/json"]; ok && mt.Schema != nil && mt.Schema.Value != nil {
		return mt.Schema.Value, nil
	}
	for _, mt := range content {
		if mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value, nil
		}
	}
	return nil, fmt.Errorf("openapi: operation %q has no request schema", operationID)
}
