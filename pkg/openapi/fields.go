package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/pkg/model"
)

// VisibleWhenExtension holds a field's visibility rule on its property schema.
const VisibleWhenExtension = "x-visible-when"

// Fields derives record fields from an array-of-objects schema. Required
// properties come first in their declared order, the rest sorted by name;
// the "id" property is skipped because record ids are managed by the store.
func Fields(rows *openapi3.Schema) ([]model.Field, error) {
	if rows == nil {
		return nil, fmt.Errorf("openapi: row schema is nil")
	}
	item := rows
	if hasType(rows, "array") {
		if rows.Items == nil || rows.Items.Value == nil {
			return nil, fmt.Errorf("openapi: array schema is missing items")
		}
		item = rows.Items.Value
	}
	if len(item.Properties) == 0 {
		return nil, fmt.Errorf("openapi: row schema declares no properties")
	}

	names := make([]string, 0, len(item.Properties))
	seen := make(map[string]bool, len(item.Properties))
	for _, name := range item.Required {
		if _, ok := item.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range item.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	fields := make([]model.Field, 0, len(names))
	for _, name := range names {
		if name == "id" {
			continue
		}
		ref := item.Properties[name]
		if ref == nil || ref.Value == nil {
			return nil, fmt.Errorf("openapi: property %q is unresolved", name)
		}
		field, err := fieldFromSchema(name, ref.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func fieldFromSchema(name string, s *openapi3.Schema) (model.Field, error) {
	field := model.Field{
		Name:    name,
		Label:   strings.TrimSpace(s.Title),
		Default: s.Default,
	}
	if field.Label == "" {
		field.Label = LabelFor(name)
	}

	switch {
	case hasType(s, "string"):
		field.Type = model.FieldTypeString
	case hasType(s, "number"), hasType(s, "integer"):
		field.Type = model.FieldTypeNumber
	case hasType(s, "boolean"):
		field.Type = model.FieldTypeBoolean
	default:
		return model.Field{}, fmt.Errorf("openapi: property %q is not a string, number or boolean", name)
	}

	if rule, ok := s.Extensions[VisibleWhenExtension].(string); ok {
		field.VisibleWhen = strings.TrimSpace(rule)
	}
	if s.Description != "" {
		field.Metadata = map[string]string{"description": s.Description}
	}
	return field, nil
}

func hasType(s *openapi3.Schema, typ string) bool {
	if s.Type == nil {
		return false
	}
	for _, value := range s.Type.Slice() {
		if value == typ {
			return true
		}
	}
	return false
}
