package model

import "strings"

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// Field declares one scalar inside every record of the array. VisibleWhen
// holds an optional visibility rule (for example `checked` or `age >= 18`)
// evaluated against the owning record's current values.
type Field struct {
	Name        string            `json:"name" yaml:"name" toml:"name"`
	Type        FieldType         `json:"type" yaml:"type" toml:"type"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	VisibleWhen string            `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty" toml:"visible_when,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// ZeroValue returns the declared default or the zero value for the type.
func (f Field) ZeroValue() any {
	if f.Default != nil {
		if v, err := NormalizeValue(f.Default); err == nil {
			return v
		}
	}
	switch f.Type {
	case FieldTypeNumber:
		return float64(0)
	case FieldTypeBoolean:
		return false
	default:
		return ""
	}
}

// FormModel describes an array form: the array name (the key the collection
// lives under when serialised, e.g. "test") and the fields of each record.
type FormModel struct {
	Name   string  `json:"name" yaml:"name" toml:"name"`
	Fields []Field `json:"fields" yaml:"fields" toml:"fields"`
}

// Field looks up a declared field by name.
func (m FormModel) Field(name string) (Field, bool) {
	for _, field := range m.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// FieldNames returns the declared field names in declaration order.
func (m FormModel) FieldNames() []string {
	out := make([]string, 0, len(m.Fields))
	for _, field := range m.Fields {
		out = append(out, field.Name)
	}
	return out
}

// Record is one row of the array field. ID is stable for the lifetime of the
// record and independent of its position.
type Record struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// NewRecord builds a record from a flat map. An "id" string entry, when
// present, becomes the record ID and is removed from the values.
func NewRecord(values map[string]any) Record {
	rec := Record{Values: make(map[string]any, len(values))}
	for key, value := range values {
		if key == "id" {
			if id, ok := value.(string); ok {
				rec.ID = id
				continue
			}
		}
		rec.Values[key] = value
	}
	return rec
}

// Get returns the value stored for field.
func (r Record) Get(field string) (any, bool) {
	if r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[field]
	return v, ok
}

// Clone returns a copy that shares no maps with r.
func (r Record) Clone() Record {
	out := Record{ID: r.ID}
	if r.Values != nil {
		out.Values = make(map[string]any, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}

// Flat returns the values plus the id under the "id" key, the shape the
// collection has when handed to validators or serialised.
func (r Record) Flat() map[string]any {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out["id"] = r.ID
	return out
}

// CloneRecords deep copies a record slice.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// FieldPath identifies a single scalar within a record. An empty Field marks a
// record-level entry.
type FieldPath struct {
	ID    string
	Field string
}

// Path is shorthand for FieldPath{ID: id, Field: field}.
func Path(id, field string) FieldPath {
	return FieldPath{ID: id, Field: field}
}

// String renders the path as "id.field" (or just "id" for record-level paths).
func (p FieldPath) String() string {
	if p.Field == "" {
		return p.ID
	}
	return p.ID + "." + p.Field
}

// ParseFieldPath splits "id.field" at the last dot.
func ParseFieldPath(raw string) (FieldPath, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FieldPath{}, false
	}
	idx := strings.LastIndex(raw, ".")
	if idx < 0 {
		return FieldPath{ID: raw}, true
	}
	if idx == 0 {
		return FieldPath{}, false
	}
	return FieldPath{ID: raw[:idx], Field: raw[idx+1:]}, true
}
