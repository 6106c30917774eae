package validation

import (
	"sort"

	"github.com/goliatone/go-formstate/pkg/model"
)

// ErrorMap holds the current message for every failing FieldPath. Absence of
// a key means the path has no error.
type ErrorMap map[model.FieldPath]string

// Get returns the message for path.
func (m ErrorMap) Get(path model.FieldPath) (string, bool) {
	if m == nil {
		return "", false
	}
	msg, ok := m[path]
	return msg, ok
}

// Len reports the number of failing paths.
func (m ErrorMap) Len() int {
	return len(m)
}

// Clone returns an independent copy.
func (m ErrorMap) Clone() ErrorMap {
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Paths returns the failing paths sorted by id then field.
func (m ErrorMap) Paths() []model.FieldPath {
	out := make([]model.FieldPath, 0, len(m))
	for path := range m {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// ForRecord returns the entries belonging to id keyed by field name.
func (m ErrorMap) ForRecord(id string) map[string]string {
	var out map[string]string
	for path, msg := range m {
		if path.ID != id {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[path.Field] = msg
	}
	return out
}

// Without returns a copy of m without the entries of id.
func (m ErrorMap) Without(id string) ErrorMap {
	out := make(ErrorMap, len(m))
	for path, msg := range m {
		if path.ID == id {
			continue
		}
		out[path] = msg
	}
	return out
}

// Diff returns every path whose message differs between a and b, including
// paths present in only one of them.
func Diff(a, b ErrorMap) []model.FieldPath {
	changed := make(ErrorMap)
	for path, msg := range a {
		if other, ok := b[path]; !ok || other != msg {
			changed[path] = msg
		}
	}
	for path, msg := range b {
		if other, ok := a[path]; !ok || other != msg {
			changed[path] = msg
		}
	}
	return changed.Paths()
}

// Flatten renders the map as "id.field" → message, the shape used by JSON
// output.
func (m ErrorMap) Flatten() map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for path, msg := range m {
		out[path.String()] = msg
	}
	return out
}
