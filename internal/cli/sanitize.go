package cli

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	submitPolicyOnce sync.Once
	submitPolicy     *bluemonday.Policy
)

func submitSanitizer() *bluemonday.Policy {
	submitPolicyOnce.Do(func() {
		submitPolicy = bluemonday.StrictPolicy()
	})
	return submitPolicy
}

// sanitizeSubmit strips markup from every string in the submitted payload.
func sanitizeSubmit(values map[string]any) (map[string]any, error) {
	out, _ := sanitizeValue(values).(map[string]any)
	return out, nil
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(submitSanitizer().Sanitize(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = sanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}
