package validation

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/model"
)

// Issue codes shared by the bundled validators.
const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeTooSmall    = "too_small"
	CodeTooBig      = "too_big"
	CodeTooShort    = "too_short"
	CodeTooLong     = "too_long"
	CodePattern     = "pattern"
	CodeUniqueness  = "uniqueness"
	CodeSchema      = "schema"
)

// Issue is one positional validation failure. Path locates the offending
// value inside the validated collection using a JSON pointer (/2/age) or a
// dotted form (test.2.age); the adapter translates it to a record id.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of validating a whole collection.
type Result struct {
	Success bool    `json:"success"`
	Issues  []Issue `json:"errors,omitempty"`
}

// Valid builds a successful result.
func Valid() Result {
	return Result{Success: true}
}

// Invalid builds a result from issues; an empty list still counts as valid.
func Invalid(issues ...Issue) Result {
	if len(issues) == 0 {
		return Valid()
	}
	return Result{Success: false, Issues: issues}
}

// Validator is the schema capability the engine consumes. It always receives
// the full, ordered collection. A non-nil error means the capability itself
// failed; validation failures are reported through Result.
type Validator interface {
	Validate(ctx context.Context, records []model.Record) (Result, error)
}

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(ctx context.Context, records []model.Record) (Result, error)

// Validate delegates to the underlying function.
func (fn ValidatorFunc) Validate(ctx context.Context, records []model.Record) (Result, error) {
	return fn(ctx, records)
}

// Pointer builds a JSON pointer for a record field, e.g. Pointer(2, "age")
// returns "/2/age".
func Pointer(index int, field string) string {
	if field == "" {
		return "/" + strconv.Itoa(index)
	}
	field = strings.ReplaceAll(field, "~", "~0")
	field = strings.ReplaceAll(field, "/", "~1")
	return "/" + strconv.Itoa(index) + "/" + field
}

// Collection flattens records into the []any of map[string]any shape schema
// libraries expect, with the id under the "id" key.
func Collection(records []model.Record) []any {
	out := make([]any, len(records))
	for i, rec := range records {
		out[i] = rec.Flat()
	}
	return out
}
