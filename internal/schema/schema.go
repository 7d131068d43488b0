// Package schema validates history documents against the embedded JSON
// Schema.
package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed history-schema.json
var historySchema []byte

// HistorySchema returns the embedded schema document.
func HistorySchema() []byte {
	return historySchema
}

// Violation is one schema error.
type Violation struct {
	Field       string
	Description string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Description)
}

// Result lists the violations of a document. It is valid when empty.
type Result struct {
	Violations []Violation
}

// Valid reports whether the document conforms.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Validate checks data against the history schema. An error means data
// could not be validated at all (for example it is not JSON).
func Validate(data []byte) (Result, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(historySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return Result{}, fmt.Errorf("schema validation error: %w", err)
	}

	var out Result
	for _, verr := range result.Errors() {
		out.Violations = append(out.Violations, Violation{
			Field:       verr.Field(),
			Description: verr.Description(),
		})
	}
	return out, nil
}
