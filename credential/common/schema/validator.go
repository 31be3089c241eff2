package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Policy controls how schema references that cannot be resolved are treated
// during credential verification.
type Policy int

const (
	// PolicyStrict fails verification when a referenced schema is not
	// registered. This is the default.
	PolicyStrict Policy = iota

	// PolicyPermissive skips schema references that cannot be resolved;
	// resolvable schemas are still enforced.
	PolicyPermissive
)

// CompiledSchema is a JSON Schema compiled once and reused for every
// document validated against it.
type CompiledSchema struct {
	id     string
	schema *gojsonschema.Schema
}

// Compile compiles a raw JSON Schema document under the given identifier.
func Compile(id string, raw []byte) (*CompiledSchema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %q: %w", id, err)
	}

	return &CompiledSchema{id: id, schema: s}, nil
}

// ID returns the identifier the schema was registered under.
func (s *CompiledSchema) ID() string { return s.id }

// Validate checks a document against the schema. The schema engine is
// treated as a black box: a failing document yields a *ValidationError
// listing every violated constraint, with no partial enforcement.
func (s *CompiledSchema) Validate(doc interface{}) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate against schema %q: %w", s.id, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &ValidationError{SchemaID: s.id, Problems: problems}
}

// ValidationError reports a document that failed JSON Schema validation.
type ValidationError struct {
	SchemaID string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document does not satisfy schema %q: %s", e.SchemaID, strings.Join(e.Problems, "; "))
}
