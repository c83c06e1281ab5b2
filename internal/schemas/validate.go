// Package schemas provides JSON Schema validation for synthesized announcement records.
// One schema per record type is embedded from records/<type>.schema.json.
package schemas

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed records/*.schema.json
var recordSchemas embed.FS

// ErrUnknownType is returned when no schema exists for a record type.
var ErrUnknownType = errors.New("no schema for record type")

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

// SchemaPath returns the embedded path of the schema for recordType.
func SchemaPath(recordType string) string {
	return "records/" + recordType + ".schema.json"
}

// RecordSchema returns the raw schema text for recordType.
func RecordSchema(recordType string) (string, error) {
	data, err := recordSchemas.ReadFile(SchemaPath(recordType))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, recordType)
	}
	return string(data), nil
}

// ValidateRecord validates a JSON record document against the schema of recordType.
func ValidateRecord(recordType string, document []byte) error {
	schema, err := schemaFor(recordType)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to load record document: %w", err)
	}
	return toValidationError(result)
}

func schemaFor(recordType string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if schema, ok := compiled[recordType]; ok {
		return schema, nil
	}

	raw, err := RecordSchema(recordType)
	if err != nil {
		return nil, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, &SchemaLoadError{
			Path:    SchemaPath(recordType),
			Message: "invalid schema",
			Cause:   err,
		}
	}
	compiled[recordType] = schema
	return schema, nil
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
