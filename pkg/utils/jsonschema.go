package utils

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaViolation describes one failed schema constraint
type SchemaViolation struct {
	Field       string
	Description string
}

// CompiledSchema is a parsed JSON schema ready for repeated validation
type CompiledSchema struct {
	schema *gojsonschema.Schema
}

// CompileSchema parses a JSON schema document
func CompileSchema(schema json.RawMessage) (*CompiledSchema, error) {
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &CompiledSchema{schema: s}, nil
}

// Validate checks a decoded Go value against the schema. A nil slice means
// the value is valid.
func (c *CompiledSchema) Validate(value interface{}) ([]SchemaViolation, error) {
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("failed to validate: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]SchemaViolation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		// "required" errors are reported against the parent object
		if prop, ok := re.Details()["property"].(string); ok && re.Type() == "required" {
			field = prop
		}
		violations = append(violations, SchemaViolation{Field: field, Description: re.Description()})
	}
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
	return violations, nil
}

// MergeObjects merges maps, with later maps taking precedence. The inputs
// are not modified.
func MergeObjects(objects ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, obj := range objects {
		for k, v := range obj {
			result[k] = v
		}
	}
	return result
}
