package utils

import (
	"encoding/json"
	"testing"
)

const contactSchema = `{
	"type": "object",
	"properties": {
		"name":  {"type": "string", "minLength": 2},
		"age":   {"type": "integer", "minimum": 0, "maximum": 150},
		"color": {"type": "string", "enum": ["red", "green"]}
	},
	"required": ["name"]
}`

func validateContact(t *testing.T, value map[string]interface{}) []SchemaViolation {
	t.Helper()
	s, err := CompileSchema(json.RawMessage(contactSchema))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	violations, err := s.Validate(value)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return violations
}

func TestValidateAcceptsValidObject(t *testing.T) {
	violations := validateContact(t, map[string]interface{}{"name": "Ada", "age": 36})
	if len(violations) != 0 {
		t.Errorf("Expected no violations, got %v", violations)
	}
}

func TestValidateReportsViolations(t *testing.T) {
	violations := validateContact(t, map[string]interface{}{"age": 200, "color": "blue"})

	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
		if v.Description == "" {
			t.Errorf("Violation for %s has no description", v.Field)
		}
	}
	for _, want := range []string{"name", "age", "color"} {
		if !fields[want] {
			t.Errorf("Expected a violation for %q, got %v", want, violations)
		}
	}
}

func TestCompileSchemaInvalid(t *testing.T) {
	if _, err := CompileSchema(json.RawMessage(`{not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if _, err := CompileSchema(json.RawMessage(`{"type": 12}`)); err == nil {
		t.Error("Expected error for malformed schema")
	}
}

func TestCompileSchemaEmpty(t *testing.T) {
	s, err := CompileSchema(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	violations, err := s.Validate(map[string]interface{}{"anything": 1})
	if err != nil || len(violations) != 0 {
		t.Errorf("Expected empty schema to accept any object, got %v, %v", violations, err)
	}
}

func TestMergeObjects(t *testing.T) {
	defaults := map[string]interface{}{"name": "anon", "age": 1}
	answer := map[string]interface{}{"name": "Ada"}

	merged := MergeObjects(defaults, answer)
	if merged["name"] != "Ada" || merged["age"] != 1 {
		t.Errorf("Unexpected merge result: %v", merged)
	}
	if defaults["name"] != "anon" {
		t.Error("MergeObjects modified its input")
	}
	if len(MergeObjects()) != 0 {
		t.Error("Expected empty result for no input")
	}
}
