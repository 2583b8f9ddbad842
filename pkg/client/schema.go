package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/utils"
)

// Field types reported in FieldDescriptor.Type
const (
	FieldString  = "string"
	FieldNumber  = "number"
	FieldInteger = "integer"
	FieldBoolean = "boolean"
	FieldEnum    = "enum"
)

// FieldDescriptor is one input of an elicitation form, flattened from the
// requested schema.
type FieldDescriptor struct {
	Name        string
	Title       string
	Description string
	Type        string
	Required    bool
	Enum        []string
	EnumNames   []string
	Minimum     *float64
	Maximum     *float64
	MinLength   *int
	MaxLength   *int
	Format      string
	Default     interface{}
}

// propertySchema is the subset of JSON schema allowed for elicitation fields
type propertySchema struct {
	Type        string        `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Enum        []interface{} `json:"enum"`
	EnumNames   []string      `json:"enumNames"`
	Minimum     *float64      `json:"minimum"`
	Maximum     *float64      `json:"maximum"`
	MinLength   *int          `json:"minLength"`
	MaxLength   *int          `json:"maxLength"`
	Format      string        `json:"format"`
	Default     interface{}   `json:"default"`
}

type objectSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

// formSchema is a parsed requested schema: its fields in declaration order
// plus the compiled validator.
type formSchema struct {
	fields    []FieldDescriptor
	validator *utils.CompiledSchema
}

func parseFormSchema(raw json.RawMessage) (*formSchema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{"type":"object","properties":{}}`)
	}

	var obj objectSchema
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("requestedSchema: %w", err)
	}
	if obj.Type != "" && obj.Type != "object" {
		return nil, fmt.Errorf("requestedSchema must be an object, got %q", obj.Type)
	}

	order, err := propertyOrder(raw)
	if err != nil {
		return nil, err
	}

	required := make(map[string]bool, len(obj.Required))
	for _, name := range obj.Required {
		required[name] = true
	}

	fields := make([]FieldDescriptor, 0, len(order))
	for _, name := range order {
		field, err := decodeField(name, obj.Properties[name])
		if err != nil {
			return nil, err
		}
		field.Required = required[name]
		fields = append(fields, field)
	}

	validator, err := utils.CompileSchema(raw)
	if err != nil {
		return nil, err
	}
	return &formSchema{fields: fields, validator: validator}, nil
}

// decodeField flattens one property schema into a descriptor
func decodeField(name string, raw json.RawMessage) (FieldDescriptor, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return FieldDescriptor{}, fmt.Errorf("property %s: %w", name, err)
	}

	var prop propertySchema
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &prop,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return FieldDescriptor{}, err
	}
	if err := decoder.Decode(generic); err != nil {
		return FieldDescriptor{}, fmt.Errorf("property %s: %w", name, err)
	}

	field := FieldDescriptor{
		Name:        name,
		Title:       prop.Title,
		Description: prop.Description,
		Type:        prop.Type,
		EnumNames:   prop.EnumNames,
		Minimum:     prop.Minimum,
		Maximum:     prop.Maximum,
		MinLength:   prop.MinLength,
		MaxLength:   prop.MaxLength,
		Format:      prop.Format,
		Default:     prop.Default,
	}
	if field.Title == "" {
		field.Title = name
	}
	if field.Type == "" {
		field.Type = FieldString
	}
	if len(prop.Enum) > 0 {
		field.Type = FieldEnum
		field.Enum = cast.ToStringSlice(prop.Enum)
	}
	return field, nil
}

// propertyOrder returns the property names in the order the server wrote them
func propertyOrder(raw json.RawMessage) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	props, ok := top["properties"]
	if !ok || bytes.Equal(bytes.TrimSpace(props), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(props))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("requestedSchema properties must be an object")
	}

	var names []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		names = append(names, tok.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// normalize coerces submitted values to the field types, fills defaults for
// missing fields and validates the result against the schema.
func (s *formSchema) normalize(content map[string]interface{}) (map[string]interface{}, error) {
	out := utils.MergeObjects(content)

	var violations []mcperrors.FieldViolation
	for _, f := range s.fields {
		v, present := out[f.Name]
		if !present || v == nil || (f.Type != FieldString && v == "") {
			delete(out, f.Name)
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		coerced, err := coerce(f, v)
		if err != nil {
			violations = append(violations, mcperrors.FieldViolation{Field: f.Name, Description: err.Error()})
			continue
		}
		out[f.Name] = coerced
	}
	if len(violations) > 0 {
		return nil, mcperrors.InvalidAnswer(violations)
	}

	schemaViolations, err := s.validator.Validate(out)
	if err != nil {
		return nil, mcperrors.ProtocolError("failed to validate answer", err)
	}
	for _, v := range schemaViolations {
		violations = append(violations, mcperrors.FieldViolation{Field: v.Field, Description: v.Description})
	}
	if len(violations) > 0 {
		return nil, mcperrors.InvalidAnswer(violations)
	}
	return out, nil
}

func coerce(f FieldDescriptor, v interface{}) (interface{}, error) {
	switch f.Type {
	case FieldNumber:
		n, err := cast.ToFloat64E(trimString(v))
		if err != nil {
			return nil, fmt.Errorf("expected a number")
		}
		return n, nil

	case FieldInteger:
		n, err := cast.ToFloat64E(trimString(v))
		if err != nil || n != math.Trunc(n) {
			return nil, fmt.Errorf("expected an integer")
		}
		return int64(n), nil

	case FieldBoolean:
		b, err := cast.ToBoolE(trimString(v))
		if err != nil {
			return nil, fmt.Errorf("expected true or false")
		}
		return b, nil

	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("expected text")
		}
		return s, nil
	}
}

func trimString(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}
