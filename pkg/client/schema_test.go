package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
)

const bookingSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "title": "Your name", "minLength": 2},
		"guests": {"type": "integer", "minimum": 1, "maximum": 10},
		"budget": {"type": "number", "description": "Per night"},
		"breakfast": {"type": "boolean", "default": false},
		"room": {"type": "string", "enum": ["single", "double"], "enumNames": ["Single", "Double"]}
	},
	"required": ["name", "guests"]
}`

func TestParseFormSchemaFields(t *testing.T) {
	form, err := parseFormSchema(json.RawMessage(bookingSchema))
	require.NoError(t, err)
	require.Len(t, form.fields, 5)

	names := make([]string, 0, len(form.fields))
	for _, f := range form.fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "guests", "budget", "breakfast", "room"}, names, "declaration order is kept")

	name := form.fields[0]
	assert.Equal(t, "Your name", name.Title)
	assert.True(t, name.Required)
	require.NotNil(t, name.MinLength)
	assert.Equal(t, 2, *name.MinLength)

	guests := form.fields[1]
	assert.Equal(t, FieldInteger, guests.Type)
	assert.Equal(t, "guests", guests.Title, "title falls back to the name")
	require.NotNil(t, guests.Maximum)
	assert.Equal(t, 10.0, *guests.Maximum)

	assert.False(t, form.fields[2].Required)
	assert.Equal(t, false, form.fields[3].Default)

	room := form.fields[4]
	assert.Equal(t, FieldEnum, room.Type)
	assert.Equal(t, []string{"single", "double"}, room.Enum)
	assert.Equal(t, []string{"Single", "Double"}, room.EnumNames)
}

func TestParseFormSchemaEmpty(t *testing.T) {
	form, err := parseFormSchema(nil)
	require.NoError(t, err)
	assert.Empty(t, form.fields)

	_, err = parseFormSchema(json.RawMessage(`{"type":"array"}`))
	assert.Error(t, err)
}

func TestNormalizeCoercesAndDefaults(t *testing.T) {
	form, err := parseFormSchema(json.RawMessage(bookingSchema))
	require.NoError(t, err)

	out, err := form.normalize(map[string]interface{}{
		"name":   "Ada",
		"guests": "3",
		"budget": " 120.5 ",
		"room":   "double",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, int64(3), out["guests"])
	assert.Equal(t, 120.5, out["budget"])
	assert.Equal(t, false, out["breakfast"], "missing optional field gets its default")
	assert.Equal(t, "double", out["room"])
}

func TestNormalizeRejectsInvalidContent(t *testing.T) {
	form, err := parseFormSchema(json.RawMessage(bookingSchema))
	require.NoError(t, err)

	tests := []struct {
		name    string
		content map[string]interface{}
		field   string
	}{
		{"missing required", map[string]interface{}{"name": "Ada"}, "guests"},
		{"not a number", map[string]interface{}{"name": "Ada", "guests": "many"}, "guests"},
		{"fractional integer", map[string]interface{}{"name": "Ada", "guests": 2.5}, "guests"},
		{"above maximum", map[string]interface{}{"name": "Ada", "guests": 11}, "guests"},
		{"too short", map[string]interface{}{"name": "A", "guests": 1}, "name"},
		{"unknown enum value", map[string]interface{}{"name": "Ada", "guests": 1, "room": "suite"}, "room"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := form.normalize(tt.content)
			require.Error(t, err)
			assert.True(t, mcperrors.IsCode(err, mcperrors.CodeValidationError))

			mcpErr, ok := mcperrors.AsMCPError(err)
			require.True(t, ok)
			violations, ok := mcpErr.Data().([]mcperrors.FieldViolation)
			require.True(t, ok)
			require.NotEmpty(t, violations)
			assert.Equal(t, tt.field, violations[0].Field)
		})
	}
}
