package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func leadSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"email": {
				Type:      "string",
				Format:    "email",
				MinLength: intPtr(1),
				MaxLength: intPtr(255),
				Messages: map[string]string{
					CodeRequired:      "E-Mail-Adresse ist erforderlich",
					CodeMinLength:     "E-Mail-Adresse ist erforderlich",
					CodeInvalidFormat: "Bitte geben Sie eine gültige E-Mail-Adresse ein",
					CodeMaxLength:     "E-Mail-Adresse ist zu lang",
				},
			},
			"consentRequired": {
				Type:  "boolean",
				Const: true,
				Messages: map[string]string{
					CodeConst: "Sie müssen der Kontaktaufnahme zustimmen",
				},
			},
			"firstName": {
				Type:      "string",
				MaxLength: intPtr(5),
				Pattern:   strPtr(`^[a-zA-ZäöüÄÖÜß\s-]+$`),
			},
			"employeeCount": {
				Type: "string",
				Enum: []string{"<5", "5-10"},
			},
			"breakEvenMonths": {
				Type:     "number",
				Nullable: true,
				Minimum:  floatPtr(0),
			},
			"clients": {
				Type: "integer",
			},
		},
		Required: []string{"email", "consentRequired"},
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name   string
		input  map[string]interface{}
		errors map[string][]string
	}{
		{
			name:   "valid input",
			input:  map[string]interface{}{"email": "max@example.de", "consentRequired": true, "breakEvenMonths": nil, "clients": float64(50)},
			errors: map[string][]string{},
		},
		{
			name:  "missing required fields use custom messages",
			input: map[string]interface{}{},
			errors: map[string][]string{
				"email":           {"E-Mail-Adresse ist erforderlich"},
				"consentRequired": {"required field missing"},
			},
		},
		{
			name:  "empty email reports every failing check",
			input: map[string]interface{}{"email": "", "consentRequired": true},
			errors: map[string][]string{
				"email": {"E-Mail-Adresse ist erforderlich", "Bitte geben Sie eine gültige E-Mail-Adresse ein"},
			},
		},
		{
			name:  "consent must be true",
			input: map[string]interface{}{"email": "max@example.de", "consentRequired": false},
			errors: map[string][]string{
				"consentRequired": {"Sie müssen der Kontaktaufnahme zustimmen"},
			},
		},
		{
			name:  "wrong type stops further checks",
			input: map[string]interface{}{"email": 42.0, "consentRequired": "yes"},
			errors: map[string][]string{
				"email":           {"expected string, got float64"},
				"consentRequired": {"expected boolean, got string"},
			},
		},
		{
			name:  "length counts characters not bytes",
			input: map[string]interface{}{"email": "a@b.de", "consentRequired": true, "firstName": "Jörg"},
			errors: map[string][]string{},
		},
		{
			name:  "pattern, enum, minimum and integer",
			input: map[string]interface{}{"email": "a@b.de", "consentRequired": true, "firstName": "R2", "employeeCount": "100", "breakEvenMonths": -1.0, "clients": 10.5},
			errors: map[string][]string{
				"firstName":       {"value must match pattern ^[a-zA-ZäöüÄÖÜß\\s-]+$"},
				"employeeCount":   {"value must be one of [<5 5-10]"},
				"breakEvenMonths": {"value must be >= 0"},
				"clients":         {"expected integer, got 10.5"},
			},
		},
		{
			name:  "unknown fields are rejected",
			input: map[string]interface{}{"email": "a@b.de", "consentRequired": true, "isAdmin": true},
			errors: map[string][]string{
				"isAdmin": {"field not allowed in schema"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateInput(tt.input, leadSchema())
			assert.Equal(t, tt.errors, res.FieldErrors())
			assert.Equal(t, len(tt.errors) == 0, res.Valid)
		})
	}
}

func TestValidateInput_NestedObjects(t *testing.T) {
	schema := JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"calculatorData": {
				Type: "object",
				Properties: map[string]Property{
					"clients": {Type: "number", Minimum: floatPtr(10)},
				},
				Required: []string{"clients"},
			},
		},
	}

	res := ValidateInput(map[string]interface{}{"calculatorData": map[string]interface{}{"clients": 5.0}}, schema)
	require.False(t, res.Valid)
	assert.True(t, res.HasErrors("calculatorData.clients"))
	assert.Len(t, res.GetErrorsForField("calculatorData"), 1)

	res = ValidateInput(map[string]interface{}{"calculatorData": map[string]interface{}{}}, schema)
	assert.Equal(t, []string{"calculatorData.clients: required field missing"}, res.GetErrorMessages())
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("max.mustermann@kanzlei-beispiel.de"))
	assert.True(t, ValidateEmail("a+b@example.com"))
	assert.False(t, ValidateEmail("max@"))
	assert.False(t, ValidateEmail("max@example"))
	assert.False(t, ValidateEmail("max mustermann@example.de"))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("+49 (30) 123-4567"))
	assert.False(t, ValidatePhone("12345"))
	assert.False(t, ValidatePhone("0301234567x"))
}

func TestGetSchemaFromJSON(t *testing.T) {
	schema, err := GetSchemaFromJSON(`{"type":"object","properties":{"email":{"type":"string","format":"email"}},"required":["email"]}`)
	require.NoError(t, err)
	assert.Equal(t, "email", schema.Properties["email"].Format)
	assert.Equal(t, []string{"email"}, schema.Required)
}
