package contactform

import (
	"strings"

	"ipa-leadgate/internal/common/validation"
)

// EmployeeCounts are the accepted firm size buckets.
var EmployeeCounts = []string{"<5", "5-10", "10-20", "20-50", "50+"}

const (
	invalidInput = "Ungültige Eingabe"
	invalidEmail = "Ungültige E-Mail-Adresse"
	phoneChars   = `^[\d\s\-+()]+$`
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"name", "email", "phone", "firmName", "employeeCount"},
		Properties: map[string]validation.Property{
			"name": {
				Type:      "string",
				MinLength: intPtr(2),
				MaxLength: intPtr(100),
				Messages: map[string]string{
					validation.CodeRequired:    "Name muss mindestens 2 Zeichen haben",
					validation.CodeInvalidType: "Name muss mindestens 2 Zeichen haben",
					validation.CodeMinLength:   "Name muss mindestens 2 Zeichen haben",
					validation.CodeMaxLength:   "Name ist zu lang",
				},
			},
			"email": {
				Type:   "string",
				Format: "email",
				Messages: map[string]string{
					validation.CodeRequired:      invalidEmail,
					validation.CodeInvalidType:   invalidEmail,
					validation.CodeInvalidFormat: invalidEmail,
				},
			},
			"phone": {
				Type:      "string",
				MinLength: intPtr(10),
				Pattern:   strPtr(phoneChars),
				Messages: map[string]string{
					validation.CodeRequired:    "Telefonnummer zu kurz",
					validation.CodeInvalidType: "Telefonnummer zu kurz",
					validation.CodeMinLength:   "Telefonnummer zu kurz",
					validation.CodePattern:     "Telefonnummer darf nur Zahlen und Zeichen enthalten",
				},
			},
			"firmName": {
				Type:      "string",
				MinLength: intPtr(2),
				MaxLength: intPtr(200),
				Messages: map[string]string{
					validation.CodeRequired:    "Firmenname erforderlich",
					validation.CodeInvalidType: "Firmenname erforderlich",
					validation.CodeMinLength:   "Firmenname erforderlich",
					validation.CodeMaxLength:   "Firmenname zu lang",
				},
			},
			"employeeCount": {
				Type: "string",
				Enum: EmployeeCounts,
				Messages: map[string]string{
					validation.CodeRequired:    "Bitte wählen Sie eine Option",
					validation.CodeInvalidType: "Bitte wählen Sie eine Option",
					validation.CodeEnum:        "Bitte wählen Sie eine Option",
				},
			},
			"message": {
				Type:      "string",
				MaxLength: intPtr(1000),
				Messages: map[string]string{
					validation.CodeInvalidType: invalidInput,
					validation.CodeMaxLength:   "Nachricht ist zu lang (max. 1000 Zeichen)",
				},
			},
			"honeypot": {
				Type:      "string",
				MaxLength: intPtr(0),
				Messages: map[string]string{
					validation.CodeInvalidType: invalidInput,
					validation.CodeMaxLength:   invalidInput,
				},
			},
		},
		AdditionalProperties: true,
	}
}

// normalizeEmail lower-cases and trims the address before it is validated.
func normalizeEmail(variables map[string]interface{}) {
	if s, ok := variables["email"].(string); ok {
		variables["email"] = strings.ToLower(strings.TrimSpace(s))
	}
}

// honeypotFilled reports whether the hidden field carries any text.
func honeypotFilled(variables map[string]interface{}) bool {
	s, ok := variables["honeypot"].(string)
	return ok && s != ""
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}
