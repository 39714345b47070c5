package partiallead

import "ipa-leadgate/internal/common/validation"

const invalidInput = "Ungültige Eingabe"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "consentRequired", "consentNewsletter"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Visitor email address, the CRM contact key",
				Format:      "email",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(255),
				Messages: map[string]string{
					validation.CodeRequired:      "E-Mail-Adresse ist erforderlich",
					validation.CodeInvalidType:   "E-Mail-Adresse ist erforderlich",
					validation.CodeMinLength:     "E-Mail-Adresse ist erforderlich",
					validation.CodeInvalidFormat: "Bitte geben Sie eine gültige E-Mail-Adresse ein",
					validation.CodeMaxLength:     "E-Mail-Adresse ist zu lang",
				},
			},
			"consentRequired": {
				Type:        "boolean",
				Description: "Consent to be contacted",
				Messages: map[string]string{
					validation.CodeRequired:    invalidInput,
					validation.CodeInvalidType: invalidInput,
				},
			},
			"consentNewsletter": {
				Type:        "boolean",
				Description: "Newsletter opt-in",
				Messages: map[string]string{
					validation.CodeRequired:    invalidInput,
					validation.CodeInvalidType: invalidInput,
				},
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
