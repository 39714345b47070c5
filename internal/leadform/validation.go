package leadform

import (
	"golang.org/x/text/unicode/norm"

	"ipa-leadgate/internal/common/validation"
)

const namePattern = `^[a-zA-ZäöüÄÖÜß\s-]+$`

var step1Schema = validation.JSONSchema{
	Type:     "object",
	Required: []string{"email", "consentRequired"},
	Properties: map[string]validation.Property{
		"email": {
			Type:      "string",
			Format:    "email",
			MinLength: intPtr(1),
			MaxLength: intPtr(255),
			Messages: map[string]string{
				validation.CodeMinLength:     "E-Mail-Adresse ist erforderlich",
				validation.CodeInvalidFormat: "Bitte geben Sie eine gültige E-Mail-Adresse ein",
				validation.CodeMaxLength:     "E-Mail-Adresse ist zu lang",
			},
		},
		"consentRequired": {
			Type:  "boolean",
			Const: true,
			Messages: map[string]string{
				validation.CodeConst: "Sie müssen der Kontaktaufnahme zustimmen",
			},
		},
		"consentNewsletter": {Type: "boolean"},
	},
}

var step2Schema = validation.JSONSchema{
	Type:     "object",
	Required: []string{"firstName", "lastName", "company"},
	Properties: map[string]validation.Property{
		"firstName": nameProperty("Vorname"),
		"lastName":  nameProperty("Nachname"),
		"company": {
			Type:      "string",
			MinLength: intPtr(1),
			MaxLength: intPtr(200),
			Messages: map[string]string{
				validation.CodeMinLength: "Firmenname ist erforderlich",
				validation.CodeMaxLength: "Firmenname ist zu lang",
			},
		},
	},
}

func nameProperty(label string) validation.Property {
	return validation.Property{
		Type:      "string",
		MinLength: intPtr(1),
		MaxLength: intPtr(100),
		Pattern:   strPtr(namePattern),
		Messages: map[string]string{
			validation.CodeMinLength: label + " ist erforderlich",
			validation.CodeMaxLength: label + " ist zu lang",
			validation.CodePattern:   label + " enthält ungültige Zeichen",
		},
	}
}

func validateStep1(d Step1Data) map[string][]string {
	result := validation.ValidateInput(map[string]interface{}{
		"email":             d.Email,
		"consentRequired":   d.ConsentRequired,
		"consentNewsletter": d.ConsentNewsletter,
	}, step1Schema)
	if result.Valid {
		return nil
	}
	return result.FieldErrors()
}

// validateStep2 checks the NFC form of the names, which is also what gets
// submitted.
func validateStep2(d *Step2Data) map[string][]string {
	d.FirstName = norm.NFC.String(d.FirstName)
	d.LastName = norm.NFC.String(d.LastName)
	d.Company = norm.NFC.String(d.Company)

	result := validation.ValidateInput(map[string]interface{}{
		"firstName": d.FirstName,
		"lastName":  d.LastName,
		"company":   d.Company,
	}, step2Schema)
	if result.Valid {
		return nil
	}
	return result.FieldErrors()
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}
