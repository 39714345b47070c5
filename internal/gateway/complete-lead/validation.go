package completelead

import (
	"golang.org/x/text/unicode/norm"

	"ipa-leadgate/internal/common/validation"
	"ipa-leadgate/pkg/roi"
)

const (
	namePattern    = `^[a-zA-ZäöüÄÖÜß\s-]+$`
	MessageNoToken = "Bitte bestätigen Sie, dass Sie kein Roboter sind."
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "firstName", "lastName", "company", "turnstileToken"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Email address given in step one",
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
			"firstName": nameProperty("Vorname"),
			"lastName":  nameProperty("Nachname"),
			"company": {
				Type:        "string",
				Description: "Company or firm name",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(200),
				Messages: map[string]string{
					validation.CodeRequired:    "Firmenname ist erforderlich",
					validation.CodeInvalidType: "Firmenname ist erforderlich",
					validation.CodeMinLength:   "Firmenname ist erforderlich",
					validation.CodeMaxLength:   "Firmenname ist zu lang",
				},
			},
			"calculatorData": {
				Type:        "object",
				Description: "Calculator inputs and outputs merged into one object",
				Messages: map[string]string{
					validation.CodeInvalidType: "Ungültige Rechnerdaten",
				},
			},
			"turnstileToken": {
				Type:        "string",
				Description: "Bot-challenge token",
				MinLength:   intPtr(1),
				Messages: map[string]string{
					validation.CodeRequired:    MessageNoToken,
					validation.CodeInvalidType: MessageNoToken,
					validation.CodeMinLength:   MessageNoToken,
				},
			},
		},
		AdditionalProperties: true,
	}
}

func nameProperty(label string) validation.Property {
	return validation.Property{
		Type:        "string",
		Description: label,
		MinLength:   intPtr(1),
		MaxLength:   intPtr(100),
		Pattern:     strPtr(namePattern),
		Messages: map[string]string{
			validation.CodeRequired:    label + " ist erforderlich",
			validation.CodeInvalidType: label + " ist erforderlich",
			validation.CodeMinLength:   label + " ist erforderlich",
			validation.CodeMaxLength:   label + " ist zu lang",
			validation.CodePattern:     label + " enthält ungültige Zeichen",
		},
	}
}

// normalizeNames rewrites the name fields to NFC so that decomposed umlauts
// (a + combining diaeresis) match the letter class.
func normalizeNames(variables map[string]interface{}) {
	for _, key := range []string{"firstName", "lastName", "company"} {
		if s, ok := variables[key].(string); ok {
			variables[key] = norm.NFC.String(s)
		}
	}
}

var documentMessages = map[string]string{
	"REQUIRED":     "Wert ist erforderlich",
	"INVALID_TYPE": "Wert muss eine Zahl sein",
}

// validateCalculator checks calculatorData against the variant's document
// schema and then against the input ranges. Field errors are keyed
// "calculatorData.<field>".
func validateCalculator(v *roi.Variant, schema *validation.DocumentSchema, raw map[string]interface{}) (roi.Snapshot, map[string][]string, error) {
	result, err := schema.Validate(raw)
	if err != nil {
		return nil, nil, err
	}

	fieldErrors := map[string][]string{}
	if !result.Valid {
		for _, e := range result.Errors {
			msg, ok := documentMessages[e.Code]
			if !ok {
				msg = e.Message
			}
			key := "calculatorData"
			if e.Field != "" {
				key += "." + e.Field
			}
			fieldErrors[key] = append(fieldErrors[key], msg)
		}
		return nil, fieldErrors, nil
	}

	snapshot := make(roi.Snapshot, len(v.Fields)+len(v.Outputs))
	inputs := make(roi.Values, len(v.Fields))
	for _, f := range v.Fields {
		val := raw[f.Name].(float64)
		inputs[f.Name] = val
		snapshot[f.Name] = &val
	}
	for _, o := range v.Outputs {
		if val, ok := raw[o.Name].(float64); ok {
			snapshot[o.Name] = &val
		} else {
			snapshot[o.Name] = nil
		}
	}

	ranges := v.Validate(inputs)
	if !ranges.Valid {
		for name, msg := range ranges.Errors {
			fieldErrors["calculatorData."+name] = []string{msg}
		}
		return nil, fieldErrors, nil
	}

	return snapshot, nil, nil
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}
