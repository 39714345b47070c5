package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Error codes reported by ValidateInput. A Property can replace the default
// English message for any code through Messages.
const (
	CodeRequired      = "REQUIRED_FIELD_MISSING"
	CodeExtraField    = "EXTRA_FIELD"
	CodeInvalidType   = "INVALID_TYPE"
	CodeMinLength     = "MIN_LENGTH_VIOLATION"
	CodeMaxLength     = "MAX_LENGTH_VIOLATION"
	CodePattern       = "PATTERN_MISMATCH"
	CodeEnum          = "INVALID_ENUM_VALUE"
	CodeMinimum       = "MINIMUM_VIOLATION"
	CodeMaximum       = "MAXIMUM_VIOLATION"
	CodeConst         = "CONST_MISMATCH"
	CodeInvalidFormat = "INVALID_FORMAT"
)

// JSONSchema defines the structure for request payload schemas
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Default     interface{}         `json:"default,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Format      string              `json:"format,omitempty"`
	Const       interface{}         `json:"const,omitempty"`
	Nullable    bool                `json:"nullable,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
	Messages    map[string]string   `json:"-"`
}

func (p Property) message(code, fallback string) string {
	if msg, ok := p.Messages[code]; ok {
		return msg
	}
	return fallback
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput validates input against the schema and collects every
// violation. Fields are visited in key order so results are stable.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	errors := []ValidationError{}

	for _, requiredField := range schema.Required {
		if _, exists := input[requiredField]; !exists {
			prop := schema.Properties[requiredField]
			errors = append(errors, ValidationError{
				Field:   requiredField,
				Message: prop.message(CodeRequired, "required field missing"),
				Code:    CodeRequired,
			})
		}
	}

	for _, fieldName := range sortedKeys(input) {
		value := input[fieldName]
		prop, exists := schema.Properties[fieldName]
		if !exists {
			if !schema.AdditionalProperties {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: "field not allowed in schema",
					Code:    CodeExtraField,
				})
			}
			continue
		}

		if fieldErrors := validateField(fieldName, value, prop); len(fieldErrors) > 0 {
			errors = append(errors, fieldErrors...)
		}
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateField(fieldName string, value interface{}, prop Property) []ValidationError {
	errors := []ValidationError{}

	if value == nil && prop.Nullable {
		return errors
	}

	if typeErr := validateType(value, prop.Type); typeErr != nil {
		errors = append(errors, ValidationError{
			Field:   fieldName,
			Message: prop.message(CodeInvalidType, typeErr.Error()),
			Code:    CodeInvalidType,
		})
		return errors
	}

	if prop.Const != nil && !reflect.DeepEqual(value, prop.Const) {
		errors = append(errors, ValidationError{
			Field:   fieldName,
			Message: prop.message(CodeConst, fmt.Sprintf("value must be %v", prop.Const)),
			Code:    CodeConst,
		})
	}

	if strVal, ok := value.(string); ok {
		length := utf8.RuneCountInString(strVal)
		if prop.MinLength != nil && length < *prop.MinLength {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Message: prop.message(CodeMinLength, fmt.Sprintf("value must be at least %d characters", *prop.MinLength)),
				Code:    CodeMinLength,
			})
		}

		if prop.Format == "email" && !ValidateEmail(strVal) {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Message: prop.message(CodeInvalidFormat, "value must be a valid email address"),
				Code:    CodeInvalidFormat,
			})
		}

		if prop.MaxLength != nil && length > *prop.MaxLength {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Message: prop.message(CodeMaxLength, fmt.Sprintf("value must be at most %d characters", *prop.MaxLength)),
				Code:    CodeMaxLength,
			})
		}

		if prop.Pattern != nil {
			re, err := compile(*prop.Pattern)
			if err != nil || !re.MatchString(strVal) {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: prop.message(CodePattern, fmt.Sprintf("value must match pattern %s", *prop.Pattern)),
					Code:    CodePattern,
				})
			}
		}

		if len(prop.Enum) > 0 {
			found := false
			for _, enumVal := range prop.Enum {
				if strVal == enumVal {
					found = true
					break
				}
			}
			if !found {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: prop.message(CodeEnum, fmt.Sprintf("value must be one of %v", prop.Enum)),
					Code:    CodeEnum,
				})
			}
		}
	}

	if numVal, ok := value.(float64); ok {
		if prop.Minimum != nil && numVal < *prop.Minimum {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Message: prop.message(CodeMinimum, fmt.Sprintf("value must be >= %v", *prop.Minimum)),
				Code:    CodeMinimum,
			})
		}
		if prop.Maximum != nil && numVal > *prop.Maximum {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Message: prop.message(CodeMaximum, fmt.Sprintf("value must be <= %v", *prop.Maximum)),
				Code:    CodeMaximum,
			})
		}
	}

	if arrVal, ok := value.([]interface{}); ok && prop.Items != nil {
		for i, item := range arrVal {
			itemErrors := validateField(fmt.Sprintf("%s[%d]", fieldName, i), item, *prop.Items)
			errors = append(errors, itemErrors...)
		}
	}

	if objVal, ok := value.(map[string]interface{}); ok && prop.Properties != nil {
		nestedSchema := JSONSchema{
			Type:                 "object",
			Properties:           prop.Properties,
			Required:             prop.Required,
			AdditionalProperties: true,
		}
		nestedResult := ValidateInput(objVal, nestedSchema)
		for _, nestedErr := range nestedResult.Errors {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.%s", fieldName, nestedErr.Field),
				Message: nestedErr.Message,
				Code:    nestedErr.Code,
			})
		}
	}

	return errors
}

func validateType(value interface{}, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		switch value.(type) {
		case float64, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("expected integer, got %v", v)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	case "null":
		if value != nil {
			return fmt.Errorf("expected null, got %T", value)
		}
	}
	return nil
}

var patternCache sync.Map

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSchemaFromJSON parses JSON schema from string
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// FieldErrors groups messages by field, the shape returned to the browser.
func (vr *ValidationResult) FieldErrors() map[string][]string {
	out := make(map[string][]string, len(vr.Errors))
	for _, err := range vr.Errors {
		out[err.Field] = append(out[err.Field], err.Message)
	}
	return out
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
