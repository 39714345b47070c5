package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DocumentSchema is a compiled JSON Schema for whole documents such as the
// stored form draft or a calculator snapshot.
type DocumentSchema struct {
	schema *gojsonschema.Schema
}

// CompileDocumentSchema compiles a schema given as a Go value (usually a
// map[string]interface{}) or as a JSON string.
func CompileDocumentSchema(schema interface{}) (*DocumentSchema, error) {
	var loader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(s)
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}

	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &DocumentSchema{schema: compiled}, nil
}

// MustCompileDocumentSchema panics on an invalid schema. Use it for schemas
// that are package constants.
func MustCompileDocumentSchema(schema interface{}) *DocumentSchema {
	s, err := CompileDocumentSchema(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document (or raw JSON bytes) against the schema.
// Field paths use dots, with the root reported as "".
func (d *DocumentSchema) Validate(document interface{}) (*ValidationResult, error) {
	var loader gojsonschema.JSONLoader
	switch doc := document.(type) {
	case []byte:
		loader = gojsonschema.NewBytesLoader(doc)
	default:
		loader = gojsonschema.NewGoLoader(doc)
	}

	result, err := d.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		field := e.Field()
		if field == "(root)" {
			field = ""
		}
		// required errors point at the parent; report the missing property
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				field = strings.TrimPrefix(field+"."+prop, ".")
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}
