// Package schema compiles tool input schemas and validates tool arguments
// against them.
// file: internal/schema/validator.go
package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled tool input schema.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// Compile compiles raw as a Draft 2020-12 schema. name identifies the schema
// in errors, usually the tool name. An empty raw compiles to an open object.
func Compile(name string, raw json.RawMessage) (*Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	if !json.Valid(raw) {
		return nil, NewValidationError(ErrInvalidJSONFormat, "schema is not valid JSON", nil).
			WithContext("schema", name)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	resourceID := "tool://" + name + "/input.json"
	if err := compiler.AddResource(resourceID, bytes.NewReader(raw)); err != nil {
		return nil, NewValidationError(ErrSchemaCompileFailed, "failed to add schema resource", err).
			WithContext("schema", name)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, NewValidationError(ErrSchemaCompileFailed, "failed to compile input schema", err).
			WithContext("schema", name)
	}
	return &Schema{name: name, raw: raw, compiled: compiled}, nil
}

// MustCompile is Compile for schemas fixed at build time. It panics on error.
func MustCompile(name string, raw json.RawMessage) *Schema {
	s, err := Compile(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the identifier the schema was compiled with.
func (s *Schema) Name() string { return s.name }

// Raw returns the schema document.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// Validate checks args against the schema. Missing arguments validate as {}.
func (s *Schema) Validate(args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return NewValidationError(ErrInvalidJSONFormat, "arguments are not valid JSON", err).
			WithContext("schema", s.name).
			WithContext("dataPreview", calculatePreview(args))
	}

	if err := s.compiled.Validate(doc); err != nil {
		var valErr *jsonschema.ValidationError
		if errors.As(err, &valErr) {
			return convertValidationError(valErr, s.name, args)
		}
		return NewValidationError(ErrValidationFailed, "argument validation failed", err)
	}
	return nil
}

// Decode validates args and unmarshals them into dst.
func (s *Schema) Decode(args json.RawMessage, dst interface{}) error {
	if err := s.Validate(args); err != nil {
		return err
	}
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return NewValidationError(ErrInvalidJSONFormat, "failed to decode arguments", err)
	}
	return nil
}

// Property describes one string argument of a tool.
type Property struct {
	Name        string
	Description string
	Required    bool
	// MinLength of 1 rejects empty strings.
	MinLength int
}

// StringObject builds an object schema whose properties are all strings.
func StringObject(props ...Property) json.RawMessage {
	type propSchema struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
		MinLength   int    `json:"minLength,omitempty"`
	}
	doc := struct {
		Type       string                `json:"type"`
		Properties map[string]propSchema `json:"properties"`
		Required   []string              `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: make(map[string]propSchema, len(props)),
	}
	for _, p := range props {
		doc.Properties[p.Name] = propSchema{Type: "string", Description: p.Description, MinLength: p.MinLength}
		if p.Required {
			doc.Required = append(doc.Required, p.Name)
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		// Only strings and maps of strings are marshalled here.
		panic(err)
	}
	return out
}

// RequiredString is a required, non-empty string Property.
func RequiredString(name, description string) Property {
	return Property{Name: name, Description: strings.TrimSpace(description), Required: true, MinLength: 1}
}
