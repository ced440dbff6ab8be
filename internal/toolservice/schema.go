package toolservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	invopop "github.com/invopop/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// paramRow is one row of a tool's rendered usage table.
type paramRow struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// schemaParamRows extracts a flat parameter table from a JSON Schema
// document for UsagePrompt's human/LLM-readable rendering.
func schemaParamRows(schema json.RawMessage) ([]paramRow, error) {
	var doc struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, err
	}
	required := make(map[string]bool, len(doc.Required))
	for _, r := range doc.Required {
		required[r] = true
	}
	names := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]paramRow, 0, len(names))
	for _, name := range names {
		p := doc.Properties[name]
		rows = append(rows, paramRow{
			Name:        name,
			Type:        p.Type,
			Required:    required[name],
			Description: p.Description,
		})
	}
	return rows, nil
}

// DeriveSchema reflects a tool's Go input struct into a JSON Schema using
// github.com/invopop/jsonschema, so the wire schema and the handler's
// json.Unmarshal target can never drift (spec §4.3 "JSON Schema ...
// derivable mechanically from the tool's input type").
func DeriveSchema(input any) (json.RawMessage, error) {
	reflector := &invopop.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(input))
	schema.Version = ""
	out, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("toolservice: derive schema for %T: %w", input, err)
	}
	return out, nil
}

// Validator validates tool-call arguments against a derived schema before
// the handler runs, using github.com/santhosh-tekuri/jsonschema/v5.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles schema (as produced by DeriveSchema, or any JSON
// Schema document) into a reusable Validator.
func NewValidator(schema json.RawMessage) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	const resourceName = "schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("toolservice: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("toolservice: compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate reports whether params conforms to the compiled schema.
func (v *Validator) Validate(params json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(params, &doc); err != nil {
		return fmt.Errorf("toolservice: arguments are not valid JSON: %w", err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return fmt.Errorf("toolservice: arguments do not match schema: %w", err)
	}
	return nil
}
