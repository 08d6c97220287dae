// Package schema backs step.SchemaValidator with
// github.com/santhosh-tekuri/jsonschema/v6, used at load time to reject
// malformed bodySchema/inputSchema documents before they reach the executor.
// Stream schemas are not passed through it.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles and validates JSON Schema documents. It satisfies
// step.SchemaValidator.
type Validator struct{}

// New returns a Validator.
func New() *Validator { return &Validator{} }

// Validate checks that raw is itself a well-formed JSON Schema document by
// compiling it; it does not validate any payload against it. Payload
// validation against a specific schema happens per invocation via
// ValidatePayload.
func (v *Validator) Validate(raw json.RawMessage) error {
	_, err := compile(raw)
	return err
}

// ValidatePayload compiles schemaRaw and validates payload against it.
func (v *Validator) ValidatePayload(schemaRaw, payload json.RawMessage) error {
	if len(schemaRaw) == 0 {
		return nil
	}
	sch, err := compile(schemaRaw)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("schema: unmarshal payload: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema: payload validation failed: %w", err)
	}
	return nil
}

func compile(raw json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema: unmarshal: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return sch, nil
}
