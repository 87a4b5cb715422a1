// Package tool provides the registry and mediator that connect tool-call
// events in the stream to locally-registered executors: matching, argument
// validation, timeout enforcement, and feeding results back as tool
// messages.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Contextable/ag-ui-4k-sub001/event"
)

type (
	// Spec describes one tool's calling convention: its wire Tool
	// advertisement plus the compiled JSON Schema used to validate
	// arguments before execution.
	Spec struct {
		Name        string
		Description string
		Parameters  json.RawMessage

		schema *jsonschema.Schema
	}

	// ValidationResult reports whether a tool call's arguments satisfy the
	// tool's declared schema.
	ValidationResult struct {
		OK     bool
		Errors []string
	}
)

// NewSpec compiles parameters as a JSON Schema describing the tool's call
// signature. An empty or nil schema accepts any arguments.
func NewSpec(name, description string, parameters json.RawMessage) (*Spec, error) {
	s := &Spec{Name: name, Description: description, Parameters: parameters}
	if len(parameters) == 0 {
		return s, nil
	}

	var schemaDoc any
	if err := json.Unmarshal(parameters, &schemaDoc); err != nil {
		return nil, fmt.Errorf("tool: %s: invalid parameters schema: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resourceID := "tool://" + name
	if err := compiler.AddResource(resourceID, schemaDoc); err != nil {
		return nil, fmt.Errorf("tool: %s: add schema resource: %w", name, err)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("tool: %s: compile schema: %w", name, err)
	}
	s.schema = compiled
	return s, nil
}

// Advertisement returns the wire Tool record sent to the agent.
func (s *Spec) Advertisement() event.Tool {
	return event.Tool{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
	}
}

// Validate checks argumentsJSON (the accumulated, JSON-serialised call
// arguments) against the tool's compiled schema. A tool with no schema
// accepts any well-formed JSON value.
func (s *Spec) Validate(argumentsJSON string) ValidationResult {
	var doc any
	if err := json.Unmarshal([]byte(argumentsJSON), &doc); err != nil {
		return ValidationResult{OK: false, Errors: []string{"arguments are not valid JSON: " + err.Error()}}
	}
	if s.schema == nil {
		return ValidationResult{OK: true}
	}
	if err := s.schema.Validate(doc); err != nil {
		return ValidationResult{OK: false, Errors: []string{err.Error()}}
	}
	return ValidationResult{OK: true}
}
