// Package schema defines typed parameter declarations and the validation
// applied to every operation's incoming parameters.
package schema

import (
	"fmt"
	"math"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
)

// ParameterType enumerates the supported parameter types.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeFloat   ParameterType = "float"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
	TypeAny     ParameterType = "any"
)

// ValidateFunc is an optional custom check applied after the type check.
type ValidateFunc func(value interface{}) bool

// ParameterDefinition declares a single operation parameter.
type ParameterDefinition struct {
	// Name is unique within an operation.
	Name string
	// Type is the declared parameter type.
	Type ParameterType
	// Description documents the parameter for tool listings.
	Description string
	// Required marks the parameter as mandatory. A required parameter must
	// never carry a default.
	Required bool
	// Default is applied when an optional parameter is absent.
	Default interface{}
	// Choices restricts the value to an enumerated set when non-empty.
	Choices []interface{}
	// Validate is an optional custom validator.
	Validate ValidateFunc
}

// Metadata describes an operation: its name, parameters and versioning.
// Metadata is immutable once the owning handler is registered.
type Metadata struct {
	Name        string
	Description string
	Parameters  []ParameterDefinition
	Returns     string
	Deprecated  bool
	Version     string
}

// Check validates a single value against the definition. A nil value is
// only acceptable for optional parameters.
func (d ParameterDefinition) Check(value interface{}) error {
	if value == nil {
		if d.Required {
			return fmt.Errorf("parameter %q is required", d.Name)
		}
		return nil
	}

	if !typeMatches(d.Type, value) {
		return fmt.Errorf("parameter %q: expected %s, got %T", d.Name, d.Type, value)
	}

	if len(d.Choices) > 0 && !contains(d.Choices, value) {
		return fmt.Errorf("parameter %q: value %v not in allowed choices", d.Name, value)
	}

	if d.Validate != nil && !d.Validate(value) {
		return fmt.Errorf("parameter %q: custom validation failed", d.Name)
	}

	return nil
}

// Validate checks the metadata itself. It rejects required parameters that
// carry defaults and duplicate parameter names.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("operation metadata requires a name")
	}

	seen := make(map[string]bool, len(m.Parameters))
	for _, p := range m.Parameters {
		if p.Name == "" {
			return fmt.Errorf("operation %q declares a parameter without a name", m.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("operation %q declares parameter %q twice", m.Name, p.Name)
		}
		seen[p.Name] = true

		if p.Required && p.Default != nil {
			return fmt.Errorf("operation %q: required parameter %q must not carry a default", m.Name, p.Name)
		}
	}

	return nil
}

// ValidateParams checks raw parameters against the declared definitions and
// returns the validated set with defaults applied for absent optional
// parameters. All violations are collected before failing so callers receive
// the complete error list.
func (m Metadata) ValidateParams(raw map[string]interface{}) (map[string]interface{}, error) {
	validated := make(map[string]interface{}, len(raw))
	var violations []string

	for _, def := range m.Parameters {
		value, present := raw[def.Name]
		if !present || value == nil {
			value = def.Default
		}

		if err := def.Check(value); err != nil {
			violations = append(violations, err.Error())
			continue
		}

		if value != nil {
			validated[def.Name] = value
		}
	}

	// Undeclared parameters pass through untouched; decorators use
	// out-of-band keys such as "stream" and "items".
	declared := make(map[string]bool, len(m.Parameters))
	for _, def := range m.Parameters {
		declared[def.Name] = true
	}
	for k, v := range raw {
		if !declared[k] {
			validated[k] = v
		}
	}

	if len(violations) > 0 {
		return nil, errno.NewValidation(violations)
	}

	return validated, nil
}

func typeMatches(t ParameterType, value interface{}) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64; accept integral values.
			return v == math.Trunc(v)
		case float32:
			return float64(v) == math.Trunc(float64(v))
		default:
			return false
		}
	case TypeFloat:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		_, ok := value.(map[string]interface{})
		return ok
	case TypeArray:
		_, ok := value.([]interface{})
		return ok
	case TypeAny:
		return true
	default:
		return false
	}
}

func contains(choices []interface{}, value interface{}) bool {
	for _, c := range choices {
		if c == value {
			return true
		}
	}
	return false
}
