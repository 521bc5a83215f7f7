package tool

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError carries every argument-shape violation found in a
// single validation pass, so a caller can fix all of them in one round
// trip.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Validate checks raw arguments against the tool's declared schema and
// returns the typed argument bundle on success.
func Validate(t *Tool, raw map[string]interface{}) (Args, *ValidationError) {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	result, err := t.compiled.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, &ValidationError{Violations: []string{"arguments are not a valid structure: " + err.Error()}}
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, violationMessage(desc))
		}
		return nil, &ValidationError{Violations: violations}
	}

	return typedArgs(t.Schema, raw), nil
}

// violationMessage maps a gojsonschema finding onto the canonical
// violation strings of the invocation protocol.
func violationMessage(desc gojsonschema.ResultError) string {
	details := desc.Details()

	switch desc.Type() {
	case "required":
		name := fmt.Sprintf("%v", details["property"])
		if field := desc.Field(); field != gojsonschema.STRING_CONTEXT_ROOT {
			name = field + "." + name
		}
		return "missing required argument: " + name
	case "additional_property_not_allowed":
		name := fmt.Sprintf("%v", details["property"])
		if field := desc.Field(); field != gojsonschema.STRING_CONTEXT_ROOT {
			name = field + "." + name
		}
		return "unknown argument: " + name
	case "invalid_type":
		return fmt.Sprintf("argument %s: expected %v, got %v", desc.Field(), details["expected"], details["given"])
	default:
		return fmt.Sprintf("argument %s: %s", desc.Field(), desc.Description())
	}
}

// typedArgs copies the raw arguments into the validated bundle,
// coercing integer-kind values out of JSON's float64 representation.
// No values are lost: arguments the schema does not mention (when
// extras are allowed) are carried through unchanged.
func typedArgs(schema Schema, raw map[string]interface{}) Args {
	args := make(Args, len(raw))
	for name, value := range raw {
		args[name] = value
	}

	for _, field := range schema.Fields {
		if field.Kind != KindInteger {
			continue
		}
		if v, ok := args[field.Name].(float64); ok {
			args[field.Name] = int64(v)
		}
	}

	return args
}
