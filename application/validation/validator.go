// Package validation checks operator-supplied instruction parameters
// before they are handed to an engine.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/testangel/testangel-sdk/application/schema"
	"github.com/testangel/testangel-sdk/domain/entities"
)

// ParameterValidator validates JSON parameter objects against the schema
// of an instruction and converts them to values. Compiled schemas are
// cached by their JSON text, so it is cheap to validate many executions
// of the same instruction.
type ParameterValidator struct {
	schemas map[string]*jsonschema.Schema
	mu      sync.Mutex
}

// NewParameterValidator creates a new validator.
func NewParameterValidator() *ParameterValidator {
	return &ParameterValidator{schemas: make(map[string]*jsonschema.Schema)}
}

func (v *ParameterValidator) compile(meta entities.InstructionMetadata) (*jsonschema.Schema, error) {
	doc, err := schema.Marshal(schema.InstructionSchema(meta))
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.schemas[string(doc)]; ok {
		return sch, nil
	}

	url := "instruction/" + meta.ID + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", meta.ID, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", meta.ID, err)
	}
	v.schemas[string(doc)] = sch
	return sch, nil
}

// Validate checks a JSON object of parameters against meta. Problems with
// the input are reported in the result; the error is reserved for schemas
// that cannot be compiled.
func (v *ParameterValidator) Validate(meta entities.InstructionMetadata, data []byte) (*entities.ValidationResult, error) {
	_, result, err := v.decode(meta, data)
	return result, err
}

// Parse validates a JSON object of parameters and converts it to values in
// the order the instruction declares them. Invalid input is returned as a
// *entities.ValidationResult error.
func (v *ParameterValidator) Parse(meta entities.InstructionMetadata, data []byte) ([]entities.NamedValue, error) {
	obj, result, err := v.decode(meta, data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result
	}

	values := make([]entities.NamedValue, 0, len(meta.Parameters))
	for _, p := range meta.Parameters {
		val, err := toValue(p.Kind, obj[p.ID])
		if err != nil {
			return nil, &entities.ValidationResult{Errors: []entities.ValidationError{
				{Field: p.ID, Message: err.Error()},
			}}
		}
		values = append(values, entities.Named(p.ID, val))
	}
	return values, nil
}

func (v *ParameterValidator) decode(meta entities.InstructionMetadata, data []byte) (map[string]any, *entities.ValidationResult, error) {
	sch, err := v.compile(meta)
	if err != nil {
		return nil, nil, err
	}

	result := &entities.ValidationResult{Valid: true}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return nil, result, nil
	}

	if err := sch.Validate(doc); err != nil {
		result.Valid = false
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			result.Errors = append(result.Errors, leaves(ve)...)
		} else {
			result.Errors = append(result.Errors, entities.ValidationError{Message: err.Error()})
		}
		return nil, result, nil
	}

	obj, _ := doc.(map[string]any)
	return obj, result, nil
}

// leaves flattens a validation error tree to its most specific causes.
func leaves(ve *jsonschema.ValidationError) []entities.ValidationError {
	if len(ve.Causes) == 0 {
		return []entities.ValidationError{{Field: ve.InstanceLocation, Message: ve.Message}}
	}
	var out []entities.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

func toValue(kind entities.ParameterKind, raw any) (entities.Value, error) {
	switch kind {
	case entities.KindInteger:
		n, ok := raw.(json.Number)
		if !ok {
			return entities.Value{}, fmt.Errorf("expected integer, got %T", raw)
		}
		if i, err := n.Int64(); err == nil {
			return entities.IntegerValue(int32(i)), nil //nolint:gosec // G115: bounded by the schema
		}
		f, err := n.Float64()
		if err != nil {
			return entities.Value{}, err
		}
		return entities.IntegerValue(int32(f)), nil
	case entities.KindDecimal:
		n, ok := raw.(json.Number)
		if !ok {
			return entities.Value{}, fmt.Errorf("expected number, got %T", raw)
		}
		f, err := n.Float64()
		if err != nil {
			return entities.Value{}, err
		}
		return entities.DecimalValue(f), nil
	case entities.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return entities.Value{}, fmt.Errorf("expected boolean, got %T", raw)
		}
		return entities.BooleanValue(b), nil
	case entities.KindString:
		s, ok := raw.(string)
		if !ok {
			return entities.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return entities.StringValue(s), nil
	default:
		return entities.Value{}, fmt.Errorf("parameters of kind %s cannot be supplied", kind)
	}
}
