// Package schema provides JSON schema generation utilities for the SDK.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"

	"github.com/testangel/testangel-sdk/domain/entities"
)

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v interface{}) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	return Marshal(reflector.Reflect(v))
}

// Marshal renders a schema as indented JSON.
func Marshal(s *jsonschema.Schema) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// KindSchema describes the JSON encoding of a value of kind k. Integers are
// bounded to 32 bits. It returns nil for kinds that cannot be supplied.
func KindSchema(k entities.ParameterKind) *jsonschema.Schema {
	switch k {
	case entities.KindInteger:
		return &jsonschema.Schema{
			Type:    "integer",
			Minimum: json.Number(strconv.Itoa(math.MinInt32)),
			Maximum: json.Number(strconv.Itoa(math.MaxInt32)),
		}
	case entities.KindDecimal:
		return &jsonschema.Schema{Type: "number"}
	case entities.KindBoolean:
		return &jsonschema.Schema{Type: "boolean"}
	case entities.KindString:
		return &jsonschema.Schema{Type: "string"}
	default:
		return nil
	}
}

// InstructionSchema describes the parameters of an instruction as a JSON
// object keyed by parameter id. Every parameter is required and no other
// keys are allowed.
func InstructionSchema(meta entities.InstructionMetadata) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(meta.Parameters))
	for _, p := range meta.Parameters {
		ks := KindSchema(p.Kind)
		if ks == nil {
			ks = &jsonschema.Schema{Not: jsonschema.TrueSchema}
		}
		ks.Title = p.Name
		props.Set(p.ID, ks)
		required = append(required, p.ID)
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                meta.FriendlyName,
		Description:          meta.Description,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}
