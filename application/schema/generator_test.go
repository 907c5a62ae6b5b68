//go:build !wasip1

package schema

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/engines/demo"
)

func TestGenerateSchema_SimpleStruct(t *testing.T) {
	type SimpleConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	schema, err := GenerateSchema(SimpleConfig{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(schema, &decoded))
	assert.Contains(t, string(schema), "host")
	assert.Contains(t, string(schema), "port")
}

func TestGenerateSchema_HostConfig(t *testing.T) {
	schema, err := GenerateSchema(entities.HostConfig{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(schema, &decoded))

	properties, ok := decoded["properties"].(map[string]interface{})
	require.True(t, ok, "properties should be a map")
	assert.Len(t, properties, 7)
	assert.Contains(t, properties, "engine_dir")
	assert.Contains(t, properties, "accepted_ipc_versions")
	assert.Contains(t, properties, "trust")
	assert.Contains(t, properties, "max_log_message_size")

	required, ok := decoded["required"].([]interface{})
	require.True(t, ok, "required should be an array")
	assert.Contains(t, required, "engine_dir")
	assert.NotContains(t, required, "approvals_file")
	assert.NotContains(t, required, "trust")
}

func TestKindSchema(t *testing.T) {
	tests := []struct {
		kind entities.ParameterKind
		want string
	}{
		{entities.KindString, "string"},
		{entities.KindInteger, "integer"},
		{entities.KindDecimal, "number"},
		{entities.KindBoolean, "boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s := KindSchema(tt.kind)
			require.NotNil(t, s)
			assert.Equal(t, tt.want, s.Type)
		})
	}

	assert.Nil(t, KindSchema(entities.KindBinary))
	assert.Nil(t, KindSchema(entities.ParameterKind(42)))
}

func TestInstructionSchema_Golden(t *testing.T) {
	data, err := Marshal(InstructionSchema(demo.AddInstruction))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "demo-add", data)
}

func TestInstructionSchema_NoParameters(t *testing.T) {
	data, err := Marshal(InstructionSchema(entities.InstructionMetadata{ID: "noop", FriendlyName: "Nothing"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]interface{}{}, decoded["properties"])
	assert.NotContains(t, decoded, "required")
	assert.Equal(t, false, decoded["additionalProperties"])
}

func TestInstructionSchema_BinaryParameterCannotBeSupplied(t *testing.T) {
	s := InstructionSchema(entities.InstructionMetadata{
		ID: "upload",
		Parameters: []entities.ParameterDescriptor{
			{ID: "blob", Name: "Blob", Kind: entities.KindBinary},
		},
	})
	p, ok := s.Properties.Get("blob")
	require.True(t, ok)
	assert.NotNil(t, p.Not)
	assert.Equal(t, "Blob", p.Title)
}
