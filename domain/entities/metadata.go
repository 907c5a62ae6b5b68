package entities

import "strings"

// CurrentIPCVersion is the ABI revision implemented by this SDK.
const CurrentIPCVersion uint32 = 3

// EngineMetadata describes an engine as a whole.
type EngineMetadata struct {
	FriendlyName string `json:"friendly_name" validate:"required"`
	LuaName      string `json:"lua_name" validate:"required,luaident"`
	Version      string `json:"version" validate:"required"`
	Description  string `json:"description"`
	IPCVersion   uint32 `json:"ipc_version" validate:"gt=0"`
}

// InstructionFlags is a bitfield of behaviour hints a host may use for
// dispatch decisions. Flags that are not set are "not advertised".
type InstructionFlags uint32

const (
	// FlagNone advertises nothing.
	FlagNone InstructionFlags = 0
	// FlagPure: outputs depend only on inputs and there are no side effects
	// besides evidence and logging.
	FlagPure InstructionFlags = 1 << 0
	// FlagInfallible: execute never returns a non-OK result for valid input.
	FlagInfallible InstructionFlags = 1 << 1
	// FlagAutomatic: the host may run the instruction without operator confirmation.
	FlagAutomatic InstructionFlags = 1 << 2
)

var flagNames = []struct {
	flag InstructionFlags
	name string
}{
	{FlagPure, "PURE"},
	{FlagInfallible, "INFALLIBLE"},
	{FlagAutomatic, "AUTOMATIC"},
}

// Has reports whether every bit of f is set.
func (fl InstructionFlags) Has(f InstructionFlags) bool {
	return fl&f == f
}

// String renders the advertised flags, e.g. "PURE|AUTOMATIC".
func (fl InstructionFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if fl.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// ParameterDescriptor declares one parameter or output of an instruction.
type ParameterDescriptor struct {
	ID   string        `json:"id" validate:"required,taident"`
	Name string        `json:"name" validate:"required"`
	Kind ParameterKind `json:"kind" validate:"kind"`
}

// InstructionMetadata describes a single instruction an engine offers.
type InstructionMetadata struct {
	ID           string                `json:"id" validate:"required,taident"`
	LuaName      string                `json:"lua_name" validate:"required,luaident"`
	FriendlyName string                `json:"friendly_name" validate:"required"`
	Description  string                `json:"description"`
	Parameters   []ParameterDescriptor `json:"parameters" validate:"unique=ID,dive"`
	Outputs      []ParameterDescriptor `json:"outputs" validate:"unique=ID,dive"`
	Flags        InstructionFlags      `json:"flags"`
}

// Parameter returns the parameter declared with the given id.
func (m InstructionMetadata) Parameter(id string) (ParameterDescriptor, bool) {
	return findDescriptor(m.Parameters, id)
}

// Output returns the output declared with the given id.
func (m InstructionMetadata) Output(id string) (ParameterDescriptor, bool) {
	return findDescriptor(m.Outputs, id)
}

func findDescriptor(list []ParameterDescriptor, id string) (ParameterDescriptor, bool) {
	for _, d := range list {
		if d.ID == id {
			return d, true
		}
	}
	return ParameterDescriptor{}, false
}
