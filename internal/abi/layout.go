// Package abi implements the memory layout of the TestAngel engine ABI and
// the allocators engines use to hand memory to the host.
//
// Structures follow the C layout of testangel.h on a 32-bit target: every
// pointer and enum is 4 bytes, little-endian, with no padding between the
// fields listed below. Pointers are offsets into the engine's memory and 0
// is the null pointer.
package abi

// PtrSize is the width of a pointer and of every enum field.
const PtrSize = 4

// ta_result
const (
	ResultSize         = 8
	resultCodeOffset   = 0
	resultReasonOffset = 4
)

// ta_engine_metadata
const (
	EngineMetadataSize       = 20
	engineIPCVersionOffset   = 0
	engineFriendlyNameOffset = 4
	engineVersionOffset      = 8
	engineLuaNameOffset      = 12
	engineDescriptionOffset  = 16
)

// ta_instruction_metadata
const (
	InstructionMetadataSize       = 28
	instructionIDOffset           = 0
	instructionFriendlyNameOffset = 4
	instructionLuaNameOffset      = 8
	instructionDescriptionOffset  = 12
	instructionFlagsOffset        = 16
	instructionParametersOffset   = 20
	instructionOutputsOffset      = 24
)

// ta_instruction_named_kind
const (
	NamedKindSize       = 12
	namedKindIDOffset   = 0
	namedKindNameOffset = 4
	namedKindKindOffset = 8
)

// ta_named_value (the embedded ta_value is kind then payload pointer)
const (
	NamedValueSize          = 12
	namedValueNameOffset    = 0
	namedValueKindOffset    = 4
	namedValuePayloadOffset = 8
)

// ta_evidence
const (
	EvidenceSize        = 12
	evidenceLabelOffset = 0
	evidenceKindOffset  = 4
	evidenceValueOffset = 8
)

// Boxed scalar cells.
const (
	integerCellSize = 4
	decimalCellSize = 8
	booleanCellSize = 1
)

// Limits applied when walking engine-provided memory.
const (
	// MaxStringLength bounds NUL-terminated string scans.
	MaxStringLength = 1 << 20
	// MaxArrayLength bounds sentinel-terminated array scans.
	MaxArrayLength = 1 << 16
)
