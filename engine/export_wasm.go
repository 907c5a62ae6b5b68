//go:build wasip1

package engine

import (
	"log/slog"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/internal/abi"
)

// Host logger import. The message pointer is only valid during the call.
//
//go:wasmimport testangel_host log
//nolint:revive // intentional snake_case to match WASM import convention
func host_log(fn, level, msg uint32)

var exported *Surface

// Register exposes e through the module's exports. Call it from an init
// function of the engine's main package; the module is built as a reactor
// (-buildmode=c-shared), so main never runs.
func Register(e *Engine, opts ...SurfaceOption) {
	opts = append([]SurfaceOption{WithLogBridge(func(fn uint32, level entities.LogLevel, msg uint32) {
		host_log(fn, uint32(level), msg)
	})}, opts...)
	exported = NewSurface(e, abi.NewLinearArena(), opts...)
	slog.SetDefault(exported.Logger())
}

func current() *Surface {
	if exported == nil {
		panic("engine: Register was not called")
	}
	return exported
}

//go:wasmexport _dynamic_plugin_signature
func dynamicPluginSignature() uint64 {
	return current().Signature()
}

//go:wasmexport ta_alloc
func taAlloc(size uint32) uint32 {
	return current().Alloc(size)
}

//go:wasmexport ta_dealloc
func taDealloc(ptr uint32) {
	_ = current().Dealloc(ptr)
}

//go:wasmexport ta_register_logger
func taRegisterLogger(fn uint32) {
	current().RegisterLogger(fn)
}

//go:wasmexport ta_request_instructions
func taRequestInstructions(outMeta, outInstructions uint32) uint32 {
	return current().RequestInstructions(outMeta, outInstructions)
}

//go:wasmexport ta_execute
func taExecute(id, params, count, dryRun, outValues, outEvidence uint32) uint32 {
	return current().Execute(id, params, count, dryRun, outValues, outEvidence)
}

//go:wasmexport ta_reset_state
func taResetState() uint32 {
	return current().ResetState()
}

//go:wasmexport ta_free_result
func taFreeResult(ptr uint32) {
	_ = current().FreeResult(ptr)
}

//go:wasmexport ta_free_engine_metadata
func taFreeEngineMetadata(ptr uint32) {
	_ = current().FreeEngineMetadata(ptr)
}

//go:wasmexport ta_free_instruction_metadata_array
func taFreeInstructionMetadataArray(ptr uint32) {
	_ = current().FreeInstructionMetadataArray(ptr)
}

//go:wasmexport ta_free_named_value_array
func taFreeNamedValueArray(ptr uint32) {
	_ = current().FreeNamedValueArray(ptr)
}

//go:wasmexport ta_free_evidence_array
func taFreeEvidenceArray(ptr uint32) {
	_ = current().FreeEvidenceArray(ptr)
}
