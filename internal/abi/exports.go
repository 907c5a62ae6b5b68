package abi

// Names of the entry points an engine module exports.
const (
	ExportRequestInstructions = "ta_request_instructions"
	ExportExecute             = "ta_execute"
	ExportResetState          = "ta_reset_state"
	ExportRegisterLogger      = "ta_register_logger"
	ExportFreeResult          = "ta_free_result"
	ExportFreeEngineMetadata  = "ta_free_engine_metadata"
	ExportFreeInstructions    = "ta_free_instruction_metadata_array"
	ExportFreeNamedValues     = "ta_free_named_value_array"
	ExportFreeEvidence        = "ta_free_evidence_array"
	ExportSignature           = "_dynamic_plugin_signature"
	ExportAlloc               = "ta_alloc"
	ExportDealloc             = "ta_dealloc"
)

// RequiredExports lists every export a host needs before it will talk to
// an engine module.
var RequiredExports = []string{
	ExportRequestInstructions,
	ExportExecute,
	ExportResetState,
	ExportRegisterLogger,
	ExportFreeResult,
	ExportFreeEngineMetadata,
	ExportFreeInstructions,
	ExportFreeNamedValues,
	ExportFreeEvidence,
	ExportSignature,
	ExportAlloc,
	ExportDealloc,
}

// Host import module and function the engine calls to deliver log messages.
const (
	HostModule  = "testangel_host"
	HostLogFunc = "log"
)

// MemoryExport is the name of the linear memory every engine exports.
const MemoryExport = "memory"

// PluginSignature is the value _dynamic_plugin_signature returns. It is
// reserved for future capability gating.
const PluginSignature uint64 = 0
