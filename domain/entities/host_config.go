package entities

// HostConfig is the on-disk configuration of a host.
type HostConfig struct {
	// EngineDir is searched recursively for engine modules.
	EngineDir string `json:"engine_dir" yaml:"engine_dir" validate:"required"`

	// AcceptedIPCVersions lists the engine IPC versions the host will load.
	AcceptedIPCVersions []uint32 `json:"accepted_ipc_versions" yaml:"accepted_ipc_versions" validate:"required,min=1,dive,gt=0"`

	// LogLevel is the minimum level of engine log messages to emit.
	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	// ApprovalsFile persists "always" confirmations. Empty means
	// ~/.testangel/approvals.yaml.
	ApprovalsFile string `json:"approvals_file,omitempty" yaml:"approvals_file,omitempty"`

	// Trust lists instructions that run or are refused without a prompt.
	Trust TrustRules `json:"trust,omitempty" yaml:"trust,omitempty"`

	// MaxLogMessageSize truncates engine log messages, in bytes. Zero keeps
	// the built-in limit.
	MaxLogMessageSize int `json:"max_log_message_size,omitempty" yaml:"max_log_message_size,omitempty" validate:"gte=0"`

	// DisableMemoization turns off output caching for PURE instructions.
	DisableMemoization bool `json:"disable_memoization,omitempty" yaml:"disable_memoization,omitempty"`
}
