package host

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
)

// State is the lifecycle state of an Instance.
type State int32

const (
	// StateLoaded: the module is instantiated but the handshake has not completed.
	StateLoaded State = iota
	// StateReady: the instance accepts calls.
	StateReady
	// StateUnloaded: the instance was closed.
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateUnloaded:
		return "unloaded"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type instanceConfig struct {
	logger   *slog.Logger
	loggers  *LoggerTable
	accepted []uint32
}

func defaultInstanceConfig() instanceConfig {
	return instanceConfig{
		logger:   slog.Default(),
		accepted: []uint32{entities.CurrentIPCVersion},
	}
}

// InstanceOption configures an Instance.
type InstanceOption func(*instanceConfig)

// WithAcceptedIPCVersions sets the IPC versions the host will talk to.
// Default is the current version only.
func WithAcceptedIPCVersions(versions ...uint32) InstanceOption {
	return func(c *instanceConfig) {
		c.accepted = versions
	}
}

// WithLoggerTable registers a logger with the engine so its messages reach
// the table. Without one the engine never logs.
func WithLoggerTable(t *LoggerTable) InstanceOption {
	return func(c *instanceConfig) {
		c.loggers = t
	}
}

// WithLogger sets the logger for host-side diagnostics.
func WithLogger(l *slog.Logger) InstanceOption {
	return func(c *instanceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Output is the decoded result of a successful execution. It is a copy:
// the engine's arrays have already been released.
type Output struct {
	Values   []entities.NamedValue
	Evidence []entities.Evidence
}

// Value returns the output with the given id.
func (o *Output) Value(id string) (entities.Value, bool) {
	for _, nv := range o.Values {
		if nv.Name == id {
			return nv.Value, true
		}
	}
	return entities.Value{}, false
}

// Clone returns a copy that shares no slices with o.
func (o *Output) Clone() *Output {
	return &Output{Values: slices.Clone(o.Values), Evidence: slices.Clone(o.Evidence)}
}

// Instance is the host's handle on one loaded engine. Calls into the
// engine are serialized.
type Instance struct {
	mod          ports.EngineModule
	logger       *slog.Logger
	byID         map[string]entities.InstructionMetadata
	meta         entities.EngineMetadata
	instructions []entities.InstructionMetadata
	config       instanceConfig
	id           uuid.UUID
	logToken     uint32
	state        State
	mu           sync.Mutex
}

// Open performs the handshake with mod: it checks the plugin signature,
// registers a logger, requests the instruction list and refuses IPC
// versions that are not accepted. On error the caller still owns mod.
func Open(ctx context.Context, mod ports.EngineModule, opts ...InstanceOption) (*Instance, error) {
	cfg := defaultInstanceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	i := &Instance{
		mod:    mod,
		config: cfg,
		id:     uuid.New(),
		state:  StateLoaded,
	}
	i.logger = cfg.logger.With("module", mod.Name(), "instance", i.id.String())

	if err := i.checkSignature(ctx); err != nil {
		return nil, err
	}
	// The logger goes in first so the handshake itself can log. Its entry
	// carries the module name until the engine's lua name is known.
	if cfg.loggers != nil {
		token := cfg.loggers.Register(mod.Name(), i.id)
		if _, err := mod.Call(ctx, abi.ExportRegisterLogger, uint64(token)); err != nil {
			cfg.loggers.Unregister(token)
			return nil, fmt.Errorf("register logger: %w", err)
		}
		i.logToken = token
	}
	if err := i.requestInstructions(ctx); err != nil {
		if i.logToken != 0 {
			cfg.loggers.Unregister(i.logToken)
		}
		return nil, err
	}
	if i.logToken != 0 {
		cfg.loggers.Rename(i.logToken, i.meta.LuaName)
	}

	i.state = StateReady
	i.logger.Debug("engine ready",
		"engine", i.meta.LuaName,
		"version", i.meta.Version,
		"instructions", len(i.instructions))
	return i, nil
}

func (i *Instance) checkSignature(ctx context.Context) error {
	ret, err := i.mod.Call(ctx, abi.ExportSignature)
	if err != nil {
		return fmt.Errorf("read plugin signature: %w", err)
	}
	if len(ret) == 0 || ret[0] != abi.PluginSignature {
		var sig uint64
		if len(ret) > 0 {
			sig = ret[0]
		}
		return fmt.Errorf("%s: signature %#x: %w", i.mod.Name(), sig, domainerrors.ErrBadSignature)
	}
	return nil
}

// callResult invokes an entry point returning a ta_result, decodes and
// releases it. A non-OK result becomes an *errors.EngineError.
func (i *Instance) callResult(ctx context.Context, entry string, params ...uint64) error {
	ret, err := i.mod.Call(ctx, entry, params...)
	if err != nil {
		return err
	}
	if len(ret) == 0 || ret[0] == 0 {
		return &domainerrors.EngineError{
			Entry:  entry,
			Code:   entities.CodeEngineProcessing,
			Reason: "engine returned a null result",
		}
	}

	owned := newOwned(i.mod, uint32(ret[0]), abi.ExportFreeResult) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	defer i.release(ctx, owned)

	res, err := abi.ReadResult(i.mod.Memory(), owned.Ptr())
	if err != nil {
		return &domainerrors.ContractError{Entry: entry, Err: err}
	}
	if res.OK() {
		if res.Reason != nil {
			i.logger.Warn("engine returned a reason with an OK result", "entry", entry, "reason", *res.Reason)
		}
		return nil
	}
	if !res.Code.Known() {
		i.logger.Warn("engine returned an unknown result code", "entry", entry, "code", uint32(res.Code))
	}
	return &domainerrors.EngineError{Entry: entry, Code: res.Code, Reason: res.ReasonString()}
}

func (i *Instance) release(ctx context.Context, o *Owned) {
	if err := o.Release(ctx); err != nil {
		i.logger.Warn("release failed", "error", err)
	}
}

func (i *Instance) free(arena ports.Arena, ptr uint32) {
	if err := arena.Free(ptr); err != nil {
		i.logger.Warn("dealloc failed", "error", err)
	}
}

func (i *Instance) requestInstructions(ctx context.Context) error {
	arena := newModuleArena(ctx, i.mod)
	mem := i.mod.Memory()

	metaPtr, err := arena.Allocate(abi.EngineMetadataSize)
	if err != nil {
		return fmt.Errorf("allocate engine metadata: %w", err)
	}
	defer i.free(arena, metaPtr)
	outPtr, err := arena.Allocate(abi.PtrSize)
	if err != nil {
		return fmt.Errorf("allocate instruction slot: %w", err)
	}
	defer i.free(arena, outPtr)

	callErr := i.callResult(ctx, abi.ExportRequestInstructions, uint64(metaPtr), uint64(outPtr))

	arrPtr, _ := mem.ReadUint32Le(outPtr)
	metaStrings := newOwned(i.mod, metaPtr, abi.ExportFreeEngineMetadata)
	defer i.release(ctx, metaStrings)
	list := newOwned(i.mod, arrPtr, abi.ExportFreeInstructions)
	defer i.release(ctx, list)

	if callErr != nil {
		return callErr
	}

	// Nothing but the version may be read before it is accepted.
	version, err := abi.ReadIPCVersion(mem, metaPtr)
	if err != nil {
		return &domainerrors.ContractError{Entry: abi.ExportRequestInstructions, Err: err}
	}
	if !slices.Contains(i.config.accepted, version) {
		return &domainerrors.IncompatibleEngineError{
			Engine:   i.mod.Name(),
			Declared: version,
			Accepted: i.config.accepted,
		}
	}

	meta, err := abi.ReadEngineMetadata(mem, metaPtr)
	if err != nil {
		return &domainerrors.ContractError{Entry: abi.ExportRequestInstructions, Err: err}
	}
	if err := meta.Validate(); err != nil {
		i.logger.Warn("engine metadata is malformed", "error", err)
	}
	instructions, err := abi.ReadInstructionArray(mem, arrPtr)
	if err != nil {
		return &domainerrors.ContractError{Entry: abi.ExportRequestInstructions, Err: err}
	}

	byID := make(map[string]entities.InstructionMetadata, len(instructions))
	for _, inst := range instructions {
		if _, dup := byID[inst.ID]; dup {
			return &domainerrors.ContractError{
				Entry: abi.ExportRequestInstructions,
				Err:   fmt.Errorf("instruction %q is declared twice", inst.ID),
			}
		}
		byID[inst.ID] = inst
	}

	i.meta = meta
	i.instructions = instructions
	i.byID = byID
	return nil
}

// ID returns the unique id of this instance, used in logs.
func (i *Instance) ID() uuid.UUID {
	return i.id
}

// Name returns the engine's lua name.
func (i *Instance) Name() string {
	return i.meta.LuaName
}

// Metadata returns the engine metadata read during the handshake.
func (i *Instance) Metadata() entities.EngineMetadata {
	return i.meta
}

// Instructions returns the instructions the engine offers.
func (i *Instance) Instructions() []entities.InstructionMetadata {
	return slices.Clone(i.instructions)
}

// Instruction returns the metadata of one instruction.
func (i *Instance) Instruction(id string) (entities.InstructionMetadata, bool) {
	md, ok := i.byID[id]
	return md, ok
}

// State returns the lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Execute runs an instruction. The engine's outputs are decoded and
// released before Execute returns; a non-OK result is returned as an
// *errors.EngineError.
func (i *Instance) Execute(ctx context.Context, id string, params []entities.NamedValue, dryRun bool) (*Output, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateReady {
		return nil, domainerrors.ErrEngineUnloaded
	}

	arena := newModuleArena(ctx, i.mod)
	mem := i.mod.Memory()

	idPtr, err := abi.WriteCString(arena, id)
	if err != nil {
		return nil, fmt.Errorf("write instruction id: %w", err)
	}
	defer i.free(arena, idPtr)

	paramsPtr, err := abi.WriteNamedValueArray(arena, params)
	if err != nil {
		return nil, fmt.Errorf("write parameters: %w", err)
	}
	defer func() {
		if err := abi.FreeNamedValueArray(arena, paramsPtr); err != nil {
			i.logger.Warn("releasing parameters failed", "error", err)
		}
	}()

	outValues, err := arena.Allocate(abi.PtrSize)
	if err != nil {
		return nil, fmt.Errorf("allocate output slot: %w", err)
	}
	defer i.free(arena, outValues)
	outEvidence, err := arena.Allocate(abi.PtrSize)
	if err != nil {
		return nil, fmt.Errorf("allocate evidence slot: %w", err)
	}
	defer i.free(arena, outEvidence)

	var dry uint64
	if dryRun {
		dry = 1
	}
	callErr := i.callResult(ctx, abi.ExportExecute,
		uint64(idPtr), uint64(paramsPtr), uint64(len(params)), dry, uint64(outValues), uint64(outEvidence))

	valuesPtr, _ := mem.ReadUint32Le(outValues)
	evidencePtr, _ := mem.ReadUint32Le(outEvidence)
	values := newOwned(i.mod, valuesPtr, abi.ExportFreeNamedValues)
	defer i.release(ctx, values)
	evidence := newOwned(i.mod, evidencePtr, abi.ExportFreeEvidence)
	defer i.release(ctx, evidence)

	if callErr != nil {
		if valuesPtr != 0 || evidencePtr != 0 {
			i.logger.Warn("engine returned outputs with a failed result", "instruction", id)
		}
		return nil, callErr
	}

	out := &Output{}
	if out.Values, err = abi.ReadNamedValueArray(mem, valuesPtr); err != nil {
		return nil, &domainerrors.ContractError{Entry: abi.ExportExecute, Err: fmt.Errorf("output values: %w", err)}
	}
	if out.Evidence, err = abi.ReadEvidenceArray(mem, evidencePtr); err != nil {
		return nil, &domainerrors.ContractError{Entry: abi.ExportExecute, Err: fmt.Errorf("evidence: %w", err)}
	}
	return out, nil
}

// ResetState asks the engine to discard accumulated state.
func (i *Instance) ResetState(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateReady {
		return domainerrors.ErrEngineUnloaded
	}
	return i.callResult(ctx, abi.ExportResetState)
}

// Close unloads the engine. Closing twice is a no-op.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateUnloaded {
		return nil
	}
	i.state = StateUnloaded
	if i.logToken != 0 && i.config.loggers != nil {
		i.config.loggers.Unregister(i.logToken)
	}
	return i.mod.Close(ctx)
}
