package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
	"github.com/testangel/testangel-sdk/log"
)

// LogBridge delivers a log message to the host. fn is the token the host
// passed to register_logger and msg points to a NUL-terminated string that
// is only valid for the duration of the call.
type LogBridge func(fn uint32, level entities.LogLevel, msg uint32)

// SurfaceOption configures a Surface.
type SurfaceOption func(*surfaceConfig)

type surfaceConfig struct {
	bridge   LogBridge
	logLevel slog.Leveler
}

func defaultSurfaceConfig() surfaceConfig {
	return surfaceConfig{
		logLevel: entities.LevelTrace,
	}
}

// WithLogBridge sets how log messages reach the host.
func WithLogBridge(bridge LogBridge) SurfaceOption {
	return func(c *surfaceConfig) {
		c.bridge = bridge
	}
}

// WithLogLevel sets the minimum level forwarded to the host.
func WithLogLevel(level slog.Leveler) SurfaceOption {
	return func(c *surfaceConfig) {
		c.logLevel = level
	}
}

// Surface implements the ABI entry points of an Engine over an arena.
// Every method takes and returns raw 32-bit pointers into the arena.
//
// Every structure handed to the host is allocated in the arena, strings
// included, and is released only by the matching Free method.
type Surface struct {
	engine *Engine
	arena  ports.Arena
	logger *slog.Logger
	config surfaceConfig
	logFn  atomic.Uint32
}

// NewSurface creates a Surface for e. Handlers of e log through the
// Surface from then on.
func NewSurface(e *Engine, arena ports.Arena, opts ...SurfaceOption) *Surface {
	cfg := defaultSurfaceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Surface{engine: e, arena: arena, config: cfg}
	s.logger = slog.New(log.NewHandler(s.emit, log.WithLevel(cfg.logLevel)))
	e.SetLogger(s.logger)
	return s
}

// Engine returns the engine behind the surface.
func (s *Surface) Engine() *Engine {
	return s.engine
}

// Arena returns the arena every structure is allocated in.
func (s *Surface) Arena() ports.Arena {
	return s.arena
}

// Logger returns the logger that writes to the registered host logger.
func (s *Surface) Logger() *slog.Logger {
	return s.logger
}

// RegisterLogger stores the host's logger token. Zero unregisters.
func (s *Surface) RegisterLogger(fn uint32) {
	s.logFn.Store(fn)
}

// emit copies message into the arena, hands it to the host and frees it.
// Without a registered logger it does nothing.
func (s *Surface) emit(level entities.LogLevel, message string) {
	fn := s.logFn.Load()
	if fn == 0 || s.config.bridge == nil {
		return
	}
	ptr, err := abi.WriteCString(s.arena, escapeNUL(message))
	if err != nil {
		return
	}
	defer func() { _ = s.arena.Free(ptr) }()
	s.config.bridge(fn, level, ptr)
}

// Signature returns the plugin signature.
func (s *Surface) Signature() uint64 {
	return abi.PluginSignature
}

// Alloc reserves memory for the host to pass input. It returns 0 on failure.
func (s *Surface) Alloc(size uint32) uint32 {
	ptr, err := s.arena.Allocate(size)
	if err != nil {
		s.logger.Error("allocation failed", "size", size, "error", err)
		return 0
	}
	return ptr
}

// Dealloc releases memory obtained from Alloc.
func (s *Surface) Dealloc(ptr uint32) error {
	if err := s.arena.Free(ptr); err != nil {
		s.logger.Warn("dealloc failed", "ptr", ptr, "error", err)
		return err
	}
	return nil
}

// fallbackReason replaces a reason that cannot be written as a C string.
const fallbackReason = "engine failed to encode the failure reason"

// escapeNUL keeps text representable as a NUL-terminated string.
func escapeNUL(text string) string {
	return strings.ReplaceAll(text, "\x00", `\x00`)
}

// result allocates the Result for err. A reason that still cannot be
// written is replaced by a fixed one, then dropped. Only when the arena
// cannot hold a Result at all is the null pointer returned.
func (s *Surface) result(err error) uint32 {
	res := domainerrors.ToResult(err)
	if res.Reason != nil {
		reason := escapeNUL(*res.Reason)
		res.Reason = &reason
	}
	ptr, werr := abi.WriteResult(s.arena, res)
	if werr == nil {
		return ptr
	}
	s.logger.Warn("result reason not encodable", "code", res.Code, "error", werr)
	for _, fallback := range []entities.Result{
		entities.ResultError(res.Code, fallbackReason),
		{Code: res.Code},
	} {
		if ptr, werr = abi.WriteResult(s.arena, fallback); werr == nil {
			return ptr
		}
	}
	return 0
}

// recoverResult turns a panic in an entry point into an error result.
func (s *Surface) recoverResult(entry string, res *uint32, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}
	if cleanup != nil {
		cleanup()
	}
	err := &domainerrors.PanicError{Value: r, Entry: entry, Stack: debug.Stack()}
	s.logger.Error("entry point panicked", "entry", entry, "error", err)
	*res = s.result(err)
}

func (s *Surface) clearOut(ptrs ...uint32) {
	for _, p := range ptrs {
		if p != 0 {
			s.arena.WriteUint32Le(p, 0)
		}
	}
}

// RequestInstructions fills the caller's engine metadata struct at outMeta
// and stores a null-terminated instruction array at *outInstructions.
func (s *Surface) RequestInstructions(outMeta, outInstructions uint32) (res uint32) {
	defer s.recoverResult(abi.ExportRequestInstructions, &res, func() { s.clearOut(outInstructions) })

	if outMeta == 0 || outInstructions == 0 {
		return s.result(fmt.Errorf("request_instructions output: %w", domainerrors.ErrNullPointer))
	}
	s.clearOut(outInstructions)

	if err := abi.WriteEngineMetadata(s.arena, outMeta, s.engine.Metadata()); err != nil {
		return s.result(err)
	}
	arr, err := abi.WriteInstructionArray(s.arena, s.engine.Instructions())
	if err != nil {
		_ = abi.FreeEngineMetadata(s.arena, outMeta)
		return s.result(err)
	}
	s.arena.WriteUint32Le(outInstructions, arr)

	s.logger.Debug("instructions requested", "count", len(s.engine.Instructions()))
	return s.result(nil)
}

// Execute runs an instruction. idPtr is a NUL-terminated id, params points
// to count ta_named_value pointers owned by the caller. On success the
// output values and evidence arrays are stored at *outValues and
// *outEvidence; on failure both are null.
func (s *Surface) Execute(idPtr, params, count, dryRun, outValues, outEvidence uint32) (res uint32) {
	defer s.recoverResult(abi.ExportExecute, &res, func() { s.clearOut(outValues, outEvidence) })

	if outValues == 0 || outEvidence == 0 {
		return s.result(fmt.Errorf("execute output: %w", domainerrors.ErrNullPointer))
	}
	s.clearOut(outValues, outEvidence)

	id, err := abi.ReadCString(s.arena, idPtr)
	if err != nil {
		return s.result(&domainerrors.InvalidInstructionError{Err: err})
	}

	ptrs, err := abi.ReadPtrList(s.arena, params, count)
	if err != nil {
		return s.result(&domainerrors.InvalidParameterError{Err: err})
	}
	supplied := make([]suppliedParam, len(ptrs))
	for i, p := range ptrs {
		nv, err := abi.ReadNamedValue(s.arena, p)
		supplied[i] = suppliedParam{value: nv, err: err}
	}

	s.logger.Debug("executing instruction", "instruction", id, "parameters", len(supplied), "dry_run", dryRun != 0)
	out, err := s.engine.run(context.Background(), id, supplied, dryRun != 0)
	if err != nil {
		s.logger.Debug("instruction failed", "instruction", id, "error", err)
		return s.result(err)
	}

	values, err := abi.WriteNamedValueArray(s.arena, out.Values)
	if err != nil {
		return s.result(err)
	}
	evidence, err := abi.WriteEvidenceArray(s.arena, out.Evidence)
	if err != nil {
		_ = abi.FreeNamedValueArray(s.arena, values)
		return s.result(err)
	}
	s.arena.WriteUint32Le(outValues, values)
	s.arena.WriteUint32Le(outEvidence, evidence)
	return s.result(nil)
}

// ResetState discards engine state. It always succeeds.
func (s *Surface) ResetState() (res uint32) {
	defer s.recoverResult(abi.ExportResetState, &res, nil)
	s.engine.ResetState()
	s.logger.Debug("state reset")
	return s.result(nil)
}

func (s *Surface) logFree(what string, err error) error {
	if err != nil {
		s.logger.Warn("free failed", "what", what, "error", err)
	}
	return err
}

// FreeResult releases a Result. Null is ignored.
func (s *Surface) FreeResult(ptr uint32) error {
	return s.logFree("result", abi.FreeResult(s.arena, ptr))
}

// FreeEngineMetadata releases the strings of an engine metadata struct.
func (s *Surface) FreeEngineMetadata(ptr uint32) error {
	return s.logFree("engine metadata", abi.FreeEngineMetadata(s.arena, ptr))
}

// FreeInstructionMetadataArray releases an instruction array.
func (s *Surface) FreeInstructionMetadataArray(ptr uint32) error {
	return s.logFree("instruction metadata", abi.FreeInstructionArray(s.arena, ptr))
}

// FreeNamedValueArray releases an output value array.
func (s *Surface) FreeNamedValueArray(ptr uint32) error {
	return s.logFree("named values", abi.FreeNamedValueArray(s.arena, ptr))
}

// FreeEvidenceArray releases an evidence array.
func (s *Surface) FreeEvidenceArray(ptr uint32) error {
	return s.logFree("evidence", abi.FreeEvidenceArray(s.arena, ptr))
}

// errNoExport is returned by Module.Call for names the surface does not export.
var errNoExport = errors.New("no such export")
