package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
)

// ModuleOption configures a Module.
type ModuleOption func(*moduleConfig)

type moduleConfig struct {
	name     string
	sink     ports.LogSink
	heapOpts []abi.HeapOption
	logLevel slog.Leveler
}

func defaultModuleConfig(e *Engine) moduleConfig {
	return moduleConfig{
		name:     e.Metadata().LuaName,
		logLevel: entities.LevelTrace,
	}
}

// WithModuleName overrides the module name used in host logs.
func WithModuleName(name string) ModuleOption {
	return func(c *moduleConfig) {
		c.name = name
	}
}

// WithLogSink sets where log messages for registered loggers are delivered.
func WithLogSink(sink ports.LogSink) ModuleOption {
	return func(c *moduleConfig) {
		c.sink = sink
	}
}

// WithMemoryLimit caps the bytes the module may have allocated at once.
func WithMemoryLimit(limit int) ModuleOption {
	return func(c *moduleConfig) {
		c.heapOpts = append(c.heapOpts, abi.WithMaxTotalAllocations(limit))
	}
}

// WithModuleLogLevel sets the minimum level the engine forwards.
func WithModuleLogLevel(level slog.Leveler) ModuleOption {
	return func(c *moduleConfig) {
		c.logLevel = level
	}
}

// Module runs an Engine in-process behind the same entry points a WASM
// engine exports. It implements ports.EngineModule over a tracked Heap, so
// a host can load Go engines without compiling them to WASM and tests can
// check for leaks with Stats.
type Module struct {
	surface *Surface
	heap    *abi.Heap
	name    string
	closed  atomic.Bool
}

// NewModule creates an in-process module for e.
func NewModule(e *Engine, opts ...ModuleOption) *Module {
	cfg := defaultModuleConfig(e)
	for _, opt := range opts {
		opt(&cfg)
	}

	heap := abi.NewHeap(cfg.heapOpts...)
	m := &Module{heap: heap, name: cfg.name}

	var bridge LogBridge
	if cfg.sink != nil {
		sink := cfg.sink
		bridge = func(fn uint32, level entities.LogLevel, msg uint32) {
			message, err := abi.ReadCString(heap, msg)
			if err != nil {
				return
			}
			sink.Log(context.Background(), fn, level, message)
		}
	}
	m.surface = NewSurface(e, heap, WithLogBridge(bridge), WithLogLevel(cfg.logLevel))
	return m
}

// Name implements ports.EngineModule.
func (m *Module) Name() string {
	return m.name
}

// Memory implements ports.EngineModule.
func (m *Module) Memory() ports.Memory {
	return m.heap
}

// Surface returns the entry points behind the module.
func (m *Module) Surface() *Surface {
	return m.surface
}

// Stats reports the live allocations of the module's heap.
func (m *Module) Stats() (allocations int, bytes int) {
	return m.heap.Stats()
}

// Close implements ports.EngineModule. It releases the whole heap.
func (m *Module) Close(_ context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}
	m.heap.FreeAll()
	return nil
}

// Call implements ports.EngineModule by dispatching to the Surface. Errors
// from the free exports are returned so double frees are visible to callers.
func (m *Module) Call(_ context.Context, export string, params ...uint64) ([]uint64, error) {
	if m.closed.Load() {
		return nil, domainerrors.ErrEngineUnloaded
	}

	arg := func(i int) uint32 {
		if i < len(params) {
			return uint32(params[i]) //nolint:gosec // G115: ABI arguments are 32-bit
		}
		return 0
	}
	ret := func(v uint32) []uint64 { return []uint64{uint64(v)} }
	s := m.surface

	switch export {
	case abi.ExportRequestInstructions:
		return ret(s.RequestInstructions(arg(0), arg(1))), nil
	case abi.ExportExecute:
		return ret(s.Execute(arg(0), arg(1), arg(2), arg(3), arg(4), arg(5))), nil
	case abi.ExportResetState:
		return ret(s.ResetState()), nil
	case abi.ExportRegisterLogger:
		s.RegisterLogger(arg(0))
		return nil, nil
	case abi.ExportFreeResult:
		return nil, s.FreeResult(arg(0))
	case abi.ExportFreeEngineMetadata:
		return nil, s.FreeEngineMetadata(arg(0))
	case abi.ExportFreeInstructions:
		return nil, s.FreeInstructionMetadataArray(arg(0))
	case abi.ExportFreeNamedValues:
		return nil, s.FreeNamedValueArray(arg(0))
	case abi.ExportFreeEvidence:
		return nil, s.FreeEvidenceArray(arg(0))
	case abi.ExportSignature:
		return []uint64{s.Signature()}, nil
	case abi.ExportAlloc:
		return ret(s.Alloc(arg(0))), nil
	case abi.ExportDealloc:
		return nil, s.Dealloc(arg(0))
	default:
		return nil, fmt.Errorf("%s: %w", export, errNoExport)
	}
}
