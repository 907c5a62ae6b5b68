package host

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/testangel/testangel-sdk/domain/ports"
	tawazero "github.com/testangel/testangel-sdk/infrastructure/wazero"
)

// Executor owns the wazero runtime engines are instantiated in.
type Executor struct {
	runtime wazero.Runtime
	loggers *LoggerTable
	config  executorConfig
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := executorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.loggers == nil {
		cfg.loggers = NewLoggerTable(nil)
	}

	rtCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.memoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	err := tawazero.RegisterHostModule(ctx, rt, cfg.loggers, tawazero.WithMaxMessageSize(cfg.maxLogMessageSize))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host module: %w", err)
	}

	return &Executor{runtime: rt, loggers: cfg.loggers, config: cfg}, nil
}

// Close releases the runtime and every module instantiated in it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Loggers returns the logger table engines log through.
func (e *Executor) Loggers() *LoggerTable {
	return e.loggers
}

// LoadModule compiles and instantiates an engine module. Engines are built
// as reactors, so _initialize runs instead of _start.
func (e *Executor) LoadModule(ctx context.Context, name string, wasmBytes []byte) (ports.EngineModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	cfg := wazero.NewModuleConfig().
		WithName(name + "#" + uuid.NewString()).
		WithStartFunctions("_initialize").
		WithStderr(os.Stderr)
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate %s: %w", name, err)
	}

	em, err := tawazero.NewModule(mod, tawazero.WithName(name))
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return em, nil
}

// LoadEngine loads an engine module and completes the handshake with it.
func (e *Executor) LoadEngine(ctx context.Context, name string, wasmBytes []byte) (*Instance, error) {
	mod, err := e.LoadModule(ctx, name, wasmBytes)
	if err != nil {
		return nil, err
	}
	opts := append([]InstanceOption{WithLoggerTable(e.loggers)}, e.config.instanceOpts...)
	inst, err := Open(ctx, mod, opts...)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return inst, nil
}
