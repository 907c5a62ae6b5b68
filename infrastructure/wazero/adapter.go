package wazero

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
)

// AdapterConfig holds configuration for the host module.
type AdapterConfig struct {
	// MaxMessageSize truncates log messages read from engine memory.
	// Default is abi.MaxStringLength.
	MaxMessageSize int
}

// AdapterOption configures the host module.
type AdapterOption func(*AdapterConfig)

// WithMaxMessageSize sets the length at which log messages are truncated.
// Values below 1 keep the default.
func WithMaxMessageSize(size int) AdapterOption {
	return func(c *AdapterConfig) {
		if size > 0 {
			c.MaxMessageSize = size
		}
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		MaxMessageSize: abi.MaxStringLength,
	}
}

// RegisterHostModule instantiates the host module engines import. Its log
// function has the signature (fn, level, msg i32) and delivers each message
// to sink while the engine is blocked in the call, so the message pointer
// is still valid.
func RegisterHostModule(ctx context.Context, runtime wazero.Runtime, sink ports.LogSink, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	i32 := api.ValueTypeI32
	builder := runtime.NewHostModuleBuilder(abi.HostModule)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handleLog(ctx, mod, stack, sink, cfg.MaxMessageSize)
		}), []api.ValueType{i32, i32, i32}, []api.ValueType{}).
		WithParameterNames("fn", "level", "msg").
		Export(abi.HostLogFunc)

	_, err := builder.Instantiate(ctx)
	return err
}

// handleLog copies a log message out of engine memory and forwards it.
func handleLog(ctx context.Context, mod api.Module, stack []uint64, sink ports.LogSink, maxMessageSize int) {
	fn := api.DecodeU32(stack[0])
	level := entities.LogLevel(api.DecodeU32(stack[1]))
	ptr := api.DecodeU32(stack[2])

	if sink == nil || fn == 0 {
		return
	}
	name := GetEngineName(ctx, mod)
	ctx = WithEngineName(ctx, name)

	msg, err := abi.ReadCString(mod.Memory(), ptr)
	if err != nil {
		slog.WarnContext(ctx, "wazero: unreadable log message", "engine", name, "error", err)
		return
	}
	if maxMessageSize > 0 && len(msg) > maxMessageSize {
		msg = msg[:maxMessageSize]
	}
	sink.Log(ctx, fn, level, msg)
}
