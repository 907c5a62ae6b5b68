package host_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/engines/demo"
	"github.com/testangel/testangel-sdk/host"
)

// hookedModule is an in-process engine module whose exports can be
// intercepted to simulate misbehaving engines.
type hookedModule struct {
	*engine.Module
	hooks map[string]func(params ...uint64) ([]uint64, error)
	calls map[string]int
	mu    sync.Mutex
}

func newHookedModule(e *engine.Engine, opts ...engine.ModuleOption) *hookedModule {
	return &hookedModule{
		Module: engine.NewModule(e, opts...),
		hooks:  make(map[string]func(params ...uint64) ([]uint64, error)),
		calls:  make(map[string]int),
	}
}

func (m *hookedModule) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	m.mu.Lock()
	m.calls[export]++
	hook := m.hooks[export]
	m.mu.Unlock()
	if hook != nil {
		return hook(params...)
	}
	return m.Module.Call(ctx, export, params...)
}

func (m *hookedModule) callCount(export string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[export]
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: entities.LevelTrace})), buf
}

func addParams(a, b int32) []entities.NamedValue {
	return []entities.NamedValue{
		entities.Named("a", entities.IntegerValue(a)),
		entities.Named("b", entities.IntegerValue(b)),
	}
}

// openDemo opens the demo engine in-process.
func openDemo(t *testing.T, opts ...host.InstanceOption) (*host.Instance, *hookedModule) {
	t.Helper()
	mod := newHookedModule(demo.New())
	inst, err := host.Open(context.Background(), mod, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(context.Background()) })
	return inst, mod
}

// flaggedEngine builds an engine with one instruction "op" carrying flags
// and running handler. Its lua name is derived from name.
func flaggedEngine(t *testing.T, name string, flags entities.InstructionFlags, handler engine.HandlerFunc) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Info{
		FriendlyName: name,
		LuaName:      name,
		Version:      "1.0.0",
	}, engine.WithInstruction(entities.InstructionMetadata{
		ID:           fmt.Sprintf("%s-op", name),
		LuaName:      "Op",
		FriendlyName: "Op",
		Flags:        flags,
		Outputs: []entities.ParameterDescriptor{
			{ID: "n", Name: "N", Kind: entities.KindInteger},
		},
	}, handler))
	require.NoError(t, err)
	return e
}
