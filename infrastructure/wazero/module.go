package wazero

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
)

type moduleConfig struct {
	name     string
	required []string
}

// ModuleOption configures a Module.
type ModuleOption func(*moduleConfig)

// WithName overrides the name reported by the module. Defaults to the
// wazero module name.
func WithName(name string) ModuleOption {
	return func(c *moduleConfig) {
		c.name = name
	}
}

// WithRequiredExports replaces the list of exports the module must provide.
func WithRequiredExports(names ...string) ModuleOption {
	return func(c *moduleConfig) {
		c.required = names
	}
}

// Module adapts an instantiated wazero module to ports.EngineModule.
type Module struct {
	mod    api.Module
	name   string
	closed atomic.Bool
}

// NewModule wraps mod. It fails if mod has no memory or lacks a required
// export.
func NewModule(mod api.Module, opts ...ModuleOption) (*Module, error) {
	cfg := moduleConfig{name: mod.Name(), required: abi.RequiredExports}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Memory() is a non-nil interface even for modules without memory.
	if mod.ExportedMemory(abi.MemoryExport) == nil {
		return nil, fmt.Errorf("module %s exports no memory", cfg.name)
	}
	var missing []string
	for _, name := range cfg.required {
		if mod.ExportedFunction(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("module %s is missing exports: %s", cfg.name, strings.Join(missing, ", "))
	}
	return &Module{mod: mod, name: cfg.name}, nil
}

// Name implements ports.EngineModule.
func (m *Module) Name() string {
	return m.name
}

// Memory implements ports.EngineModule. wazero's api.Memory already has
// the method set of ports.Memory.
func (m *Module) Memory() ports.Memory {
	return m.mod.Memory()
}

// Call implements ports.EngineModule.
func (m *Module) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	if m.closed.Load() {
		return nil, domainerrors.ErrEngineUnloaded
	}
	fn := m.mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found in %s", export, m.name)
	}
	ctx = WithEngineName(ctx, m.name)
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", m.name, export, err)
	}
	return results, nil
}

// Close implements ports.EngineModule. Closing twice is a no-op.
func (m *Module) Close(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.mod.Close(ctx)
}
