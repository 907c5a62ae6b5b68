// Package registry discovers engines on disk and indexes their instructions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/host"
)

// EnvEngineDir overrides the directory engines are discovered in.
const EnvEngineDir = "TA_ENGINE_DIR"

// DefaultEngineDir is searched when EnvEngineDir is unset.
const DefaultEngineDir = "./engines"

// EngineDir returns the engine directory from the environment or the default.
func EngineDir() string {
	if dir := os.Getenv(EnvEngineDir); dir != "" {
		return dir
	}
	return DefaultEngineDir
}

// Loader turns engine module bytes into a ready instance. *host.Executor
// implements it.
type Loader interface {
	LoadEngine(ctx context.Context, name string, wasmBytes []byte) (*host.Instance, error)
}

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	logger     *slog.Logger
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		logger:     slog.Default(),
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (an engine whose lua name is taken is rejected). When
// disabled the later engine replaces the earlier one.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// WithLogger sets the logger for discovery diagnostics.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Registry indexes loaded engines by lua name and instruction id.
type Registry struct {
	byLua         map[string]*host.Instance
	byInstruction map[string]*host.Instance
	config        registryConfig
	engines       []*host.Instance
	mu            sync.RWMutex
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		config:        cfg,
		byLua:         make(map[string]*host.Instance),
		byInstruction: make(map[string]*host.Instance),
	}
}

// Register adds a ready instance. In strict mode an engine whose lua name
// is already registered is rejected, otherwise the registered one is
// unloaded and replaced. When two engines offer the same
// instruction id the first one keeps it.
func (r *Registry) Register(inst *host.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := inst.Name()
	if existing, exists := r.byLua[name]; exists {
		if existing == inst {
			return nil
		}
		if r.config.strictMode {
			return fmt.Errorf("engine with lua name %q already registered", name)
		}
		r.removeLocked(existing)
		if err := existing.Close(context.Background()); err != nil {
			r.config.logger.Warn("failed to unload replaced engine", "engine", name, "error", err)
		}
	}

	r.byLua[name] = inst
	r.engines = append(r.engines, inst)
	for _, md := range inst.Instructions() {
		if owner, taken := r.byInstruction[md.ID]; taken {
			r.config.logger.Warn("instruction offered by two engines, keeping the first",
				"instruction", md.ID, "kept", owner.Name(), "ignored", name)
			continue
		}
		r.byInstruction[md.ID] = inst
	}
	return nil
}

func (r *Registry) removeLocked(inst *host.Instance) {
	delete(r.byLua, inst.Name())
	r.engines = slices.DeleteFunc(r.engines, func(e *host.Instance) bool { return e == inst })
	for id, owner := range r.byInstruction {
		if owner == inst {
			delete(r.byInstruction, id)
		}
	}
}

// Discover walks dir recursively and loads every .wasm file with loader.
// Files that fail to load or clash with a registered engine are skipped
// with a warning. It returns the number of engines registered.
func (r *Registry) Discover(ctx context.Context, loader Loader, dir string) (int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wasm") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan engine directory %s: %w", dir, err)
	}
	slices.Sort(paths)

	loaded := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if r.load(ctx, loader, path) {
			loaded++
		}
	}
	return loaded, nil
}

func (r *Registry) load(ctx context.Context, loader Loader, path string) bool {
	logger := r.config.logger.With("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read engine", "error", err)
		return false
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	inst, err := loader.LoadEngine(ctx, name, data)
	if err != nil {
		logger.Warn("failed to load engine", "error", err)
		return false
	}
	if err := r.Register(inst); err != nil {
		logger.Warn("engine rejected", "error", err)
		_ = inst.Close(ctx)
		return false
	}
	logger.Info("engine loaded", "engine", inst.Name(), "version", inst.Metadata().Version)
	return true
}

// Engines returns the registered engines in registration order.
func (r *Registry) Engines() []*host.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.engines)
}

// Engine returns the engine with the given lua name.
func (r *Registry) Engine(luaName string) (*host.Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byLua[luaName]
	return inst, ok
}

// EngineByInstructionID returns the engine offering an instruction.
func (r *Registry) EngineByInstructionID(id string) (*host.Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byInstruction[id]
	return inst, ok
}

// InstructionByID returns the metadata of an instruction from any engine.
func (r *Registry) InstructionByID(id string) (entities.InstructionMetadata, bool) {
	inst, ok := r.EngineByInstructionID(id)
	if !ok {
		return entities.InstructionMetadata{}, false
	}
	return inst.Instruction(id)
}

// List returns the ids of every indexed instruction, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byInstruction))
	for id := range r.byInstruction {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close unloads every engine.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, inst := range r.engines {
		errs = append(errs, inst.Close(ctx))
	}
	r.engines = nil
	clear(r.byLua)
	clear(r.byInstruction)
	return errors.Join(errs...)
}
