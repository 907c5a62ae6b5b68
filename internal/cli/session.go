package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/engines/demo"
	"github.com/testangel/testangel-sdk/engines/text"
	"github.com/testangel/testangel-sdk/host"
)

// Engines compiled into the host.
const (
	BuiltinDemo = "builtin:demo"
	BuiltinText = "builtin:text"
)

var builtins = map[string]func() *engine.Engine{
	BuiltinDemo: demo.New,
	BuiltinText: text.New,
}

// session loads engines for one command. The wazero runtime is only
// created once a module file is loaded.
type session struct {
	opts     *RootOptions
	loggers  *host.LoggerTable
	executor *host.Executor
}

func newSession(opts *RootOptions) *session {
	return &session{opts: opts, loggers: host.NewLoggerTable(opts.Logger)}
}

func (s *session) instanceOptions() []host.InstanceOption {
	return []host.InstanceOption{
		host.WithAcceptedIPCVersions(s.opts.Config.AcceptedIPCVersions...),
		host.WithLogger(s.opts.Logger),
	}
}

func (s *session) runtime(ctx context.Context) (*host.Executor, error) {
	if s.executor != nil {
		return s.executor, nil
	}
	ex, err := host.NewExecutor(ctx,
		host.WithLoggers(s.loggers),
		host.WithMaxLogMessageSize(s.opts.Config.MaxLogMessageSize),
		host.WithInstanceOptions(s.instanceOptions()...),
	)
	if err != nil {
		return nil, err
	}
	s.executor = ex
	return ex, nil
}

// LoadEngine implements registry.Loader.
func (s *session) LoadEngine(ctx context.Context, name string, wasmBytes []byte) (*host.Instance, error) {
	ex, err := s.runtime(ctx)
	if err != nil {
		return nil, err
	}
	return ex.LoadEngine(ctx, name, wasmBytes)
}

// open loads the engine named by ref: a builtin or a module path.
func (s *session) open(ctx context.Context, ref string) (*host.Instance, error) {
	if newEngine, ok := builtins[ref]; ok {
		mod := engine.NewModule(newEngine(),
			engine.WithLogSink(s.loggers),
			engine.WithModuleLogLevel(s.opts.Level))
		opts := append(s.instanceOptions(), host.WithLoggerTable(s.loggers))
		inst, err := host.Open(ctx, mod, opts...)
		if err != nil {
			_ = mod.Close(ctx)
			return nil, commandError("failed to load "+ref, err)
		}
		return inst, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, commandError("failed to read engine", err)
	}
	name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	inst, err := s.LoadEngine(ctx, name, data)
	if err != nil {
		return nil, commandError(fmt.Sprintf("failed to load %s", ref), err)
	}
	return inst, nil
}

func (s *session) Close(ctx context.Context) error {
	if s.executor == nil {
		return nil
	}
	return s.executor.Close(ctx)
}
