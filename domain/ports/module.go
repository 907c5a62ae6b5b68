package ports

import (
	"context"

	"github.com/testangel/testangel-sdk/domain/entities"
)

// EngineModule is a loaded engine as the host sees it: a set of named
// exports and the engine's memory.
type EngineModule interface {
	// Name identifies the module in logs.
	Name() string

	// Memory returns the engine's address space.
	Memory() Memory

	// Call invokes an exported entry point with raw ABI arguments.
	Call(ctx context.Context, export string, params ...uint64) ([]uint64, error)

	// Close unloads the module.
	Close(ctx context.Context) error
}

// LogSink receives messages an engine emits through a registered logger.
// The message has already been copied out of engine memory.
type LogSink interface {
	Log(ctx context.Context, fn uint32, level entities.LogLevel, message string)
}
