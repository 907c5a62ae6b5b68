package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/testangel/testangel-sdk/domain/entities"
	tawazero "github.com/testangel/testangel-sdk/infrastructure/wazero"
)

type loggerEntry struct {
	logger   *slog.Logger
	instance uuid.UUID
}

// LoggerTable hands out the callback tokens engines receive through
// register_logger and routes their messages to slog. It implements
// ports.LogSink and is shared by every instance of a host process.
type LoggerTable struct {
	base    *slog.Logger
	entries map[uint32]loggerEntry
	next    uint32
	mu      sync.RWMutex
}

// NewLoggerTable creates a table emitting through base, or slog.Default
// when base is nil.
func NewLoggerTable(base *slog.Logger) *LoggerTable {
	if base == nil {
		base = slog.Default()
	}
	return &LoggerTable{base: base, entries: make(map[uint32]loggerEntry)}
}

// Register allocates a token for one engine instance. Tokens are never zero
// and are not reused.
func (t *LoggerTable) Register(engine string, instance uuid.UUID) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = t.entry(engine, instance)
	return t.next
}

func (t *LoggerTable) entry(engine string, instance uuid.UUID) loggerEntry {
	return loggerEntry{
		logger:   t.base.With("engine", engine, "instance", instance.String()),
		instance: instance,
	}
}

// Rename changes the engine name messages for token are tagged with.
// Unknown tokens are ignored.
func (t *LoggerTable) Rename(token uint32, engine string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[token]; ok {
		t.entries[token] = t.entry(engine, e.instance)
	}
}

// Unregister forgets a token. Messages still arriving for it are dropped.
func (t *LoggerTable) Unregister(token uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, token)
}

// Len returns the number of registered tokens.
func (t *LoggerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Log implements ports.LogSink.
func (t *LoggerTable) Log(ctx context.Context, fn uint32, level entities.LogLevel, message string) {
	t.mu.RLock()
	entry, ok := t.entries[fn]
	t.mu.RUnlock()
	if !ok {
		name, _ := tawazero.EngineNameFromContext(ctx)
		t.base.DebugContext(ctx, "log message for unknown logger dropped", "token", fn, "engine", name)
		return
	}
	entry.logger.Log(ctx, level.SlogLevel(), message)
}
