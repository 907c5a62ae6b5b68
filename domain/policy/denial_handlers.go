package policy

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/testangel/testangel-sdk/domain/ports"
)

// Ensure implementations satisfy the interface.
var _ ports.DenialHandler = (*StderrDenialHandler)(nil)
var _ ports.DenialHandler = (*LogDenialHandler)(nil)
var _ ports.DenialHandler = (*NopDenialHandler)(nil)

// StderrDenialHandler prints denials. Out defaults to stderr.
type StderrDenialHandler struct {
	Out io.Writer
}

func (h *StderrDenialHandler) OnDenial(engine, instruction, pattern string) {
	out := h.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Instruction Denied: %s.%s (Rule: %s)\n", engine, instruction, pattern)
}

// LogDenialHandler reports denials as warnings.
type LogDenialHandler struct {
	Logger *slog.Logger
}

func (h *LogDenialHandler) OnDenial(engine, instruction, pattern string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("instruction denied", "engine", engine, "instruction", instruction, "rule", pattern)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(engine, instruction, pattern string) {}
