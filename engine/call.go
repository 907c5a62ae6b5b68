package engine

import (
	"log/slog"

	"github.com/testangel/testangel-sdk/domain/entities"
)

// Call is the context of one instruction execution.
type Call struct {
	// State is the engine state created by the WithState factory, or nil.
	State any

	logger *slog.Logger

	// Params are the validated parameters.
	Params Params

	outputs  []entities.NamedValue
	evidence []entities.Evidence

	// Instruction is the metadata of the running instruction.
	Instruction entities.InstructionMetadata

	// DryRun asks the handler to perform no side effects but still return
	// representative outputs and evidence. PURE instructions may ignore it.
	DryRun bool
}

// NewCall builds a Call for unit tests of handlers.
func NewCall(meta entities.InstructionMetadata, params Params, dryRun bool) *Call {
	return &Call{
		Instruction: meta,
		Params:      params,
		DryRun:      dryRun,
		logger:      slog.New(slog.DiscardHandler),
	}
}

// SetOutput records an output value, replacing any earlier value for id.
func (c *Call) SetOutput(id string, v entities.Value) {
	for i := range c.outputs {
		if c.outputs[i].Name == id {
			c.outputs[i].Value = v
			return
		}
	}
	c.outputs = append(c.outputs, entities.Named(id, v))
}

// AddEvidence records an evidence item.
func (c *Call) AddEvidence(ev entities.Evidence) {
	c.evidence = append(c.evidence, ev)
}

// Outputs returns the outputs recorded so far.
func (c *Call) Outputs() []entities.NamedValue {
	return c.outputs
}

// Evidence returns the evidence recorded so far.
func (c *Call) Evidence() []entities.Evidence {
	return c.evidence
}

// Logger returns a logger that writes to the host, tagged with the
// instruction id.
func (c *Call) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
