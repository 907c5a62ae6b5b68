// Package engine is the SDK for writing TestAngel engines in Go.
//
// An Engine is a set of instructions, each declared by its metadata and
// implemented by a HandlerFunc. The Engine validates parameters against the
// declarations before a handler runs and checks the handler's outputs
// afterwards, so handlers only deal with well-typed input.
//
// A Surface exposes an Engine through the ABI entry points; Register wires
// the Surface to the WASM exports when compiled for wasip1.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

// Info identifies an engine. The IPC version is filled in by the SDK.
type Info struct {
	FriendlyName string
	LuaName      string
	Version      string
	Description  string
}

// HandlerFunc implements one instruction. Returning an error fails the
// execution; errors implementing errors.ResultError keep their code, all
// others are reported as engine processing failures.
type HandlerFunc func(ctx context.Context, call *Call) error

// Option configures an Engine.
type Option func(*Engine) error

type instruction struct {
	handler HandlerFunc
	meta    entities.InstructionMetadata
}

// Engine holds the instructions of one engine and any state they share.
// Calls are serialized: one instruction runs at a time.
type Engine struct {
	newState     func() any
	state        any
	logger       *slog.Logger
	byID         map[string]*instruction
	meta         entities.EngineMetadata
	instructions []*instruction
	mu           sync.Mutex
}

// New creates an Engine. Metadata of the engine and of every instruction is
// validated, and instruction ids must be unique.
func New(info Info, opts ...Option) (*Engine, error) {
	e := &Engine{
		meta: entities.EngineMetadata{
			IPCVersion:   entities.CurrentIPCVersion,
			FriendlyName: info.FriendlyName,
			LuaName:      info.LuaName,
			Version:      info.Version,
			Description:  info.Description,
		},
		byID:   make(map[string]*instruction),
		logger: slog.New(slog.DiscardHandler),
	}
	if err := e.meta.Validate(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.newState != nil {
		e.state = e.newState()
	}
	return e, nil
}

// MustNew is like New but panics on error. Use it in package-level variables.
func MustNew(info Info, opts ...Option) *Engine {
	e, err := New(info, opts...)
	if err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}
	return e
}

// WithInstruction adds an instruction.
func WithInstruction(meta entities.InstructionMetadata, handler HandlerFunc) Option {
	return func(e *Engine) error {
		if handler == nil {
			return fmt.Errorf("instruction %q has no handler", meta.ID)
		}
		if err := meta.Validate(); err != nil {
			return err
		}
		if _, exists := e.byID[meta.ID]; exists {
			return fmt.Errorf("instruction %q is declared twice", meta.ID)
		}
		inst := &instruction{meta: cloneInstruction(meta), handler: handler}
		e.instructions = append(e.instructions, inst)
		e.byID[meta.ID] = inst
		return nil
	}
}

// WithState sets a factory for state shared by the instructions. The state
// is created by New and recreated by ResetState; handlers reach it through
// Call.State.
func WithState(factory func() any) Option {
	return func(e *Engine) error {
		e.newState = factory
		return nil
	}
}

// WithLogger sets the logger handed to handlers. A Surface replaces it with
// one that writes to the host.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// Metadata returns the engine metadata.
func (e *Engine) Metadata() entities.EngineMetadata {
	return e.meta
}

// Instructions returns the metadata of every instruction in declaration order.
func (e *Engine) Instructions() []entities.InstructionMetadata {
	out := make([]entities.InstructionMetadata, len(e.instructions))
	for i, inst := range e.instructions {
		out[i] = cloneInstruction(inst.meta)
	}
	return out
}

// Instruction returns the metadata of one instruction.
func (e *Engine) Instruction(id string) (entities.InstructionMetadata, bool) {
	inst, ok := e.byID[id]
	if !ok {
		return entities.InstructionMetadata{}, false
	}
	return cloneInstruction(inst.meta), true
}

// Logger returns the logger handed to handlers.
func (e *Engine) Logger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logger
}

// SetLogger replaces the logger handed to handlers.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// ResetState discards state accumulated by previous executions.
func (e *Engine) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.newState != nil {
		e.state = e.newState()
	}
}

// Output is what a successful execution produced.
type Output struct {
	Values   []entities.NamedValue
	Evidence []entities.Evidence
}

// Value returns the output with the given id.
func (o *Output) Value(id string) (entities.Value, bool) {
	for _, nv := range o.Values {
		if nv.Name == id {
			return nv.Value, true
		}
	}
	return entities.Value{}, false
}

// RunInstruction validates params against the instruction's declaration,
// runs its handler and checks the outputs. It is the Go-level equivalent of
// the execute entry point and is convenient in engine unit tests.
func (e *Engine) RunInstruction(ctx context.Context, id string, params []entities.NamedValue, dryRun bool) (*Output, error) {
	supplied := make([]suppliedParam, len(params))
	for i, nv := range params {
		supplied[i] = suppliedParam{value: nv}
	}
	return e.run(ctx, id, supplied, dryRun)
}

func (e *Engine) run(ctx context.Context, id string, supplied []suppliedParam, dryRun bool) (out *Output, err error) {
	inst, ok := e.byID[id]
	if !ok {
		return nil, &domainerrors.InvalidInstructionError{ID: id, Available: e.instructionIDs()}
	}

	params, err := bindParameters(inst.meta, supplied)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	call := &Call{
		Instruction: inst.meta,
		Params:      params,
		DryRun:      dryRun,
		State:       e.state,
		logger:      e.logger.With("instruction", id),
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &domainerrors.PanicError{Value: r, Entry: id, Stack: debug.Stack()}
		}
	}()

	if err := inst.handler(ctx, call); err != nil {
		var re domainerrors.ResultError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &domainerrors.EngineProcessingError{Err: err, Instruction: id}
	}

	values, err := checkOutputs(inst.meta, call.outputs)
	if err != nil {
		return nil, err
	}
	return &Output{Values: values, Evidence: slices.Clone(call.evidence)}, nil
}

func (e *Engine) instructionIDs() []string {
	ids := make([]string, len(e.instructions))
	for i, inst := range e.instructions {
		ids[i] = inst.meta.ID
	}
	return ids
}

// checkOutputs returns the outputs in declaration order. Undeclared,
// wrongly typed or missing outputs fail the execution.
func checkOutputs(meta entities.InstructionMetadata, outputs []entities.NamedValue) ([]entities.NamedValue, error) {
	byID := make(map[string]entities.Value, len(outputs))
	for _, nv := range outputs {
		desc, ok := meta.Output(nv.Name)
		if !ok {
			return nil, &domainerrors.OutputError{Instruction: meta.ID, Output: nv.Name, Undeclared: true}
		}
		if nv.Value.Kind() != desc.Kind {
			return nil, &domainerrors.OutputError{Instruction: meta.ID, Output: nv.Name, Want: desc.Kind, Got: nv.Value.Kind()}
		}
		byID[nv.Name] = nv.Value
	}
	values := make([]entities.NamedValue, 0, len(meta.Outputs))
	for _, desc := range meta.Outputs {
		v, ok := byID[desc.ID]
		if !ok {
			return nil, &domainerrors.OutputError{Instruction: meta.ID, Output: desc.ID, Want: desc.Kind, Missing: true}
		}
		values = append(values, entities.Named(desc.ID, v))
	}
	return values, nil
}

func cloneInstruction(m entities.InstructionMetadata) entities.InstructionMetadata {
	m.Parameters = slices.Clone(m.Parameters)
	m.Outputs = slices.Clone(m.Outputs)
	return m
}
