// Package errors provides the error taxonomy of the engine boundary.
// All error types support error unwrapping via errors.As() and errors.Is(),
// and every error an engine can report knows the Result code it maps to.
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/testangel/testangel-sdk/domain/entities"
)

// Sentinel errors.
var (
	// ErrEngineUnloaded is returned for calls on an engine instance that was closed.
	ErrEngineUnloaded = stdErrors.New("engine is unloaded")

	// ErrNullPointer is returned when a required pointer crossing the boundary is null.
	ErrNullPointer = stdErrors.New("null pointer")

	// ErrUnterminatedArray is returned when a sentinel-terminated array runs off
	// the end of memory or exceeds the element limit.
	ErrUnterminatedArray = stdErrors.New("array is not null-terminated")

	// ErrDoubleFree is returned when an allocation is released twice or was never made.
	ErrDoubleFree = stdErrors.New("pointer is not a live allocation")

	// ErrConfirmationDenied is returned when an operator declines to run an instruction.
	ErrConfirmationDenied = stdErrors.New("operator declined to run instruction")

	// ErrInstructionDenied is returned when the trust rules refuse an instruction.
	ErrInstructionDenied = stdErrors.New("instruction denied by trust rules")

	// ErrBadSignature is returned when an engine's plugin signature is not recognised.
	ErrBadSignature = stdErrors.New("unrecognised plugin signature")
)

// KindMismatchError is an alias to entities.KindMismatchError.
type KindMismatchError = entities.KindMismatchError

// ResultError is implemented by errors that map onto a specific Result code.
// New error types only need to implement this interface to be reported with
// the right code by ToResult.
type ResultError interface {
	error
	ResultCode() entities.ResultCode
}

// ToResult converts a Go error into the Result an entry point returns.
// A nil error is OK; errors that do not implement ResultError are reported
// as engine processing failures.
func ToResult(err error) entities.Result {
	if err == nil {
		return entities.ResultOK()
	}

	var re ResultError
	if stdErrors.As(err, &re) {
		code := re.ResultCode()
		if code == entities.CodeOK || !code.Known() {
			code = entities.CodeEngineProcessing
		}
		return entities.ResultError(code, err.Error())
	}

	return entities.ResultError(entities.CodeEngineProcessing, err.Error())
}

// InvalidInstructionError is reported for an instruction id the engine does
// not offer, or one that could not be read.
type InvalidInstructionError struct {
	Err       error
	ID        string
	Available []string
}

func (e *InvalidInstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("instruction id could not be read: %v", e.Err)
	}
	if len(e.Available) == 0 {
		return fmt.Sprintf("this engine does not provide `%s`; it has no instructions", e.ID)
	}
	quoted := make([]string, len(e.Available))
	for i, id := range e.Available {
		quoted[i] = "`" + id + "`"
	}
	return fmt.Sprintf("this engine does not provide `%s`; it supports %s", e.ID, strings.Join(quoted, ", "))
}

func (e *InvalidInstructionError) Unwrap() error {
	return e.Err
}

// ResultCode implements ResultError.
func (e *InvalidInstructionError) ResultCode() entities.ResultCode {
	return entities.CodeInvalidInstruction
}

// InvalidParameterError is reported for a supplied parameter the instruction
// does not declare, or one that could not be read at all.
type InvalidParameterError struct {
	Err       error
	Name      string
	Duplicate bool
}

func (e *InvalidParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parameter could not be read: %v", e.Err)
	}
	if e.Duplicate {
		return fmt.Sprintf("parameter `%s` was supplied more than once", e.Name)
	}
	return fmt.Sprintf("parameter `%s` was not expected", e.Name)
}

func (e *InvalidParameterError) Unwrap() error {
	return e.Err
}

// ResultCode implements ResultError.
func (e *InvalidParameterError) ResultCode() entities.ResultCode {
	return entities.CodeInvalidParameter
}

// MissingParameterError is reported for a declared parameter that was not supplied.
type MissingParameterError struct {
	ID   string
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("parameter `%s` was not supplied", e.ID)
}

// ResultCode implements ResultError.
func (e *MissingParameterError) ResultCode() entities.ResultCode {
	return entities.CodeMissingParameter
}

// InvalidParameterTypeError is reported for a parameter supplied with the
// wrong kind, or whose payload could not be decoded.
type InvalidParameterTypeError struct {
	Err  error
	ID   string
	Name string
	Want entities.ParameterKind
	Got  entities.ParameterKind
}

func (e *InvalidParameterTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parameter %s (`%s`) could not be decoded as %s: %v", e.Name, e.ID, e.Want, e.Err)
	}
	return fmt.Sprintf("parameter %s (`%s`) must be %s, got %s", e.Name, e.ID, e.Want, e.Got)
}

func (e *InvalidParameterTypeError) Unwrap() error {
	return e.Err
}

// ResultCode implements ResultError.
func (e *InvalidParameterTypeError) ResultCode() entities.ResultCode {
	return entities.CodeInvalidParameterType
}

// EngineProcessingError wraps a failure inside an instruction handler.
type EngineProcessingError struct {
	Err         error
	Instruction string
}

func (e *EngineProcessingError) Error() string {
	if e.Instruction != "" {
		return fmt.Sprintf("instruction `%s` failed: %v", e.Instruction, e.Err)
	}
	return fmt.Sprintf("engine processing failed: %v", e.Err)
}

func (e *EngineProcessingError) Unwrap() error {
	return e.Err
}

// ResultCode implements ResultError.
func (e *EngineProcessingError) ResultCode() entities.ResultCode {
	return entities.CodeEngineProcessing
}

// PanicError is a recovered panic raised inside an entry point.
type PanicError struct {
	Value any
	Entry string
	Stack []byte
}

func (e *PanicError) Error() string {
	var msg string
	switch v := e.Value.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("panic in %s: %s", e.Entry, msg)
}

// ResultCode implements ResultError.
func (e *PanicError) ResultCode() entities.ResultCode {
	return entities.CodeEngineProcessing
}

// OutputError is reported when a handler's outputs do not match the
// instruction's declared outputs.
type OutputError struct {
	Instruction string
	Output      string
	Want        entities.ParameterKind
	Got         entities.ParameterKind
	Undeclared  bool
	Missing     bool
}

func (e *OutputError) Error() string {
	if e.Missing {
		return fmt.Sprintf("instruction `%s` did not produce output `%s`", e.Instruction, e.Output)
	}
	if e.Undeclared {
		return fmt.Sprintf("instruction `%s` produced undeclared output `%s`", e.Instruction, e.Output)
	}
	return fmt.Sprintf("instruction `%s` produced output `%s` as %s, declared %s", e.Instruction, e.Output, e.Got, e.Want)
}

// ResultCode implements ResultError.
func (e *OutputError) ResultCode() entities.ResultCode {
	return entities.CodeEngineProcessing
}

// MemoryError represents an engine allocation failure.
type MemoryError struct {
	Requested int // Requested allocation size
	Current   int // Current total allocated
	Limit     int // Maximum allowed
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory allocation failed: requested %d bytes, current %d bytes, limit %d bytes",
		e.Requested, e.Current, e.Limit)
}

// ResultCode implements ResultError.
func (e *MemoryError) ResultCode() entities.ResultCode {
	return entities.CodeEngineProcessing
}

// AccessError is reported when a pointer refers outside the engine's memory.
type AccessError struct {
	Op     string
	Ptr    uint32
	Length uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s out of bounds: ptr=0x%x len=%d", e.Op, e.Ptr, e.Length)
}

// ResultCode implements ResultError.
func (e *AccessError) ResultCode() entities.ResultCode {
	return entities.CodeEngineProcessing
}

// EngineError is the host-side view of a non-OK Result returned by an engine.
type EngineError struct {
	Reason string
	Entry  string
	Code   entities.ResultCode
}

func (e *EngineError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s returned %s", e.Entry, e.Code)
	}
	return fmt.Sprintf("%s returned %s: %s", e.Entry, e.Code, e.Reason)
}

// ResultCode implements ResultError.
func (e *EngineError) ResultCode() entities.ResultCode {
	return e.Code
}

// Generic reports whether the code is unknown to this ABI revision and must
// be treated as a generic engine failure.
func (e *EngineError) Generic() bool {
	return !e.Code.Known()
}

// IsCode reports whether err is an EngineError with the given code.
func IsCode(err error, code entities.ResultCode) bool {
	var ee *EngineError
	if stdErrors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IncompatibleEngineError is returned when an engine declares an IPC version
// the host does not accept.
type IncompatibleEngineError struct {
	Engine   string
	Accepted []uint32
	Declared uint32
}

func (e *IncompatibleEngineError) Error() string {
	return fmt.Sprintf("engine %s speaks IPC version %d, host accepts %v", e.Engine, e.Declared, e.Accepted)
}

// ContractError is returned when an engine breaks the ownership or layout
// rules of the ABI (for example an unterminated array).
type ContractError struct {
	Err   error
	Entry string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("engine violated the ABI in %s: %v", e.Entry, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
