package entities

import "fmt"

// ResultCode is the status every fallible entry point reports.
// Codes are densely numbered; the numeric values are part of the wire contract.
type ResultCode uint32

const (
	// CodeOK indicates the call completed successfully.
	CodeOK ResultCode = 0
	// CodeInvalidInstruction: the engine does not offer the requested instruction.
	CodeInvalidInstruction ResultCode = 1
	// CodeMissingParameter: a declared parameter was not supplied.
	CodeMissingParameter ResultCode = 2
	// CodeInvalidParameter: a supplied parameter is not declared.
	CodeInvalidParameter ResultCode = 3
	// CodeInvalidParameterType: a supplied parameter has the wrong kind.
	CodeInvalidParameterType ResultCode = 4
	// CodeEngineProcessing: the engine failed internally.
	CodeEngineProcessing ResultCode = 5
)

// String returns the symbolic name of the code.
func (c ResultCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidInstruction:
		return "ERROR_INVALID_INSTRUCTION"
	case CodeMissingParameter:
		return "ERROR_MISSING_PARAMETER"
	case CodeInvalidParameter:
		return "ERROR_INVALID_PARAMETER"
	case CodeInvalidParameterType:
		return "ERROR_INVALID_PARAMETER_TYPE"
	case CodeEngineProcessing:
		return "ERROR_ENGINE_PROCESSING"
	default:
		return fmt.Sprintf("ERROR_UNKNOWN(%d)", uint32(c))
	}
}

// Known reports whether the code is one this ABI revision defines.
func (c ResultCode) Known() bool {
	return c <= CodeEngineProcessing
}

// Result is the outcome of an entry-point call. Reason is nil for OK results.
type Result struct {
	Reason *string
	Code   ResultCode
}

// ResultOK returns the OK result.
func ResultOK() Result {
	return Result{Code: CodeOK}
}

// ResultError returns a non-OK result carrying the given diagnostic.
// A CodeOK argument yields ResultOK and drops the reason.
func ResultError(code ResultCode, reason string) Result {
	if code == CodeOK {
		return ResultOK()
	}
	return Result{Code: code, Reason: &reason}
}

// OK reports whether the result is successful.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

// ReasonString returns the diagnostic or the empty string.
func (r Result) ReasonString() string {
	if r.Reason == nil {
		return ""
	}
	return *r.Reason
}
