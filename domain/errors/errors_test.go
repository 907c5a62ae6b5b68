package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
)

func TestToResult(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   entities.ResultCode
		reason string
	}{
		{
			name: "nil is OK",
			code: entities.CodeOK,
		},
		{
			name:   "unknown instruction",
			err:    &InvalidInstructionError{ID: "demo-sub", Available: []string{"demo-add", "demo-mul"}},
			code:   entities.CodeInvalidInstruction,
			reason: "this engine does not provide `demo-sub`; it supports `demo-add`, `demo-mul`",
		},
		{
			name:   "engine without instructions",
			err:    &InvalidInstructionError{ID: "x"},
			code:   entities.CodeInvalidInstruction,
			reason: "this engine does not provide `x`; it has no instructions",
		},
		{
			name:   "missing parameter",
			err:    &MissingParameterError{ID: "b", Name: "B"},
			code:   entities.CodeMissingParameter,
			reason: "parameter `b` was not supplied",
		},
		{
			name:   "unexpected parameter",
			err:    &InvalidParameterError{Name: "c"},
			code:   entities.CodeInvalidParameter,
			reason: "parameter `c` was not expected",
		},
		{
			name:   "duplicate parameter",
			err:    &InvalidParameterError{Name: "a", Duplicate: true},
			code:   entities.CodeInvalidParameter,
			reason: "parameter `a` was supplied more than once",
		},
		{
			name: "wrong kind",
			err: &InvalidParameterTypeError{
				ID: "a", Name: "A", Want: entities.KindInteger, Got: entities.KindString,
			},
			code:   entities.CodeInvalidParameterType,
			reason: "parameter A (`a`) must be INTEGER, got STRING",
		},
		{
			name:   "handler failure",
			err:    &EngineProcessingError{Instruction: "web-click", Err: errors.New("no element")},
			code:   entities.CodeEngineProcessing,
			reason: "instruction `web-click` failed: no element",
		},
		{
			name:   "plain error",
			err:    errors.New("disk full"),
			code:   entities.CodeEngineProcessing,
			reason: "disk full",
		},
		{
			name:   "wrapped result error keeps its code",
			err:    fmt.Errorf("binding: %w", &MissingParameterError{ID: "b"}),
			code:   entities.CodeMissingParameter,
			reason: "binding: parameter `b` was not supplied",
		},
		{
			name:   "engine error with an OK code is not OK",
			err:    &EngineError{Entry: "execute", Code: entities.CodeOK},
			code:   entities.CodeEngineProcessing,
			reason: "execute returned OK",
		},
		{
			name:   "unknown code is generic",
			err:    &EngineError{Entry: "execute", Code: 42, Reason: "new failure"},
			code:   entities.CodeEngineProcessing,
			reason: "execute returned ERROR_UNKNOWN(42): new failure",
		},
		{
			name:   "panic",
			err:    &PanicError{Entry: "execute", Value: "boom"},
			code:   entities.CodeEngineProcessing,
			reason: "panic in execute: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ToResult(tt.err)
			assert.Equal(t, tt.code, r.Code)
			if tt.err == nil {
				assert.Nil(t, r.Reason)
				return
			}
			require.NotNil(t, r.Reason)
			assert.Equal(t, tt.reason, *r.Reason)
		})
	}
}

func TestPanicError_Values(t *testing.T) {
	assert.Equal(t, "panic in execute: bad", (&PanicError{Entry: "execute", Value: errors.New("bad")}).Error())
	assert.Equal(t, "panic in execute: 7", (&PanicError{Entry: "execute", Value: 7}).Error())
}

func TestOutputError(t *testing.T) {
	tests := []struct {
		err  *OutputError
		want string
	}{
		{
			err:  &OutputError{Instruction: "demo-add", Output: "result", Missing: true},
			want: "instruction `demo-add` did not produce output `result`",
		},
		{
			err:  &OutputError{Instruction: "demo-add", Output: "extra", Undeclared: true},
			want: "instruction `demo-add` produced undeclared output `extra`",
		},
		{
			err:  &OutputError{Instruction: "demo-add", Output: "result", Want: entities.KindInteger, Got: entities.KindDecimal},
			want: "instruction `demo-add` produced output `result` as DECIMAL, declared INTEGER",
		},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, entities.CodeEngineProcessing, tt.err.ResultCode())
		})
	}
}

func TestEngineError(t *testing.T) {
	err := fmt.Errorf("run: %w", &EngineError{Entry: "execute", Code: entities.CodeMissingParameter, Reason: "parameter `b` was not supplied"})

	assert.True(t, IsCode(err, entities.CodeMissingParameter))
	assert.False(t, IsCode(err, entities.CodeInvalidParameter))
	assert.False(t, IsCode(errors.New("plain"), entities.CodeEngineProcessing))

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.False(t, ee.Generic())
	assert.True(t, (&EngineError{Code: 6}).Generic())
	assert.Equal(t, "execute returned ERROR_MISSING_PARAMETER: parameter `b` was not supplied", ee.Error())
}

func TestIncompatibleEngineError(t *testing.T) {
	err := &IncompatibleEngineError{Engine: "DemoC", Accepted: []uint32{3}, Declared: 2}
	assert.Equal(t, "engine DemoC speaks IPC version 2, host accepts [3]", err.Error())
}

func TestConfigError(t *testing.T) {
	baseErr := fmt.Errorf("invalid format")
	err := &ConfigError{
		Field: "engine_dir",
		Err:   baseErr,
	}

	assert.Equal(t, "config validation failed for field 'engine_dir': invalid format", err.Error())
	assert.True(t, errors.Is(err, baseErr))

	var confErr *ConfigError
	require.True(t, errors.As(err, &confErr))
	assert.Equal(t, "engine_dir", confErr.Field)
}

func TestConfigError_NoField(t *testing.T) {
	baseErr := fmt.Errorf("missing required fields")
	err := &ConfigError{
		Err: baseErr,
	}

	assert.Equal(t, "config validation failed: missing required fields", err.Error())
}

func TestMemoryError(t *testing.T) {
	err := &MemoryError{
		Requested: 10 * 1024 * 1024,
		Current:   95 * 1024 * 1024,
		Limit:     100 * 1024 * 1024,
	}

	assert.Equal(t, "memory allocation failed: requested 10485760 bytes, current 99614720 bytes, limit 104857600 bytes", err.Error())
	assert.Equal(t, entities.CodeEngineProcessing, ToResult(err).Code)

	var memErr *MemoryError
	require.True(t, errors.As(err, &memErr))
	assert.Equal(t, 10*1024*1024, memErr.Requested)
	assert.Equal(t, 100*1024*1024, memErr.Limit)
}

func TestAccessError(t *testing.T) {
	err := &AccessError{Op: "read", Ptr: 0x10, Length: 4}
	assert.Equal(t, "read out of bounds: ptr=0x10 len=4", err.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := fmt.Errorf("base error")

	tests := []struct {
		name string
		err  error
	}{
		{"InvalidInstructionError", &InvalidInstructionError{Err: baseErr}},
		{"InvalidParameterError", &InvalidParameterError{Err: baseErr}},
		{"InvalidParameterTypeError", &InvalidParameterTypeError{Err: baseErr}},
		{"EngineProcessingError", &EngineProcessingError{Err: baseErr}},
		{"ContractError", &ContractError{Entry: "execute", Err: baseErr}},
		{"ConfigError", &ConfigError{Field: "test", Err: baseErr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, baseErr), "errors.Is should find base error")
			unwrapped := errors.Unwrap(tt.err)
			assert.Equal(t, baseErr, unwrapped, "errors.Unwrap should return base error")
		})
	}
}
