// Package testutil provides assertions shared by engine and host tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

// ValueSource is an execution result outputs can be looked up in.
type ValueSource interface {
	Value(id string) (entities.Value, bool)
}

// AllocationCounter reports live allocations, like engine.Module.
type AllocationCounter interface {
	Stats() (allocations int, bytes int)
}

// AssertCode asserts that err maps onto the result code want. A nil error
// maps onto OK.
func AssertCode(t *testing.T, err error, want entities.ResultCode, msgAndArgs ...interface{}) bool {
	t.Helper()
	return assert.Equal(t, want.String(), domainerrors.ToResult(err).Code.String(), msgAndArgs...)
}

// AssertOutput asserts that out holds id with exactly the value want.
func AssertOutput(t *testing.T, out ValueSource, id string, want entities.Value) bool {
	t.Helper()
	got, ok := out.Value(id)
	if !assert.True(t, ok, "output %q missing", id) {
		return false
	}
	return assert.True(t, want.Equal(got), "output %q: want %s, got %s", id, want, got)
}

// RequireNoLeaks fails the test if any allocation is still live.
func RequireNoLeaks(t require.TestingT, c AllocationCounter) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	allocations, bytes := c.Stats()
	require.Zero(t, allocations, "memory leaked: %d allocations (%d bytes)", allocations, bytes)
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
