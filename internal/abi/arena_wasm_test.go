//go:build wasip1

package abi

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

func TestLinearArena_AllocateFree(t *testing.T) {
	a := NewLinearArena()

	ptr, err := a.Allocate(64)
	require.NoError(t, err)
	require.NotZero(t, ptr)

	count, total := a.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 64, total)

	require.NoError(t, a.Free(ptr))
	assert.ErrorIs(t, a.Free(ptr), domainerrors.ErrDoubleFree)
	assert.NoError(t, a.Free(0))

	count, total = a.Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestLinearArena_PointersAreAddresses(t *testing.T) {
	a := NewLinearArena()
	ptr, err := a.Allocate(8)
	require.NoError(t, err)
	defer func() { _ = a.Free(ptr) }()

	require.True(t, a.WriteUint32Le(ptr, 0xdeadbeef))

	// The offset is a real linear memory address in this module.
	raw := *(*uint32)(unsafe.Pointer(uintptr(ptr))) //nolint:gosec // G103: reading back our own allocation
	assert.Equal(t, uint32(0xdeadbeef), raw)
}

func TestLinearArena_AccessIsBoundedByAllocations(t *testing.T) {
	a := NewLinearArena()
	ptr, err := a.Allocate(4)
	require.NoError(t, err)

	assert.True(t, a.WriteByte(ptr+3, 7))
	b, ok := a.ReadByte(ptr + 3)
	require.True(t, ok)
	assert.Equal(t, byte(7), b)

	_, ok = a.ReadUint32Le(ptr + 1)
	assert.False(t, ok, "read crossing the end of an allocation")
	assert.False(t, a.WriteFloat64Le(ptr, 1.5), "write larger than the allocation")
	_, ok = a.ReadByte(ptr - 1)
	assert.False(t, ok, "read before the first allocation")

	require.NoError(t, a.Free(ptr))
	_, ok = a.ReadByte(ptr)
	assert.False(t, ok, "read after free")
}

func TestLinearArena_MemoryLimit(t *testing.T) {
	a := NewLinearArena(WithMaxTotalAllocations(32))

	_, err := a.Allocate(24)
	require.NoError(t, err)
	_, err = a.Allocate(16)

	var memErr *domainerrors.MemoryError
	require.True(t, errors.As(err, &memErr))
	assert.Equal(t, 24, memErr.Current)
	assert.Equal(t, 32, memErr.Limit)

	a.FreeAll()
	count, _ := a.Stats()
	assert.Zero(t, count)
}

func TestLinearArena_Codec(t *testing.T) {
	a := NewLinearArena()
	values := []entities.NamedValue{
		entities.Named("result", entities.IntegerValue(5)),
		entities.Named("ratio", entities.DecimalValue(0.25)),
		entities.Named("ok", entities.BooleanValue(true)),
		entities.Named("text", entities.StringValue("héllo")),
	}

	arr, err := WriteNamedValueArray(a, values)
	require.NoError(t, err)
	got, err := ReadNamedValueArray(a, arr)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	require.NoError(t, FreeNamedValueArray(a, arr))
	count, _ := a.Stats()
	assert.Zero(t, count)
}
