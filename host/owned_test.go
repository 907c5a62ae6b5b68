package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/engine"
	"github.com/testangel/testangel-sdk/internal/abi"
)

func TestOwned_Release(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(engine.Info{FriendlyName: "Owned", LuaName: "Owned", Version: "1.0.0"})
	require.NoError(t, err)
	mod := engine.NewModule(e)

	ptr, err := abi.WriteResult(mod.Memory().(*abi.Heap), entities.ResultOK())
	require.NoError(t, err)

	o := newOwned(mod, ptr, abi.ExportFreeResult)
	assert.Equal(t, ptr, o.Ptr())
	assert.False(t, o.Released())

	require.NoError(t, o.Release(ctx))
	assert.True(t, o.Released())
	assert.Zero(t, o.Ptr())

	// A second release must not reach the engine, which would report a
	// double free.
	require.NoError(t, o.Release(ctx))

	count, _ := mod.Stats()
	assert.Zero(t, count)
}

func TestOwned_NullIsNeverReleased(t *testing.T) {
	e, err := engine.New(engine.Info{FriendlyName: "Owned", LuaName: "Owned", Version: "1.0.0"})
	require.NoError(t, err)
	mod := engine.NewModule(e)
	require.NoError(t, mod.Close(context.Background()))

	// The module is closed, so any call would fail.
	o := newOwned(mod, 0, abi.ExportFreeResult)
	assert.NoError(t, o.Release(context.Background()))
	assert.True(t, o.Released())
}

func TestOwned_ReleaseError(t *testing.T) {
	e, err := engine.New(engine.Info{FriendlyName: "Owned", LuaName: "Owned", Version: "1.0.0"})
	require.NoError(t, err)
	mod := engine.NewModule(e)

	o := newOwned(mod, 0xdead, abi.ExportFreeResult)
	err = o.Release(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ta_free_result(0xdead)")
}
