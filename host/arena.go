package host

import (
	"context"
	"fmt"

	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/internal/abi"
)

// moduleArena allocates host inputs in engine memory through the engine's
// ta_alloc and ta_dealloc exports.
type moduleArena struct {
	ports.Memory
	ctx context.Context
	mod ports.EngineModule
}

func newModuleArena(ctx context.Context, mod ports.EngineModule) *moduleArena {
	return &moduleArena{Memory: mod.Memory(), ctx: ctx, mod: mod}
}

// Allocate implements ports.Arena.
func (a *moduleArena) Allocate(size uint32) (uint32, error) {
	ret, err := a.mod.Call(a.ctx, abi.ExportAlloc, uint64(size))
	if err != nil {
		return 0, err
	}
	if len(ret) == 0 || ret[0] == 0 {
		return 0, &domainerrors.MemoryError{Requested: int(size)}
	}
	return uint32(ret[0]), nil //nolint:gosec // G115: WASM32 pointers are always 32-bit
}

// Free implements ports.Arena.
func (a *moduleArena) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, err := a.mod.Call(a.ctx, abi.ExportDealloc, uint64(ptr)); err != nil {
		return fmt.Errorf("dealloc 0x%x: %w", ptr, err)
	}
	return nil
}
