package host

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/testangel/testangel-sdk/domain/ports"
)

// Owned is a pointer to a structure the engine allocated, paired with the
// export that releases it. Release is idempotent and a null pointer is
// never passed to the engine.
type Owned struct {
	mod      ports.EngineModule
	release  string
	ptr      uint32
	released atomic.Bool
}

func newOwned(mod ports.EngineModule, ptr uint32, release string) *Owned {
	return &Owned{mod: mod, ptr: ptr, release: release}
}

// Ptr returns the pointer, or 0 once released.
func (o *Owned) Ptr() uint32 {
	if o.released.Load() {
		return 0
	}
	return o.ptr
}

// Released reports whether Release has been called.
func (o *Owned) Released() bool {
	return o.released.Load()
}

// Release hands the structure back to the engine.
func (o *Owned) Release(ctx context.Context) error {
	if o.released.Swap(true) || o.ptr == 0 {
		return nil
	}
	if _, err := o.mod.Call(ctx, o.release, uint64(o.ptr)); err != nil {
		return fmt.Errorf("%s(0x%x): %w", o.release, o.ptr, err)
	}
	return nil
}
