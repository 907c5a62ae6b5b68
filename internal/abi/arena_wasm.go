//go:build wasip1

package abi

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"unsafe"

	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

// LinearArena allocates directly in the WASM linear memory of the running
// engine. Offsets handed out are real addresses, so the host reads them
// through the module's memory without any copying.
//
// Each allocation is a Go byte slice kept in a map, which pins it against
// the garbage collector until it is freed. All reads and writes go through
// those slices, so only tracked memory is ever touched.
type LinearArena struct {
	blocks         map[uint32][]byte
	starts         []uint32 // sorted keys of blocks
	limit          int
	totalAllocated int
	mu             sync.Mutex
}

// NewLinearArena creates an arena over the engine's linear memory.
func NewLinearArena(opts ...HeapOption) *LinearArena {
	cfg := defaultHeapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LinearArena{
		blocks: make(map[uint32][]byte),
		limit:  cfg.maxTotalAllocations,
	}
}

// Allocate reserves size zeroed bytes and pins them.
func (a *LinearArena) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.totalAllocated+int(size) > a.limit {
		return 0, &domainerrors.MemoryError{
			Requested: int(size),
			Current:   a.totalAllocated,
			Limit:     a.limit,
		}
	}

	buf := make([]byte, size)
	//nolint:gosec // G103: linear memory addresses are 32-bit offsets
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	a.blocks[ptr] = buf
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= ptr })
	a.starts = append(a.starts, 0)
	copy(a.starts[i+1:], a.starts[i:])
	a.starts[i] = ptr
	a.totalAllocated += int(size)
	return ptr, nil
}

// Free unpins an allocation so the collector can reclaim it.
func (a *LinearArena) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.blocks[ptr]
	if !ok {
		return fmt.Errorf("free 0x%x: %w", ptr, domainerrors.ErrDoubleFree)
	}
	delete(a.blocks, ptr)
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= ptr })
	a.starts = append(a.starts[:i], a.starts[i+1:]...)
	a.totalAllocated -= len(buf)
	return nil
}

// FreeAll unpins every allocation.
func (a *LinearArena) FreeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blocks = make(map[uint32][]byte)
	a.starts = nil
	a.totalAllocated = 0
}

// Stats returns the number of live allocations and their total size.
func (a *LinearArena) Stats() (allocations int, bytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blocks), a.totalAllocated
}

// Size reports the whole 32-bit address space; accesses are bounded by the
// tracked allocations instead.
func (a *LinearArena) Size() uint32 {
	return math.MaxUint32
}

// span returns the tracked bytes [offset, offset+n).
func (a *LinearArena) span(offset, n uint32) ([]byte, bool) {
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] > offset }) - 1
	if i < 0 {
		return nil, false
	}
	start := a.starts[i]
	buf := a.blocks[start]
	rel := uint64(offset - start)
	if rel+uint64(n) > uint64(len(buf)) {
		return nil, false
	}
	return buf[rel : rel+uint64(n)], true
}

// ReadByte reads a byte at offset.
func (a *LinearArena) ReadByte(offset uint32) (byte, bool) {
	b, ok := a.Read(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (a *LinearArena) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := a.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// ReadFloat64Le reads a little-endian float64 at offset.
func (a *LinearArena) ReadFloat64Le(offset uint32) (float64, bool) {
	b, ok := a.Read(offset, 8)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
}

// Read returns a view of tracked memory.
func (a *LinearArena) Read(offset, byteCount uint32) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span(offset, byteCount)
}

// WriteByte writes a byte at offset.
func (a *LinearArena) WriteByte(offset uint32, v byte) bool {
	return a.Write(offset, []byte{v})
}

// WriteUint32Le writes a little-endian uint32 at offset.
func (a *LinearArena) WriteUint32Le(offset, v uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return a.Write(offset, b[:])
}

// WriteFloat64Le writes a little-endian float64 at offset.
func (a *LinearArena) WriteFloat64Le(offset uint32, v float64) bool {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return a.Write(offset, b[:])
}

// Write copies v into tracked memory.
func (a *LinearArena) Write(offset uint32, v []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	dst, ok := a.span(offset, uint32(len(v))) //nolint:gosec // G115: writes are bounded by allocation size
	if !ok {
		return false
	}
	copy(dst, v)
	return true
}
