package abi

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

// DefaultMaxTotalAllocations is the default cap on live bytes in a Heap.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

const (
	heapAlign       = 8
	heapInitialSize = 64 * 1024
)

// HeapOption configures a Heap.
type HeapOption func(*heapConfig)

type heapConfig struct {
	maxTotalAllocations int
	initialSize         int
}

func defaultHeapConfig() heapConfig {
	return heapConfig{
		maxTotalAllocations: DefaultMaxTotalAllocations,
		initialSize:         heapInitialSize,
	}
}

// WithMaxTotalAllocations caps the number of live bytes. Non-positive
// values are ignored.
func WithMaxTotalAllocations(limit int) HeapOption {
	return func(c *heapConfig) {
		if limit > 0 {
			c.maxTotalAllocations = limit
		}
	}
}

// WithInitialSize sets the initial backing size in bytes.
func WithInitialSize(size int) HeapOption {
	return func(c *heapConfig) {
		if size > 0 {
			c.initialSize = size
		}
	}
}

type block struct {
	ptr  uint32
	size uint32
}

// Heap is an in-process engine address space with a tracking allocator.
// It implements ports.Arena. Every live allocation is recorded so leaks and
// double frees are observable, which makes it the leak detector for tests
// of the ownership protocol.
//
// Offsets start above zero so 0 is never a valid allocation.
type Heap struct {
	mem            []byte
	live           map[uint32]uint32 // ptr -> size
	free           []block           // released blocks, sorted by ptr
	config         heapConfig
	next           uint32
	totalAllocated int
	mu             sync.Mutex
}

// NewHeap creates an empty Heap.
func NewHeap(opts ...HeapOption) *Heap {
	cfg := defaultHeapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Heap{
		mem:    make([]byte, cfg.initialSize),
		live:   make(map[uint32]uint32),
		config: cfg,
		next:   heapAlign,
	}
}

// Allocate reserves size zeroed bytes.
func (h *Heap) Allocate(size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// The limit applies to the rounded size, which is what gets accounted.
	wide := (uint64(size) + heapAlign - 1) &^ (heapAlign - 1)
	if uint64(h.totalAllocated)+wide > uint64(h.config.maxTotalAllocations) { //nolint:gosec // G115: both are non-negative
		return 0, &domainerrors.MemoryError{
			Requested: int(size),
			Current:   h.totalAllocated,
			Limit:     h.config.maxTotalAllocations,
		}
	}

	rounded := uint32(wide) //nolint:gosec // G115: checked against MaxUint32 below before use as an offset
	ptr, ok := h.takeFree(rounded)
	if !ok {
		if uint64(h.next)+wide > math.MaxUint32 {
			return 0, &domainerrors.MemoryError{
				Requested: int(size),
				Current:   h.totalAllocated,
				Limit:     h.config.maxTotalAllocations,
			}
		}
		ptr = h.next
		h.next += rounded
		h.grow(int(h.next))
	}

	clear(h.mem[ptr : ptr+rounded])
	h.live[ptr] = rounded
	h.totalAllocated += int(rounded)
	return ptr, nil
}

// Free releases an allocation. Freeing 0 is a no-op.
func (h *Heap) Free(ptr uint32) error {
	if ptr == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.live[ptr]
	if !ok {
		return fmt.Errorf("free 0x%x: %w", ptr, domainerrors.ErrDoubleFree)
	}
	delete(h.live, ptr)
	h.totalAllocated -= int(size)
	h.releaseBlock(block{ptr: ptr, size: size})
	return nil
}

// FreeAll releases every live allocation. This is typically used to tear
// down an engine instance.
func (h *Heap) FreeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.live = make(map[uint32]uint32)
	h.free = nil
	h.next = heapAlign
	h.totalAllocated = 0
}

// Stats returns the number of live allocations and their total size.
func (h *Heap) Stats() (allocations int, bytes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live), h.totalAllocated
}

// Live returns the offsets of all live allocations in ascending order.
func (h *Heap) Live() []uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	ptrs := make([]uint32, 0, len(h.live))
	for p := range h.live {
		ptrs = append(ptrs, p)
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })
	return ptrs
}

// IsLive reports whether ptr is the start of a live allocation.
func (h *Heap) IsLive(ptr uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[ptr]
	return ok
}

// Size returns the number of addressable bytes.
func (h *Heap) Size() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint32(len(h.mem)) //nolint:gosec // G115: bounded by the MaxUint32 check in Allocate
}

// ReadByte reads a byte at offset.
func (h *Heap) ReadByte(offset uint32) (byte, bool) {
	b, ok := h.Read(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (h *Heap) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := h.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// ReadFloat64Le reads a little-endian float64 at offset.
func (h *Heap) ReadFloat64Le(offset uint32) (float64, bool) {
	b, ok := h.Read(offset, 8)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
}

// Read returns a view of byteCount bytes at offset.
func (h *Heap) Read(offset, byteCount uint32) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := uint64(offset) + uint64(byteCount)
	if offset == 0 || end > uint64(len(h.mem)) {
		return nil, false
	}
	return h.mem[offset:end:end], true
}

// WriteByte writes a byte at offset.
func (h *Heap) WriteByte(offset uint32, v byte) bool {
	return h.Write(offset, []byte{v})
}

// WriteUint32Le writes a little-endian uint32 at offset.
func (h *Heap) WriteUint32Le(offset, v uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return h.Write(offset, b[:])
}

// WriteFloat64Le writes a little-endian float64 at offset.
func (h *Heap) WriteFloat64Le(offset uint32, v float64) bool {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return h.Write(offset, b[:])
}

// Write copies v to offset.
func (h *Heap) Write(offset uint32, v []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := uint64(offset) + uint64(len(v))
	if offset == 0 || end > uint64(len(h.mem)) {
		return false
	}
	copy(h.mem[offset:end], v)
	return true
}

// takeFree returns the first released block large enough for size,
// splitting off any remainder.
func (h *Heap) takeFree(size uint32) (uint32, bool) {
	for i, b := range h.free {
		if b.size < size {
			continue
		}
		if b.size == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = block{ptr: b.ptr + size, size: b.size - size}
		}
		return b.ptr, true
	}
	return 0, false
}

// releaseBlock returns a block to the free list, coalescing neighbours and
// folding a trailing block back into the bump region.
func (h *Heap) releaseBlock(b block) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].ptr > b.ptr })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = b

	if i+1 < len(h.free) && h.free[i].ptr+h.free[i].size == h.free[i+1].ptr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].ptr+h.free[i-1].size == h.free[i].ptr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
		i--
	}

	last := h.free[len(h.free)-1]
	if last.ptr+last.size == h.next {
		h.next = last.ptr
		h.free = h.free[:len(h.free)-1]
	}
}

func (h *Heap) grow(required int) {
	if required <= len(h.mem) {
		return
	}
	size := len(h.mem) * 2
	for size < required {
		size *= 2
	}
	mem := make([]byte, size)
	copy(mem, h.mem)
	h.mem = mem
}

func alignUp(n uint32) uint32 {
	return (n + heapAlign - 1) &^ (heapAlign - 1)
}
