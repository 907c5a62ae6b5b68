package ports

// Memory is byte-addressed access to an engine's address space. Offsets are
// 32-bit pointers as seen by the engine; offset 0 is the null pointer.
//
// The method set is a subset of wazero's api.Memory, so a wazero module's
// memory satisfies it directly.
type Memory interface {
	// Size returns the number of addressable bytes.
	Size() uint32

	// ReadByte reads a single byte at offset.
	ReadByte(offset uint32) (byte, bool)

	// ReadUint32Le reads a little-endian uint32 at offset.
	ReadUint32Le(offset uint32) (uint32, bool)

	// ReadFloat64Le reads a little-endian IEEE-754 float64 at offset.
	ReadFloat64Le(offset uint32) (float64, bool)

	// Read returns a view of byteCount bytes at offset. Callers must copy
	// the bytes if they keep them past the current call.
	Read(offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at offset.
	WriteByte(offset uint32, v byte) bool

	// WriteUint32Le writes a little-endian uint32 at offset.
	WriteUint32Le(offset, v uint32) bool

	// WriteFloat64Le writes a little-endian IEEE-754 float64 at offset.
	WriteFloat64Le(offset uint32, v float64) bool

	// Write copies v to offset.
	Write(offset uint32, v []byte) bool
}

// Arena is an engine-side allocator over its own Memory. Everything an
// engine hands to the host is allocated here and only released here.
type Arena interface {
	Memory

	// Allocate reserves size zeroed bytes and returns their offset.
	Allocate(size uint32) (uint32, error)

	// Free releases an allocation made by Allocate. Freeing the null
	// pointer is a no-op; freeing anything else that is not live is an error.
	Free(ptr uint32) error
}
