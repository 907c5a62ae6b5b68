package abi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
)

// ErrInteriorNUL is returned when a string to be written contains a NUL byte
// and therefore cannot be represented as a C string.
var ErrInteriorNUL = errors.New("string contains a NUL byte")

const stringChunk = 256

// writer allocates structures in an arena. The first failure sticks, and
// finish releases every allocation made so far so a half-built structure
// never escapes.
type writer struct {
	arena  ports.Arena
	err    error
	allocs []uint32
}

func newWriter(arena ports.Arena) *writer {
	return &writer{arena: arena}
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) alloc(size uint32) uint32 {
	if w.err != nil {
		return 0
	}
	ptr, err := w.arena.Allocate(size)
	if err != nil {
		w.fail(err)
		return 0
	}
	w.allocs = append(w.allocs, ptr)
	return ptr
}

func (w *writer) str(s string) uint32 {
	if strings.IndexByte(s, 0) >= 0 {
		w.fail(fmt.Errorf("%q: %w", s, ErrInteriorNUL))
		return 0
	}
	n := uint64(len(s)) + 1
	if n > MaxStringLength {
		w.fail(fmt.Errorf("string of %d bytes exceeds limit of %d", len(s), MaxStringLength))
		return 0
	}
	ptr := w.alloc(uint32(n))
	if ptr == 0 {
		return 0
	}
	w.bytes(ptr, append([]byte(s), 0))
	return ptr
}

func (w *writer) u32(offset, v uint32) {
	if w.err != nil {
		return
	}
	if !w.arena.WriteUint32Le(offset, v) {
		w.fail(&domainerrors.AccessError{Op: "write", Ptr: offset, Length: 4})
	}
}

func (w *writer) f64(offset uint32, v float64) {
	if w.err != nil {
		return
	}
	if !w.arena.WriteFloat64Le(offset, v) {
		w.fail(&domainerrors.AccessError{Op: "write", Ptr: offset, Length: 8})
	}
}

func (w *writer) bytes(offset uint32, v []byte) {
	if w.err != nil {
		return
	}
	if !w.arena.Write(offset, v) {
		w.fail(&domainerrors.AccessError{Op: "write", Ptr: offset, Length: uint32(len(v))}) //nolint:gosec // G115: bounded by MaxStringLength
	}
}

// ptrArray writes a null-terminated array of pointers.
func (w *writer) ptrArray(ptrs []uint32) uint32 {
	if len(ptrs) > MaxArrayLength {
		w.fail(fmt.Errorf("array of %d elements exceeds limit of %d", len(ptrs), MaxArrayLength))
		return 0
	}
	arr := w.alloc(uint32(len(ptrs)+1) * PtrSize) //nolint:gosec // G115: bounded by MaxArrayLength
	for i, p := range ptrs {
		w.u32(arr+uint32(i)*PtrSize, p) //nolint:gosec // G115: bounded by MaxArrayLength
	}
	if arr != 0 {
		w.u32(arr+uint32(len(ptrs))*PtrSize, 0) //nolint:gosec // G115: bounded by MaxArrayLength
	}
	return arr
}

func (w *writer) finish() error {
	if w.err == nil {
		return nil
	}
	for i := len(w.allocs) - 1; i >= 0; i-- {
		_ = w.arena.Free(w.allocs[i])
	}
	w.allocs = nil
	return w.err
}

// WriteCString copies s into a fresh NUL-terminated allocation.
func WriteCString(arena ports.Arena, s string) (uint32, error) {
	w := newWriter(arena)
	ptr := w.str(s)
	if err := w.finish(); err != nil {
		return 0, err
	}
	return ptr, nil
}

// ReadCString copies a NUL-terminated string out of memory.
func ReadCString(mem ports.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", domainerrors.ErrNullPointer
	}
	size := mem.Size()
	var out []byte
	for offset := ptr; offset < size && len(out) <= MaxStringLength; {
		n := min(stringChunk, size-offset, uint32(MaxStringLength+1-len(out))) //nolint:gosec // G115: bounded by MaxStringLength
		buf, ok := mem.Read(offset, n)
		if !ok {
			// The chunk crosses the end of the readable region; go byte by byte.
			b, ok := mem.ReadByte(offset)
			if !ok {
				break
			}
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
			offset++
			continue
		}
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf...)
		offset += n
	}
	return "", &domainerrors.AccessError{Op: "read unterminated string", Ptr: ptr, Length: uint32(len(out))} //nolint:gosec // G115: bounded by MaxStringLength
}

// readOptionalCString treats the null pointer as the empty string.
func readOptionalCString(mem ports.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	return ReadCString(mem, ptr)
}

func readU32(mem ports.Memory, offset uint32) (uint32, error) {
	v, ok := mem.ReadUint32Le(offset)
	if !ok {
		return 0, &domainerrors.AccessError{Op: "read", Ptr: offset, Length: 4}
	}
	return v, nil
}

// ReadPtrArray reads a null-terminated array of pointers. The sentinel is
// not included in the result.
func ReadPtrArray(mem ports.Memory, ptr uint32) ([]uint32, error) {
	if ptr == 0 {
		return nil, domainerrors.ErrNullPointer
	}
	var out []uint32
	for i := uint64(0); i <= MaxArrayLength; i++ {
		offset := uint64(ptr) + i*PtrSize
		if offset > math.MaxUint32 {
			break
		}
		p, ok := mem.ReadUint32Le(uint32(offset))
		if !ok {
			break
		}
		if p == 0 {
			return out, nil
		}
		out = append(out, p)
	}
	return nil, fmt.Errorf("array at 0x%x: %w", ptr, domainerrors.ErrUnterminatedArray)
}

// ReadPtrList reads count pointers from an array. None of them may be null.
func ReadPtrList(mem ports.Memory, ptr, count uint32) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	if ptr == 0 {
		return nil, domainerrors.ErrNullPointer
	}
	if count > MaxArrayLength {
		return nil, fmt.Errorf("array of %d elements exceeds limit of %d", count, MaxArrayLength)
	}
	out := make([]uint32, count)
	for i := range count {
		p, err := readU32(mem, ptr+i*PtrSize)
		if err != nil {
			return nil, err
		}
		if p == 0 {
			return nil, fmt.Errorf("element %d of array at 0x%x: %w", i, ptr, domainerrors.ErrNullPointer)
		}
		out[i] = p
	}
	return out, nil
}

// freeFields releases the pointers stored at the given field offsets of a
// structure, leaving the structure itself alone.
func freeFields(arena ports.Arena, base uint32, offsets ...uint32) error {
	var errs []error
	for _, off := range offsets {
		p, err := readU32(arena, base+off)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := arena.Free(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// freePtrArray walks a null-terminated array, releasing each element with
// freeElem and then the array itself.
func freePtrArray(arena ports.Arena, ptr uint32, freeElem func(uint32) error) error {
	if ptr == 0 {
		return nil
	}
	elems, err := ReadPtrArray(arena, ptr)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range elems {
		if err := freeElem(e); err != nil {
			errs = append(errs, err)
		}
	}
	if err := arena.Free(ptr); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WriteResult allocates a ta_result.
func WriteResult(arena ports.Arena, r entities.Result) (uint32, error) {
	w := newWriter(arena)
	ptr := w.alloc(ResultSize)
	var reason uint32
	if r.Reason != nil {
		reason = w.str(*r.Reason)
	}
	w.u32(ptr+resultCodeOffset, uint32(r.Code))
	w.u32(ptr+resultReasonOffset, reason)
	if err := w.finish(); err != nil {
		return 0, err
	}
	return ptr, nil
}

// ReadResult decodes a ta_result.
func ReadResult(mem ports.Memory, ptr uint32) (entities.Result, error) {
	if ptr == 0 {
		return entities.Result{}, domainerrors.ErrNullPointer
	}
	code, err := readU32(mem, ptr+resultCodeOffset)
	if err != nil {
		return entities.Result{}, err
	}
	reasonPtr, err := readU32(mem, ptr+resultReasonOffset)
	if err != nil {
		return entities.Result{}, err
	}
	r := entities.Result{Code: entities.ResultCode(code)}
	if reasonPtr != 0 {
		reason, err := ReadCString(mem, reasonPtr)
		if err != nil {
			return entities.Result{}, fmt.Errorf("result reason: %w", err)
		}
		r.Reason = &reason
	}
	return r, nil
}

// FreeResult releases a ta_result and its reason.
func FreeResult(arena ports.Arena, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	return errors.Join(
		freeFields(arena, ptr, resultReasonOffset),
		arena.Free(ptr),
	)
}

var engineStringOffsets = []uint32{
	engineFriendlyNameOffset,
	engineVersionOffset,
	engineLuaNameOffset,
	engineDescriptionOffset,
}

// WriteEngineMetadata fills a caller-provided ta_engine_metadata. Every
// string is a fresh allocation.
func WriteEngineMetadata(arena ports.Arena, dst uint32, md entities.EngineMetadata) error {
	if dst == 0 {
		return domainerrors.ErrNullPointer
	}
	w := newWriter(arena)
	friendly := w.str(md.FriendlyName)
	version := w.str(md.Version)
	lua := w.str(md.LuaName)
	desc := w.str(md.Description)
	if err := w.finish(); err != nil {
		return err
	}

	w.u32(dst+engineIPCVersionOffset, md.IPCVersion)
	w.u32(dst+engineFriendlyNameOffset, friendly)
	w.u32(dst+engineVersionOffset, version)
	w.u32(dst+engineLuaNameOffset, lua)
	w.u32(dst+engineDescriptionOffset, desc)
	return w.finish()
}

// ReadIPCVersion reads only the version field of a ta_engine_metadata. Hosts
// check it before trusting anything else in the structure.
func ReadIPCVersion(mem ports.Memory, ptr uint32) (uint32, error) {
	if ptr == 0 {
		return 0, domainerrors.ErrNullPointer
	}
	return readU32(mem, ptr+engineIPCVersionOffset)
}

// ReadEngineMetadata decodes a ta_engine_metadata.
func ReadEngineMetadata(mem ports.Memory, ptr uint32) (entities.EngineMetadata, error) {
	version, err := ReadIPCVersion(mem, ptr)
	if err != nil {
		return entities.EngineMetadata{}, err
	}
	md := entities.EngineMetadata{IPCVersion: version}
	fields := []struct {
		dst    *string
		name   string
		offset uint32
	}{
		{&md.FriendlyName, "friendly name", engineFriendlyNameOffset},
		{&md.Version, "version", engineVersionOffset},
		{&md.LuaName, "lua name", engineLuaNameOffset},
		{&md.Description, "description", engineDescriptionOffset},
	}
	for _, f := range fields {
		p, err := readU32(mem, ptr+f.offset)
		if err != nil {
			return entities.EngineMetadata{}, err
		}
		if *f.dst, err = readOptionalCString(mem, p); err != nil {
			return entities.EngineMetadata{}, fmt.Errorf("engine %s: %w", f.name, err)
		}
	}
	return md, nil
}

// FreeEngineMetadata releases the strings of a ta_engine_metadata and
// zeroes them. The structure itself belongs to the caller.
func FreeEngineMetadata(arena ports.Arena, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	err := freeFields(arena, ptr, engineStringOffsets...)
	for _, off := range engineStringOffsets {
		arena.WriteUint32Le(ptr+off, 0)
	}
	return err
}

func (w *writer) namedKind(d entities.ParameterDescriptor) uint32 {
	ptr := w.alloc(NamedKindSize)
	id := w.str(d.ID)
	name := w.str(d.Name)
	w.u32(ptr+namedKindIDOffset, id)
	w.u32(ptr+namedKindNameOffset, name)
	w.u32(ptr+namedKindKindOffset, uint32(d.Kind))
	return ptr
}

func (w *writer) namedKindArray(list []entities.ParameterDescriptor) uint32 {
	ptrs := make([]uint32, len(list))
	for i, d := range list {
		ptrs[i] = w.namedKind(d)
	}
	return w.ptrArray(ptrs)
}

func (w *writer) instruction(md entities.InstructionMetadata) uint32 {
	ptr := w.alloc(InstructionMetadataSize)
	w.u32(ptr+instructionIDOffset, w.str(md.ID))
	w.u32(ptr+instructionFriendlyNameOffset, w.str(md.FriendlyName))
	w.u32(ptr+instructionLuaNameOffset, w.str(md.LuaName))
	w.u32(ptr+instructionDescriptionOffset, w.str(md.Description))
	w.u32(ptr+instructionFlagsOffset, uint32(md.Flags))
	w.u32(ptr+instructionParametersOffset, w.namedKindArray(md.Parameters))
	w.u32(ptr+instructionOutputsOffset, w.namedKindArray(md.Outputs))
	return ptr
}

// WriteInstructionArray allocates a null-terminated array of
// ta_instruction_metadata.
func WriteInstructionArray(arena ports.Arena, list []entities.InstructionMetadata) (uint32, error) {
	w := newWriter(arena)
	ptrs := make([]uint32, len(list))
	for i, md := range list {
		ptrs[i] = w.instruction(md)
	}
	arr := w.ptrArray(ptrs)
	if err := w.finish(); err != nil {
		return 0, err
	}
	return arr, nil
}

func readNamedKind(mem ports.Memory, ptr uint32) (entities.ParameterDescriptor, error) {
	idPtr, err := readU32(mem, ptr+namedKindIDOffset)
	if err != nil {
		return entities.ParameterDescriptor{}, err
	}
	namePtr, err := readU32(mem, ptr+namedKindNameOffset)
	if err != nil {
		return entities.ParameterDescriptor{}, err
	}
	kind, err := readU32(mem, ptr+namedKindKindOffset)
	if err != nil {
		return entities.ParameterDescriptor{}, err
	}
	d := entities.ParameterDescriptor{Kind: entities.ParameterKind(kind)}
	if d.ID, err = ReadCString(mem, idPtr); err != nil {
		return entities.ParameterDescriptor{}, fmt.Errorf("descriptor id: %w", err)
	}
	if d.Name, err = readOptionalCString(mem, namePtr); err != nil {
		return entities.ParameterDescriptor{}, fmt.Errorf("descriptor %s name: %w", d.ID, err)
	}
	return d, nil
}

// readNamedKindArray treats a null list as empty.
func readNamedKindArray(mem ports.Memory, ptr uint32) ([]entities.ParameterDescriptor, error) {
	if ptr == 0 {
		return nil, nil
	}
	ptrs, err := ReadPtrArray(mem, ptr)
	if err != nil {
		return nil, err
	}
	out := make([]entities.ParameterDescriptor, 0, len(ptrs))
	for _, p := range ptrs {
		d, err := readNamedKind(mem, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func readInstruction(mem ports.Memory, ptr uint32) (entities.InstructionMetadata, error) {
	var raw [InstructionMetadataSize / PtrSize]uint32
	for i := range raw {
		v, err := readU32(mem, ptr+uint32(i)*PtrSize) //nolint:gosec // G115: small constant range
		if err != nil {
			return entities.InstructionMetadata{}, err
		}
		raw[i] = v
	}
	field := func(offset uint32) uint32 { return raw[offset/PtrSize] }

	var (
		md  entities.InstructionMetadata
		err error
	)
	if md.ID, err = ReadCString(mem, field(instructionIDOffset)); err != nil {
		return md, fmt.Errorf("instruction id: %w", err)
	}
	if md.FriendlyName, err = readOptionalCString(mem, field(instructionFriendlyNameOffset)); err != nil {
		return md, fmt.Errorf("instruction %s friendly name: %w", md.ID, err)
	}
	if md.LuaName, err = readOptionalCString(mem, field(instructionLuaNameOffset)); err != nil {
		return md, fmt.Errorf("instruction %s lua name: %w", md.ID, err)
	}
	if md.Description, err = readOptionalCString(mem, field(instructionDescriptionOffset)); err != nil {
		return md, fmt.Errorf("instruction %s description: %w", md.ID, err)
	}
	md.Flags = entities.InstructionFlags(field(instructionFlagsOffset))
	if md.Parameters, err = readNamedKindArray(mem, field(instructionParametersOffset)); err != nil {
		return md, fmt.Errorf("instruction %s parameters: %w", md.ID, err)
	}
	if md.Outputs, err = readNamedKindArray(mem, field(instructionOutputsOffset)); err != nil {
		return md, fmt.Errorf("instruction %s outputs: %w", md.ID, err)
	}
	return md, nil
}

// ReadInstructionArray decodes a null-terminated array of
// ta_instruction_metadata.
func ReadInstructionArray(mem ports.Memory, ptr uint32) ([]entities.InstructionMetadata, error) {
	ptrs, err := ReadPtrArray(mem, ptr)
	if err != nil {
		return nil, err
	}
	out := make([]entities.InstructionMetadata, 0, len(ptrs))
	for _, p := range ptrs {
		md, err := readInstruction(mem, p)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, nil
}

func freeNamedKind(arena ports.Arena, ptr uint32) error {
	return errors.Join(
		freeFields(arena, ptr, namedKindIDOffset, namedKindNameOffset),
		arena.Free(ptr),
	)
}

func freeInstruction(arena ports.Arena, ptr uint32) error {
	var errs []error
	errs = append(errs, freeFields(arena, ptr,
		instructionIDOffset,
		instructionFriendlyNameOffset,
		instructionLuaNameOffset,
		instructionDescriptionOffset,
	))
	for _, off := range []uint32{instructionParametersOffset, instructionOutputsOffset} {
		list, err := readU32(arena, ptr+off)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, freePtrArray(arena, list, func(p uint32) error {
			return freeNamedKind(arena, p)
		}))
	}
	errs = append(errs, arena.Free(ptr))
	return errors.Join(errs...)
}

// FreeInstructionArray releases an instruction array and everything it
// points to.
func FreeInstructionArray(arena ports.Arena, ptr uint32) error {
	return freePtrArray(arena, ptr, func(p uint32) error {
		return freeInstruction(arena, p)
	})
}

// value writes the boxed payload of v and returns it with its kind tag.
func (w *writer) value(v entities.Value) (kind, payload uint32) {
	kind = uint32(v.Kind())
	switch v.Kind() {
	case entities.KindInteger:
		i, _ := v.Integer()
		payload = w.alloc(integerCellSize)
		w.u32(payload, uint32(i)) //nolint:gosec // G115: two's complement reinterpretation
	case entities.KindDecimal:
		f, _ := v.Decimal()
		payload = w.alloc(decimalCellSize)
		w.f64(payload, f)
	case entities.KindBoolean:
		b, _ := v.Boolean()
		payload = w.alloc(booleanCellSize)
		var cell byte
		if b {
			cell = 1
		}
		w.bytes(payload, []byte{cell})
	case entities.KindString:
		s, _ := v.Str()
		payload = w.str(s)
	default:
		w.fail(fmt.Errorf("cannot encode a %s value", v.Kind()))
	}
	return kind, payload
}

func (w *writer) namedValue(nv entities.NamedValue) uint32 {
	ptr := w.alloc(NamedValueSize)
	name := w.str(nv.Name)
	kind, payload := w.value(nv.Value)
	w.u32(ptr+namedValueNameOffset, name)
	w.u32(ptr+namedValueKindOffset, kind)
	w.u32(ptr+namedValuePayloadOffset, payload)
	return ptr
}

// WriteNamedValueArray allocates a null-terminated array of ta_named_value.
// An empty list yields an array holding only the sentinel.
func WriteNamedValueArray(arena ports.Arena, list []entities.NamedValue) (uint32, error) {
	w := newWriter(arena)
	ptrs := make([]uint32, len(list))
	for i, nv := range list {
		ptrs[i] = w.namedValue(nv)
	}
	arr := w.ptrArray(ptrs)
	if err := w.finish(); err != nil {
		return 0, err
	}
	return arr, nil
}

func readValue(mem ports.Memory, kind entities.ParameterKind, payload uint32) (entities.Value, error) {
	if !kind.Valid() {
		return entities.UnsupportedValue(kind), nil
	}
	if payload == 0 {
		return entities.Value{}, fmt.Errorf("%s payload: %w", kind, domainerrors.ErrNullPointer)
	}
	switch kind {
	case entities.KindInteger:
		v, err := readU32(mem, payload)
		if err != nil {
			return entities.Value{}, err
		}
		return entities.IntegerValue(int32(v)), nil //nolint:gosec // G115: two's complement reinterpretation
	case entities.KindDecimal:
		v, ok := mem.ReadFloat64Le(payload)
		if !ok {
			return entities.Value{}, &domainerrors.AccessError{Op: "read", Ptr: payload, Length: decimalCellSize}
		}
		return entities.DecimalValue(v), nil
	case entities.KindBoolean:
		v, ok := mem.ReadByte(payload)
		if !ok {
			return entities.Value{}, &domainerrors.AccessError{Op: "read", Ptr: payload, Length: booleanCellSize}
		}
		return entities.BooleanValue(v != 0), nil
	default:
		s, err := ReadCString(mem, payload)
		if err != nil {
			return entities.Value{}, err
		}
		return entities.StringValue(s), nil
	}
}

// ReadNamedValue decodes one ta_named_value. Values of a kind this revision
// cannot decode come back as entities.UnsupportedValue. When only the payload
// is unreadable the returned NamedValue still carries the name.
func ReadNamedValue(mem ports.Memory, ptr uint32) (entities.NamedValue, error) {
	if ptr == 0 {
		return entities.NamedValue{}, domainerrors.ErrNullPointer
	}
	namePtr, err := readU32(mem, ptr+namedValueNameOffset)
	if err != nil {
		return entities.NamedValue{}, err
	}
	kind, err := readU32(mem, ptr+namedValueKindOffset)
	if err != nil {
		return entities.NamedValue{}, err
	}
	payload, err := readU32(mem, ptr+namedValuePayloadOffset)
	if err != nil {
		return entities.NamedValue{}, err
	}

	name, err := ReadCString(mem, namePtr)
	if err != nil {
		return entities.NamedValue{}, fmt.Errorf("value name: %w", err)
	}
	v, err := readValue(mem, entities.ParameterKind(kind), payload)
	if err != nil {
		return entities.NamedValue{Name: name, Value: entities.UnsupportedValue(entities.ParameterKind(kind))},
			fmt.Errorf("value %s: %w", name, err)
	}
	return entities.Named(name, v), nil
}

func readNamedValues(mem ports.Memory, ptrs []uint32) ([]entities.NamedValue, error) {
	out := make([]entities.NamedValue, 0, len(ptrs))
	for _, p := range ptrs {
		nv, err := ReadNamedValue(mem, p)
		if err != nil {
			return nil, err
		}
		out = append(out, nv)
	}
	return out, nil
}

// ReadNamedValueArray decodes a null-terminated array of ta_named_value.
func ReadNamedValueArray(mem ports.Memory, ptr uint32) ([]entities.NamedValue, error) {
	ptrs, err := ReadPtrArray(mem, ptr)
	if err != nil {
		return nil, err
	}
	return readNamedValues(mem, ptrs)
}

// ReadNamedValueList decodes count ta_named_value pointers.
func ReadNamedValueList(mem ports.Memory, ptr, count uint32) ([]entities.NamedValue, error) {
	ptrs, err := ReadPtrList(mem, ptr, count)
	if err != nil {
		return nil, err
	}
	return readNamedValues(mem, ptrs)
}

func freeNamedValue(arena ports.Arena, ptr uint32) error {
	return errors.Join(
		freeFields(arena, ptr, namedValueNameOffset, namedValuePayloadOffset),
		arena.Free(ptr),
	)
}

// FreeNamedValueArray releases a named value array, every name and every
// boxed payload regardless of kind.
func FreeNamedValueArray(arena ports.Arena, ptr uint32) error {
	return freePtrArray(arena, ptr, func(p uint32) error {
		return freeNamedValue(arena, p)
	})
}

func (w *writer) evidence(ev entities.Evidence) uint32 {
	ptr := w.alloc(EvidenceSize)
	label := w.str(ev.Label)
	value := w.str(ev.Value)
	w.u32(ptr+evidenceLabelOffset, label)
	w.u32(ptr+evidenceKindOffset, uint32(ev.Kind))
	w.u32(ptr+evidenceValueOffset, value)
	return ptr
}

// WriteEvidenceArray allocates a null-terminated array of ta_evidence.
func WriteEvidenceArray(arena ports.Arena, list []entities.Evidence) (uint32, error) {
	w := newWriter(arena)
	ptrs := make([]uint32, len(list))
	for i, ev := range list {
		ptrs[i] = w.evidence(ev)
	}
	arr := w.ptrArray(ptrs)
	if err := w.finish(); err != nil {
		return 0, err
	}
	return arr, nil
}

func readEvidence(mem ports.Memory, ptr uint32) (entities.Evidence, error) {
	labelPtr, err := readU32(mem, ptr+evidenceLabelOffset)
	if err != nil {
		return entities.Evidence{}, err
	}
	kind, err := readU32(mem, ptr+evidenceKindOffset)
	if err != nil {
		return entities.Evidence{}, err
	}
	valuePtr, err := readU32(mem, ptr+evidenceValueOffset)
	if err != nil {
		return entities.Evidence{}, err
	}
	ev := entities.Evidence{Kind: entities.EvidenceKind(kind)}
	if ev.Label, err = readOptionalCString(mem, labelPtr); err != nil {
		return entities.Evidence{}, fmt.Errorf("evidence label: %w", err)
	}
	if ev.Value, err = readOptionalCString(mem, valuePtr); err != nil {
		return entities.Evidence{}, fmt.Errorf("evidence %s value: %w", ev.Label, err)
	}
	return ev, nil
}

// ReadEvidenceArray decodes a null-terminated array of ta_evidence.
func ReadEvidenceArray(mem ports.Memory, ptr uint32) ([]entities.Evidence, error) {
	ptrs, err := ReadPtrArray(mem, ptr)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Evidence, 0, len(ptrs))
	for _, p := range ptrs {
		ev, err := readEvidence(mem, p)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// FreeEvidenceArray releases an evidence array and its strings.
func FreeEvidenceArray(arena ports.Arena, ptr uint32) error {
	return freePtrArray(arena, ptr, func(p uint32) error {
		return errors.Join(
			freeFields(arena, p, evidenceLabelOffset, evidenceValueOffset),
			arena.Free(p),
		)
	})
}
