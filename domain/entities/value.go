package entities

import (
	"fmt"
	"strconv"
)

// ParameterKind is the closed set of value types the ABI understands.
// The numeric values are part of the wire contract.
type ParameterKind uint32

const (
	// KindString is a NUL-terminated string.
	KindString ParameterKind = 0
	// KindInteger is a signed 32-bit integer.
	KindInteger ParameterKind = 1
	// KindDecimal is a 64-bit float.
	KindDecimal ParameterKind = 2
	// KindBoolean is a single byte, zero meaning false.
	KindBoolean ParameterKind = 3
	// KindBinary is reserved for an opaque binary payload. IPC version 3
	// engines and hosts must reject it.
	KindBinary ParameterKind = 4
)

// String returns the upper-case name used in diagnostics.
func (k ParameterKind) String() string {
	switch k {
	case KindString:
		return "STRING"
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return "DECIMAL"
	case KindBoolean:
		return "BOOLEAN"
	case KindBinary:
		return "BINARY"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// Valid reports whether values of this kind can cross the boundary.
func (k ParameterKind) Valid() bool {
	return k <= KindBoolean
}

// KindMismatchError is returned when a value is read as a kind it does not hold.
type KindMismatchError struct {
	Want ParameterKind
	Got  ParameterKind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("value is %s, not %s", e.Got, e.Want)
}

// Value is a tagged scalar. The zero Value is the empty STRING.
type Value struct {
	s    string
	f    float64
	i    int32
	b    bool
	kind ParameterKind
}

// IntegerValue returns an INTEGER value.
func IntegerValue(v int32) Value {
	return Value{kind: KindInteger, i: v}
}

// DecimalValue returns a DECIMAL value.
func DecimalValue(v float64) Value {
	return Value{kind: KindDecimal, f: v}
}

// BooleanValue returns a BOOLEAN value.
func BooleanValue(v bool) Value {
	return Value{kind: KindBoolean, b: v}
}

// StringValue returns a STRING value.
func StringValue(v string) Value {
	return Value{kind: KindString, s: v}
}

// UnsupportedValue returns a payload-less value carrying a kind this ABI
// revision cannot decode. Readers report it as a type mismatch.
func UnsupportedValue(kind ParameterKind) Value {
	return Value{kind: kind}
}

// Kind returns the tag of the value.
func (v Value) Kind() ParameterKind {
	return v.kind
}

// Integer returns the payload of an INTEGER value.
func (v Value) Integer() (int32, error) {
	if v.kind != KindInteger {
		return 0, &KindMismatchError{Want: KindInteger, Got: v.kind}
	}
	return v.i, nil
}

// Decimal returns the payload of a DECIMAL value.
func (v Value) Decimal() (float64, error) {
	if v.kind != KindDecimal {
		return 0, &KindMismatchError{Want: KindDecimal, Got: v.kind}
	}
	return v.f, nil
}

// Boolean returns the payload of a BOOLEAN value.
func (v Value) Boolean() (bool, error) {
	if v.kind != KindBoolean {
		return false, &KindMismatchError{Want: KindBoolean, Got: v.kind}
	}
	return v.b, nil
}

// Str returns the payload of a STRING value.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", &KindMismatchError{Want: KindString, Got: v.kind}
	}
	return v.s, nil
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindDecimal:
		return v.f == o.f
	case KindBoolean:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	default:
		return false
	}
}

// String renders the payload, e.g. "INTEGER 5".
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return "INTEGER " + strconv.FormatInt(int64(v.i), 10)
	case KindDecimal:
		return "DECIMAL " + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBoolean:
		return "BOOLEAN " + strconv.FormatBool(v.b)
	case KindString:
		return "STRING " + strconv.Quote(v.s)
	default:
		return v.kind.String()
	}
}

// Canonical returns a stable textual encoding of kind and payload, used as
// a memoization key component.
func (v Value) Canonical() string {
	return strconv.FormatUint(uint64(v.kind), 10) + ":" + v.String()
}

// NamedValue pairs a value with the parameter or output id it is bound to.
type NamedValue struct {
	Name  string
	Value Value
}

// Named is a convenience constructor for NamedValue.
func Named(name string, v Value) NamedValue {
	return NamedValue{Name: name, Value: v}
}
