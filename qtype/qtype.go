// Package qtype defines the small closed set of value types that flow
// through the decision-forest engine: optional float32 and int64 scalars,
// optional byte strings, and the tags used to describe them at compile time.
package qtype

import "fmt"

// QType tags the runtime representation of a Value or the static type of an
// input/output slot. The engine only ever needs this small, closed set.
type QType int

const (
	// Invalid marks an uninitialized or unrecognized type.
	Invalid QType = iota
	// Float32 is an optional 32-bit float, the type of every numeric input
	// consumed by interval conditions and every tree adjustment/output.
	Float32
	// Int64 is an optional 64-bit integer, consumed by set-of-values(int64)
	// conditions.
	Int64
	// Bytes is an optional byte string, consumed by set-of-values(bytes)
	// conditions.
	Bytes
)

// String renders the QType the way the rest of the engine formats types in
// error messages and debug dumps.
func (q QType) String() string {
	switch q {
	case Float32:
		return "FLOAT32"
	case Int64:
		return "INT64"
	case Bytes:
		return "BYTES"
	default:
		return "INVALID"
	}
}

// Value is a tagged optional scalar: present tracks whether the value was
// supplied at all (a missing input is a first-class case every condition
// must handle, not an error).
type Value struct {
	qtype   QType
	f32     float32
	i64     int64
	bytes   []byte
	present bool
}

// Float32Value builds a present Float32 value.
func Float32Value(v float32) Value { return Value{qtype: Float32, f32: v, present: true} }

// Int64Value builds a present Int64 value.
func Int64Value(v int64) Value { return Value{qtype: Int64, i64: v, present: true} }

// BytesValue builds a present Bytes value. b is not copied.
func BytesValue(b []byte) Value { return Value{qtype: Bytes, bytes: b, present: true} }

// Missing builds an absent value of the given qtype.
func Missing(q QType) Value { return Value{qtype: q} }

// QType reports the value's static type.
func (v Value) QType() QType { return v.qtype }

// Present reports whether the value is set.
func (v Value) Present() bool { return v.present }

// Float32 returns the underlying float32; only meaningful when Present and
// QType() == Float32.
func (v Value) Float32() float32 { return v.f32 }

// Int64 returns the underlying int64; only meaningful when Present and
// QType() == Int64.
func (v Value) Int64() int64 { return v.i64 }

// Bytes returns the underlying byte string; only meaningful when Present and
// QType() == Bytes.
func (v Value) Bytes() []byte { return v.bytes }

// String renders the value for debug output.
func (v Value) String() string {
	if !v.present {
		return "missing"
	}
	switch v.qtype {
	case Float32:
		return fmt.Sprintf("%v", v.f32)
	case Int64:
		return fmt.Sprintf("%d", v.i64)
	case Bytes:
		return fmt.Sprintf("b'%s'", v.bytes)
	default:
		return "invalid"
	}
}
