// Package columnar provides the minimal columnar-array contract the engine
// needs on its input and output boundary: a fixed-length, densely packed
// column of optional scalars, row-indexable in O(1). This stands in for
// the array container libraries the host system would otherwise supply;
// Float32Array, Int64Array and BytesArray here play the same
// flat-backing-slice role matrix.Dense plays
// for 2-D numeric data.
package columnar

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/ensemble/qtype"
)

// ErrIndexOutOfRange is returned by ValueAt when row is outside [0, Len()).
var ErrIndexOutOfRange = errors.New("columnar: row index out of range")

// Array is a read-only column FrameIterator and BatchedEvaluator read rows
// from and write results into.
type Array interface {
	// Len returns the number of rows.
	Len() int
	// QType returns the column's element type.
	QType() qtype.QType
	// ValueAt returns the value at row, or an error if row is out of range.
	ValueAt(row int) (qtype.Value, error)
}

// Float32Array is a dense column of optional float32 values.
type Float32Array struct {
	values  []float32
	present []bool
}

// NewFloat32Array builds a fully-present column from values.
func NewFloat32Array(values []float32) *Float32Array {
	present := make([]bool, len(values))
	for i := range present {
		present[i] = true
	}
	return &Float32Array{values: values, present: present}
}

// NewFloat32ArrayWithPresence builds a column where present[i] controls
// whether values[i] is visible; len(values) must equal len(present).
func NewFloat32ArrayWithPresence(values []float32, present []bool) *Float32Array {
	return &Float32Array{values: values, present: present}
}

// Len implements Array.
func (a *Float32Array) Len() int { return len(a.values) }

// QType implements Array.
func (a *Float32Array) QType() qtype.QType { return qtype.Float32 }

// ValueAt implements Array.
func (a *Float32Array) ValueAt(row int) (qtype.Value, error) {
	if row < 0 || row >= len(a.values) {
		return qtype.Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, row)
	}
	if !a.present[row] {
		return qtype.Missing(qtype.Float32), nil
	}
	return qtype.Float32Value(a.values[row]), nil
}

// Int64Array is a dense column of optional int64 values.
type Int64Array struct {
	values  []int64
	present []bool
}

// NewInt64Array builds a fully-present column from values.
func NewInt64Array(values []int64) *Int64Array {
	present := make([]bool, len(values))
	for i := range present {
		present[i] = true
	}
	return &Int64Array{values: values, present: present}
}

// NewInt64ArrayWithPresence builds a column where present[i] controls
// whether values[i] is visible.
func NewInt64ArrayWithPresence(values []int64, present []bool) *Int64Array {
	return &Int64Array{values: values, present: present}
}

// Len implements Array.
func (a *Int64Array) Len() int { return len(a.values) }

// QType implements Array.
func (a *Int64Array) QType() qtype.QType { return qtype.Int64 }

// ValueAt implements Array.
func (a *Int64Array) ValueAt(row int) (qtype.Value, error) {
	if row < 0 || row >= len(a.values) {
		return qtype.Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, row)
	}
	if !a.present[row] {
		return qtype.Missing(qtype.Int64), nil
	}
	return qtype.Int64Value(a.values[row]), nil
}

// BytesArray is a dense column of optional byte-string values.
type BytesArray struct {
	values  [][]byte
	present []bool
}

// NewBytesArray builds a fully-present column from values.
func NewBytesArray(values [][]byte) *BytesArray {
	present := make([]bool, len(values))
	for i := range present {
		present[i] = true
	}
	return &BytesArray{values: values, present: present}
}

// Len implements Array.
func (a *BytesArray) Len() int { return len(a.values) }

// QType implements Array.
func (a *BytesArray) QType() qtype.QType { return qtype.Bytes }

// ValueAt implements Array.
func (a *BytesArray) ValueAt(row int) (qtype.Value, error) {
	if row < 0 || row >= len(a.values) {
		return qtype.Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, row)
	}
	if !a.present[row] {
		return qtype.Missing(qtype.Bytes), nil
	}
	return qtype.BytesValue(a.values[row]), nil
}

// Sequence is an immutable, generic fixed-length column that carries values
// without paying Value's tagged-union overhead; no evaluator in this module
// uses it. Build one via MutableSequence.Freeze.
type Sequence[T any] struct {
	values []T
}

// Len returns the number of elements.
func (s Sequence[T]) Len() int { return len(s.values) }

// At returns the element at i.
func (s Sequence[T]) At(i int) T { return s.values[i] }

// MutableSequence is a Sequence under construction.
type MutableSequence[T any] struct {
	values []T
}

// NewMutableSequence allocates a zeroed sequence of length n.
func NewMutableSequence[T any](n int) *MutableSequence[T] {
	return &MutableSequence[T]{values: make([]T, n)}
}

// Set writes the element at i.
func (m *MutableSequence[T]) Set(i int, v T) { m.values[i] = v }

// Freeze seals the sequence. m must not be used afterward.
func (m *MutableSequence[T]) Freeze() Sequence[T] {
	return Sequence[T]{values: m.values}
}
