// Package condition implements the split conditions decision trees branch
// on: float intervals and set-of-values membership over int64 or bytes.
// SplitCondition is a sealed interface (core/types.go's preference for
// concrete, functionally-built types over open class hierarchies, rendered
// here as an unexported marker method instead of a base class).
package condition

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/katalvlaran/ensemble/fingerprint"
	"github.com/katalvlaran/ensemble/qtype"
)

// Sentinel errors returned by the constructors in this package. Callers
// should compare with errors.Is, never string-match.
var (
	// ErrEmptySet is returned when a set-of-values condition is built with
	// no members; such a condition can never distinguish anything.
	ErrEmptySet = errors.New("condition: set of values must not be empty")
	// ErrInvertedInterval is returned when an interval's left bound is
	// greater than its right bound.
	ErrInvertedInterval = errors.New("condition: interval left bound exceeds right bound")
)

// Kind distinguishes the concrete condition types for switch-free routing
// decisions in the evaluators (e.g. "does the bitmask builder support this
// condition").
type Kind int

const (
	// KindInterval tags Interval conditions.
	KindInterval Kind = iota
	// KindSetInt64 tags SetOfValuesInt64 conditions.
	KindSetInt64
	// KindSetBytes tags SetOfValuesBytes conditions.
	KindSetBytes
)

// InputSignature names one input a condition reads, and the qtype it
// expects there. Every condition in this package reads exactly one input.
type InputSignature struct {
	InputID int
	QType   qtype.QType
}

// SplitCondition is evaluated against a single input Value to choose a
// tree's true or false branch. The interface is sealed to this package:
// sealed() can only be implemented by the three types declared here.
type SplitCondition interface {
	fmt.Stringer

	// Kind reports which concrete condition this is.
	Kind() Kind
	// InputSignatures returns the (exactly one) input this condition reads.
	InputSignatures() []InputSignature
	// Evaluate decides the branch: true selects the tree's true child.
	Evaluate(v qtype.Value) bool
	// RemapInputs returns a functionally identical copy with every input id
	// rewritten through ids. Ids absent from the map are left unchanged.
	RemapInputs(ids map[int]int) SplitCondition
	// Equal reports whether other is the same condition (same kind, same
	// input, same bounds/sets).
	Equal(other SplitCondition) bool
	// Hash returns a stable, process-independent hash of the condition,
	// used to fold conditions into a forest fingerprint.
	Hash() uint64

	sealed()
}

// Interval is a split on a float32 input: Evaluate reports whether the
// input lies in [Left, Right]. Left may be -Inf and Right may be +Inf to
// express one-sided bounds; Left == Right expresses an exact-match split.
// A missing or NaN input always evaluates false.
type Interval struct {
	inputID     int
	left, right float32
}

// NewInterval builds an Interval condition on the given input, rejecting an
// inverted range.
func NewInterval(inputID int, left, right float32) (Interval, error) {
	if left > right {
		return Interval{}, fmt.Errorf("%w: [%v, %v]", ErrInvertedInterval, left, right)
	}
	return Interval{inputID: inputID, left: left, right: right}, nil
}

func (c Interval) sealed() {}

// Kind implements SplitCondition.
func (c Interval) Kind() Kind { return KindInterval }

// InputSignatures implements SplitCondition.
func (c Interval) InputSignatures() []InputSignature {
	return []InputSignature{{InputID: c.inputID, QType: qtype.Float32}}
}

// InputID returns the single input this condition reads.
func (c Interval) InputID() int { return c.inputID }

// Left returns the inclusive lower bound, possibly -Inf.
func (c Interval) Left() float32 { return c.left }

// Right returns the inclusive upper bound, possibly +Inf.
func (c Interval) Right() float32 { return c.right }

// Evaluate implements SplitCondition.
func (c Interval) Evaluate(v qtype.Value) bool {
	if !v.Present() {
		return false
	}
	x := v.Float32()
	if math.IsNaN(float64(x)) {
		return false
	}
	return c.left <= x && x <= c.right
}

// RemapInputs implements SplitCondition.
func (c Interval) RemapInputs(ids map[int]int) SplitCondition {
	if id, ok := ids[c.inputID]; ok {
		c.inputID = id
	}
	return c
}

// Equal implements SplitCondition.
func (c Interval) Equal(other SplitCondition) bool {
	o, ok := other.(Interval)
	return ok && o.inputID == c.inputID && o.left == c.left && o.right == c.right
}

// Hash implements SplitCondition.
func (c Interval) Hash() uint64 {
	return fingerprint.New().
		WriteUint64(uint64(KindInterval)).
		WriteUint64(uint64(c.inputID)).
		WriteFloat32(c.left).
		WriteFloat32(c.right).
		Sum64()
}

// String implements SplitCondition, matching the engine's to_string format:
// "#<input> in range [<left:%.6f> <right:%.6f>]".
func (c Interval) String() string {
	return fmt.Sprintf("#%d in range [%s %s]", c.inputID, formatBound(c.left), formatBound(c.right))
}

func formatBound(v float32) string {
	if math.IsInf(float64(v), 1) {
		return "inf"
	}
	if math.IsInf(float64(v), -1) {
		return "-inf"
	}
	return fmt.Sprintf("%.6f", v)
}

// SetOfValuesInt64 is a split on an int64 input: Evaluate reports whether
// the input is a member of the set. DefaultIfMissed fills in the result
// when the input is absent, since "not in the set" is ambiguous for a
// missing value.
type SetOfValuesInt64 struct {
	inputID         int
	values          map[int64]struct{}
	defaultIfMissed bool
}

// NewSetOfValuesInt64 builds a set-of-values condition over int64. values is
// copied; duplicates are collapsed.
func NewSetOfValuesInt64(inputID int, values []int64, defaultIfMissed bool) (SetOfValuesInt64, error) {
	if len(values) == 0 {
		return SetOfValuesInt64{}, ErrEmptySet
	}
	set := make(map[int64]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return SetOfValuesInt64{inputID: inputID, values: set, defaultIfMissed: defaultIfMissed}, nil
}

func (c SetOfValuesInt64) sealed() {}

// Kind implements SplitCondition.
func (c SetOfValuesInt64) Kind() Kind { return KindSetInt64 }

// InputSignatures implements SplitCondition.
func (c SetOfValuesInt64) InputSignatures() []InputSignature {
	return []InputSignature{{InputID: c.inputID, QType: qtype.Int64}}
}

// InputID returns the single input this condition reads.
func (c SetOfValuesInt64) InputID() int { return c.inputID }

// Values returns the set members in ascending order.
func (c SetOfValuesInt64) Values() []int64 {
	out := make([]int64, 0, len(c.values))
	for v := range c.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultIfMissed reports the result used when the input is absent.
func (c SetOfValuesInt64) DefaultIfMissed() bool { return c.defaultIfMissed }

// Evaluate implements SplitCondition.
func (c SetOfValuesInt64) Evaluate(v qtype.Value) bool {
	if !v.Present() {
		return c.defaultIfMissed
	}
	_, ok := c.values[v.Int64()]
	return ok
}

// RemapInputs implements SplitCondition.
func (c SetOfValuesInt64) RemapInputs(ids map[int]int) SplitCondition {
	if id, ok := ids[c.inputID]; ok {
		c.inputID = id
	}
	return c
}

// Equal implements SplitCondition.
func (c SetOfValuesInt64) Equal(other SplitCondition) bool {
	o, ok := other.(SetOfValuesInt64)
	if !ok || o.inputID != c.inputID || o.defaultIfMissed != c.defaultIfMissed || len(o.values) != len(c.values) {
		return false
	}
	for v := range c.values {
		if _, present := o.values[v]; !present {
			return false
		}
	}
	return true
}

// Hash implements SplitCondition.
func (c SetOfValuesInt64) Hash() uint64 {
	b := fingerprint.New().
		WriteUint64(uint64(KindSetInt64)).
		WriteUint64(uint64(c.inputID)).
		WriteBool(c.defaultIfMissed)
	for _, v := range c.Values() {
		b.WriteInt64(v)
	}
	return b.Sum64()
}

// String implements SplitCondition, matching the engine's to_string format:
// "#<input> in set [v0, v1, ...]", with an " or missed" suffix when
// DefaultIfMissed is true.
func (c SetOfValuesInt64) String() string {
	values := c.Values()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	s := fmt.Sprintf("#%d in set [%s]", c.inputID, strings.Join(parts, ", "))
	if c.defaultIfMissed {
		s += " or missed"
	}
	return s
}

// SetOfValuesBytes is a split on a bytes input, identical in shape to
// SetOfValuesInt64 but keyed on byte strings.
type SetOfValuesBytes struct {
	inputID         int
	values          map[string]struct{}
	defaultIfMissed bool
}

// NewSetOfValuesBytes builds a set-of-values condition over byte strings.
func NewSetOfValuesBytes(inputID int, values [][]byte, defaultIfMissed bool) (SetOfValuesBytes, error) {
	if len(values) == 0 {
		return SetOfValuesBytes{}, ErrEmptySet
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[string(v)] = struct{}{}
	}
	return SetOfValuesBytes{inputID: inputID, values: set, defaultIfMissed: defaultIfMissed}, nil
}

func (c SetOfValuesBytes) sealed() {}

// Kind implements SplitCondition.
func (c SetOfValuesBytes) Kind() Kind { return KindSetBytes }

// InputSignatures implements SplitCondition.
func (c SetOfValuesBytes) InputSignatures() []InputSignature {
	return []InputSignature{{InputID: c.inputID, QType: qtype.Bytes}}
}

// InputID returns the single input this condition reads.
func (c SetOfValuesBytes) InputID() int { return c.inputID }

// Values returns the set members sorted lexicographically.
func (c SetOfValuesBytes) Values() [][]byte {
	keys := make([]string, 0, len(c.values))
	for v := range c.values {
		keys = append(keys, v)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// DefaultIfMissed reports the result used when the input is absent.
func (c SetOfValuesBytes) DefaultIfMissed() bool { return c.defaultIfMissed }

// Evaluate implements SplitCondition.
func (c SetOfValuesBytes) Evaluate(v qtype.Value) bool {
	if !v.Present() {
		return c.defaultIfMissed
	}
	_, ok := c.values[string(v.Bytes())]
	return ok
}

// RemapInputs implements SplitCondition.
func (c SetOfValuesBytes) RemapInputs(ids map[int]int) SplitCondition {
	if id, ok := ids[c.inputID]; ok {
		c.inputID = id
	}
	return c
}

// Equal implements SplitCondition.
func (c SetOfValuesBytes) Equal(other SplitCondition) bool {
	o, ok := other.(SetOfValuesBytes)
	if !ok || o.inputID != c.inputID || o.defaultIfMissed != c.defaultIfMissed || len(o.values) != len(c.values) {
		return false
	}
	for v := range c.values {
		if _, present := o.values[v]; !present {
			return false
		}
	}
	return true
}

// Hash implements SplitCondition.
func (c SetOfValuesBytes) Hash() uint64 {
	b := fingerprint.New().
		WriteUint64(uint64(KindSetBytes)).
		WriteUint64(uint64(c.inputID)).
		WriteBool(c.defaultIfMissed)
	for _, v := range c.Values() {
		b.WriteBytes(v)
	}
	return b.Sum64()
}

// String implements SplitCondition, matching the engine's to_string format.
func (c SetOfValuesBytes) String() string {
	values := c.Values()
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("b'%s'", v)
	}
	s := fmt.Sprintf("#%d in set [%s]", c.inputID, strings.Join(parts, ", "))
	if c.defaultIfMissed {
		s += " or missed"
	}
	return s
}
