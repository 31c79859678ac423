// Package frame implements the typed, addressable row storage every
// evaluator reads inputs from and writes outputs to: a FrameLayout compiles
// a fixed set of input/output slots once, and every Frame built from that
// layout indexes into plain Go slices by slot, the way gridgraph's
// precomputed offset tables avoid recomputation per access and
// matrix.Dense backs a 2-D structure with one flat slice.
package frame

import "github.com/katalvlaran/ensemble/qtype"

// Slot addresses one input cell (a qtype.Value) within a Frame built from
// the Layout that produced it. A Slot from one Layout must never be used
// against a Frame built from another Layout.
type Slot struct {
	index int
	qtype qtype.QType
}

// QType reports the static type the slot was declared with.
func (s Slot) QType() qtype.QType { return s.qtype }

// OutputSlot addresses one float32 accumulator cell within a Frame.
type OutputSlot struct {
	index int
}

// Layout describes the shape of every Frame it produces: how many input
// slots, their qtypes, and how many output slots. Build once per compiled
// evaluator, then stamp out Frames cheaply with NewFrame.
type Layout struct {
	slotTypes   []qtype.QType
	outputCount int
}

// Builder accumulates slots before sealing them into a Layout.
type Builder struct {
	slotTypes   []qtype.QType
	outputCount int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddSlot reserves one input slot of the given qtype and returns its handle.
func (b *Builder) AddSlot(qt qtype.QType) Slot {
	s := Slot{index: len(b.slotTypes), qtype: qt}
	b.slotTypes = append(b.slotTypes, qt)
	return s
}

// AddOutputSlot reserves one float32 accumulator slot and returns its handle.
func (b *Builder) AddOutputSlot() OutputSlot {
	s := OutputSlot{index: b.outputCount}
	b.outputCount++
	return s
}

// Build seals the accumulated slots into a Layout. The Builder must not be
// reused afterward.
func (b *Builder) Build() *Layout {
	return &Layout{slotTypes: b.slotTypes, outputCount: b.outputCount}
}

// NumSlots reports the number of input slots in the layout.
func (l *Layout) NumSlots() int { return len(l.slotTypes) }

// NumOutputSlots reports the number of output slots in the layout.
func (l *Layout) NumOutputSlots() int { return l.outputCount }

// NewFrame allocates a fresh, zeroed Frame for this layout: every input
// slot starts missing and every output slot starts at 0.
func (l *Layout) NewFrame() *Frame {
	f := &Frame{
		layout:  l,
		values:  make([]qtype.Value, len(l.slotTypes)),
		outputs: make([]float32, l.outputCount),
	}
	for i, qt := range l.slotTypes {
		f.values[i] = qtype.Missing(qt)
	}
	return f
}

// Frame is one row of addressable storage produced by a Layout.
type Frame struct {
	layout  *Layout
	values  []qtype.Value
	outputs []float32
}

// Get reads the value at slot.
func (f *Frame) Get(s Slot) qtype.Value { return f.values[s.index] }

// Set writes the value at slot.
func (f *Frame) Set(s Slot, v qtype.Value) { f.values[s.index] = v }

// Reset clears slot back to missing.
func (f *Frame) Reset(s Slot) { f.values[s.index] = qtype.Missing(f.values[s.index].QType()) }

// CopyTo copies this frame's value at s into other's value at otherSlot;
// the two frames may come from different layouts.
func (f *Frame) CopyTo(s Slot, other *Frame, otherSlot Slot) {
	other.values[otherSlot.index] = f.values[s.index]
}

// Output reads the accumulator at slot.
func (f *Frame) Output(s OutputSlot) float32 { return f.outputs[s.index] }

// SetOutput overwrites the accumulator at slot.
func (f *Frame) SetOutput(s OutputSlot, v float32) { f.outputs[s.index] = v }

// AddOutput adds delta into the accumulator at slot; every evaluator in
// this engine only ever adds to outputs, never overwrites, so that summing
// several sub-evaluators' contributions is just calling Eval repeatedly
// against the same frame.
func (f *Frame) AddOutput(s OutputSlot, delta float32) { f.outputs[s.index] += delta }

// ResetOutputs zeroes every output slot.
func (f *Frame) ResetOutputs() {
	for i := range f.outputs {
		f.outputs[i] = 0
	}
}
