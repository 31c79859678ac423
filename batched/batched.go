// Package batched implements the columnar entry point: it compiles a forest
// into one shared frame layout and a handful of pointwise sub-evaluators
// (the forest partitioned so no single evaluator exceeds a configurable
// split budget), then streams a batch of columnar input arrays through them
// row by row, summing every sub-evaluator's contribution per row, the way
// flow's package sums partitioned subgraph results back into one answer.
package batched

import (
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/ensemble/columnar"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/frameiter"
	"github.com/katalvlaran/ensemble/pointwise"
	"github.com/katalvlaran/ensemble/qtype"
	"github.com/katalvlaran/ensemble/threading"
)

// ErrRowCountMismatch is returned when the supplied input columns don't all
// report the same length.
var ErrRowCountMismatch = errors.New("batched: input columns have mismatched row counts")

// ErrMissingColumn is returned when a required input id has no column
// supplied at evaluation time.
var ErrMissingColumn = errors.New("batched: no column supplied for required input")

const defaultOptimalSplitsPerEvaluator = 500000

// Output names a TreeFilter selecting the subset of a forest's trees whose
// combined contribution becomes one output column.
type Output struct {
	Filter forest.TreeFilter
}

// CompilationParams controls how a forest is partitioned across
// sub-evaluators and which pointwise stages each sub-evaluator may use.
type CompilationParams struct {
	optimalSplitsPerEvaluator int
	pointwiseOpts             []pointwise.CompilationOption
}

// CompilationOption configures a CompilationParams.
type CompilationOption func(*CompilationParams)

// WithOptimalSplitsPerEvaluator bounds how many split nodes, summed across
// its trees, a single sub-evaluator may own before the forest is split
// across another one.
func WithOptimalSplitsPerEvaluator(n int) CompilationOption {
	return func(p *CompilationParams) { p.optimalSplitsPerEvaluator = n }
}

// WithPointwiseOptions forwards options to every sub-evaluator's
// pointwise.Compile call.
func WithPointwiseOptions(opts ...pointwise.CompilationOption) CompilationOption {
	return func(p *CompilationParams) { p.pointwiseOpts = opts }
}

func newCompilationParams(opts ...CompilationOption) CompilationParams {
	p := CompilationParams{optimalSplitsPerEvaluator: defaultOptimalSplitsPerEvaluator}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Evaluator is a compiled batched forest evaluator.
type Evaluator struct {
	layout        *frame.Layout
	inputSlots    map[int]frame.Slot
	inputQTypes   map[int]qtype.QType
	outputSlots   []frame.OutputSlot
	subEvaluators []*pointwise.Evaluator
}

// Compile partitions f's trees into sub-forests of at most
// optimalSplitsPerEvaluator split nodes each (a single tree with more splits
// than that gets a sub-forest of its own), compiles one pointwise
// evaluator per sub-forest against a single shared frame layout, and
// returns an Evaluator ready to stream columnar batches through.
func Compile(f *forest.DecisionForest, outputs []Output, opts ...CompilationOption) (*Evaluator, error) {
	params := newCompilationParams(opts...)

	builder := frame.NewBuilder()
	inputSlots := make(map[int]frame.Slot)
	ids := make([]int, 0, len(f.RequiredQTypes()))
	for id := range f.RequiredQTypes() {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		inputSlots[id] = builder.AddSlot(f.RequiredQTypes()[id])
	}

	outputSlots := make([]frame.OutputSlot, len(outputs))
	for i := range outputs {
		outputSlots[i] = builder.AddOutputSlot()
	}
	layout := builder.Build()

	partitions := partitionTrees(f.Trees(), params.optimalSplitsPerEvaluator)
	subEvaluators := make([]*pointwise.Evaluator, 0, len(partitions))
	for _, part := range partitions {
		subForest, err := forest.FromTrees(part)
		if err != nil {
			return nil, err
		}
		pwOutputs := make([]pointwise.Output, len(outputs))
		for i, o := range outputs {
			pwOutputs[i] = pointwise.Output{Filter: o.Filter, Slot: outputSlots[i]}
		}
		sub, err := pointwise.Compile(subForest, inputSlots, pwOutputs, params.pointwiseOpts...)
		if err != nil {
			return nil, err
		}
		subEvaluators = append(subEvaluators, sub)
	}

	return &Evaluator{
		layout:        layout,
		inputSlots:    inputSlots,
		inputQTypes:   f.RequiredQTypes(),
		outputSlots:   outputSlots,
		subEvaluators: subEvaluators,
	}, nil
}

// partitionTrees groups trees into contiguous runs whose summed split-node
// count does not exceed budget (a single tree exceeding budget still gets
// its own partition, never split mid-tree).
func partitionTrees(trees []forest.DecisionTree, budget int) [][]forest.DecisionTree {
	var partitions [][]forest.DecisionTree
	var current []forest.DecisionTree
	currentSplits := 0
	for _, t := range trees {
		n := len(t.SplitNodes)
		if len(current) > 0 && currentSplits+n > budget {
			partitions = append(partitions, current)
			current = nil
			currentSplits = 0
		}
		current = append(current, t)
		currentSplits += n
	}
	if len(current) > 0 {
		partitions = append(partitions, current)
	}
	return partitions
}

// EvalRow adds every sub-evaluator's contribution into out's output slots,
// reading inputs from in.
func (e *Evaluator) EvalRow(in, out *frame.Frame) {
	for _, sub := range e.subEvaluators {
		sub.Eval(in, out)
	}
}

// NewFrame allocates a frame compatible with this evaluator's layout.
func (e *Evaluator) NewFrame() *frame.Frame { return e.layout.NewFrame() }

// OutputSlots returns the output slots, in the order Compile's outputs were
// given.
func (e *Evaluator) OutputSlots() []frame.OutputSlot { return e.outputSlots }

// columnSource adapts a map of columnar.Array inputs into a frameiter.Source.
type columnSource struct {
	cols  map[int]columnar.Array
	slots map[int]frame.Slot
	n     int
}

func (s *columnSource) Len() int { return s.n }

func (s *columnSource) Fill(row int, f *frame.Frame) error {
	for id, slot := range s.slots {
		col, ok := s.cols[id]
		if !ok {
			return fmt.Errorf("%w: #%d", ErrMissingColumn, id)
		}
		v, err := col.ValueAt(row)
		if err != nil {
			return err
		}
		f.Set(slot, v)
	}
	return nil
}

// columnSink collects each row's output slots into per-output float32
// buffers.
type columnSink struct {
	slots []frame.OutputSlot
	out   [][]float32
}

func (s *columnSink) Collect(row int, f *frame.Frame) error {
	for i, slot := range s.slots {
		s.out[i][row] = f.Output(slot)
	}
	return nil
}

// EvalColumnar streams inputs (one column per required input id) through
// the compiled sub-evaluators row by row, sequentially, and returns one
// dense float32 output column per Output given to Compile, in order.
func (e *Evaluator) EvalColumnar(inputs map[int]columnar.Array) ([]*columnar.Float32Array, error) {
	return e.evalColumnar(inputs, nil)
}

// EvalColumnarThreaded is EvalColumnar fanned out across pool's workers.
func (e *Evaluator) EvalColumnarThreaded(inputs map[int]columnar.Array, pool *threading.Pool) ([]*columnar.Float32Array, error) {
	return e.evalColumnar(inputs, pool)
}

func (e *Evaluator) evalColumnar(inputs map[int]columnar.Array, pool *threading.Pool) ([]*columnar.Float32Array, error) {
	n := -1
	for id := range e.inputQTypes {
		col, ok := inputs[id]
		if !ok {
			return nil, fmt.Errorf("%w: #%d", ErrMissingColumn, id)
		}
		if n == -1 {
			n = col.Len()
		} else if col.Len() != n {
			return nil, ErrRowCountMismatch
		}
	}
	if n == -1 {
		n = 0
	}

	out := make([][]float32, len(e.outputSlots))
	for i := range out {
		out[i] = make([]float32, n)
	}

	src := &columnSource{cols: inputs, slots: e.inputSlots, n: n}
	sink := &columnSink{slots: e.outputSlots, out: out}
	process := func(f *frame.Frame) { e.EvalRow(f, f) }

	var err error
	if pool != nil {
		err = frameiter.ForEachThreaded(e.layout, src, sink, process, pool)
	} else {
		err = frameiter.ForEach(e.layout, src, sink, process)
	}
	if err != nil {
		return nil, err
	}

	result := make([]*columnar.Float32Array, len(out))
	for i, col := range out {
		result[i] = columnar.NewFloat32Array(col)
	}
	return result, nil
}
