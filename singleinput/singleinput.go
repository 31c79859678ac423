// Package singleinput implements the piecewise-constant evaluator: trees
// whose every condition reads the same single input collapse to a step
// function of that one value, looked up by binary search instead of a tree
// walk or mask. Building the step function runs a restricted
// regular+bitmask-only reference evaluator (package evalcore) over the
// split points and their midpoints — the ground truth this evaluator must
// reproduce at runtime.
package singleinput

import (
	"errors"
	"math"
	"sort"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/evalcore"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/qtype"
)

// ErrUnsupportedCondition is returned when a tree queued for single-input
// compilation contains a condition that isn't an Interval or a
// SetOfValuesInt64, the only two kinds the piecewise compiler knows how to
// extract split points from.
var ErrUnsupportedCondition = errors.New("singleinput: condition kind not supported by single-input compilation")

// Evaluator runs every compiled piecewise-constant predictor, adding each
// group's sum into its output slot.
type Evaluator struct {
	groups []groupEvaluator
}

type groupEvaluator struct {
	groupIndex      int
	floatPredictors []*float32Piecewise
	int64Predictors []*int64Piecewise
}

// Eval adds the sum of every predictor's contribution into its group's
// output slot, summing the predictors' float32 results in float64 before a
// single add per group.
func (e *Evaluator) Eval(in *frame.Frame, groupOutputs []frame.OutputSlot, out *frame.Frame) {
	for _, g := range e.groups {
		var sum float64
		for _, p := range g.floatPredictors {
			sum += float64(p.Eval(in))
		}
		for _, p := range g.int64Predictors {
			sum += float64(p.Eval(in))
		}
		out.AddOutput(groupOutputs[g.groupIndex], float32(sum))
	}
}

// Builder accumulates trees known to be single-input-eligible, grouped by
// output group and then by the single input id they all read.
type Builder struct {
	numGroups int
	perGroup  []perGroupTrees
}

type perGroupTrees struct {
	floatTrees map[int][]forest.DecisionTree
	int64Trees map[int][]forest.DecisionTree
}

// NewBuilder returns an empty Builder for a forest with numGroups output
// groups.
func NewBuilder(numGroups int) *Builder {
	b := &Builder{numGroups: numGroups, perGroup: make([]perGroupTrees, numGroups)}
	for i := range b.perGroup {
		b.perGroup[i] = perGroupTrees{floatTrees: map[int][]forest.DecisionTree{}, int64Trees: map[int][]forest.DecisionTree{}}
	}
	return b
}

// AddTree queues t for the given group, keyed by the single input id its
// conditions read. qt must be qtype.Float32 or qtype.Int64.
func (b *Builder) AddTree(groupIndex, inputID int, qt qtype.QType, t forest.DecisionTree) error {
	switch qt {
	case qtype.Float32:
		b.perGroup[groupIndex].floatTrees[inputID] = append(b.perGroup[groupIndex].floatTrees[inputID], t)
	case qtype.Int64:
		b.perGroup[groupIndex].int64Trees[inputID] = append(b.perGroup[groupIndex].int64Trees[inputID], t)
	default:
		return ErrUnsupportedCondition
	}
	return nil
}

// Empty reports whether any tree has been queued.
func (b *Builder) Empty() bool {
	for _, g := range b.perGroup {
		if len(g.floatTrees) > 0 || len(g.int64Trees) > 0 {
			return false
		}
	}
	return true
}

// Build seals the queued trees into an Evaluator. slots must map every
// queued input id to the Slot it is bound to in the overall compiled frame
// layout.
func (b *Builder) Build(slots map[int]frame.Slot) (*Evaluator, error) {
	e := &Evaluator{}
	for gi, g := range b.perGroup {
		if len(g.floatTrees) == 0 && len(g.int64Trees) == 0 {
			continue
		}
		ge := groupEvaluator{groupIndex: gi}
		inputIDs := sortedKeys(g.floatTrees)
		for _, inputID := range inputIDs {
			p, err := buildFloatPiecewise(g.floatTrees[inputID], inputID, slots[inputID])
			if err != nil {
				return nil, err
			}
			ge.floatPredictors = append(ge.floatPredictors, p)
		}
		inputIDs = sortedKeys(g.int64Trees)
		for _, inputID := range inputIDs {
			p, err := buildInt64Piecewise(g.int64Trees[inputID], inputID, slots[inputID])
			if err != nil {
				return nil, err
			}
			ge.int64Predictors = append(ge.int64Predictors, p)
		}
		e.groups = append(e.groups, ge)
	}
	return e, nil
}

func sortedKeys(m map[int][]forest.DecisionTree) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// float32Piecewise looks up the value of a sum of single-float-input trees
// via binary search over precomputed split points.
type float32Piecewise struct {
	slot         frame.Slot
	splitPoints  []float32
	pointValues  []float32
	middleValues []float32
	missedValue  float32
}

func (p *float32Piecewise) Eval(in *frame.Frame) float32 {
	v := in.Get(p.slot)
	if !v.Present() || math.IsNaN(float64(v.Float32())) {
		return p.missedValue
	}
	x := v.Float32()
	idx := sort.Search(len(p.splitPoints), func(i int) bool { return p.splitPoints[i] >= x })
	if idx < len(p.splitPoints) {
		if p.splitPoints[idx] == x {
			return p.pointValues[idx]
		}
		return p.middleValues[idx]
	}
	return p.middleValues[len(p.middleValues)-1]
}

func buildFloatPiecewise(trees []forest.DecisionTree, inputID int, runtimeSlot frame.Slot) (*float32Piecewise, error) {
	splitPoints, err := floatSplitPoints(trees)
	if err != nil {
		return nil, err
	}
	evalAt, err := compileReferenceEvaluator(trees, inputID, qtype.Float32)
	if err != nil {
		return nil, err
	}

	pointValues := make([]float32, len(splitPoints))
	for i, sp := range splitPoints {
		pointValues[i] = evalAt(qtype.Float32Value(sp))
	}

	middleValues := make([]float32, 0, len(splitPoints)+1)
	if len(splitPoints) == 0 {
		middleValues = append(middleValues, evalAt(qtype.Float32Value(0)))
	} else {
		middleValues = append(middleValues, evalAt(qtype.Float32Value(-math.MaxFloat32)))
		for i := 1; i < len(splitPoints); i++ {
			mid := (splitPoints[i-1] + splitPoints[i]) / 2
			middleValues = append(middleValues, evalAt(qtype.Float32Value(mid)))
		}
		middleValues = append(middleValues, evalAt(qtype.Float32Value(math.MaxFloat32)))
	}
	missed := evalAt(qtype.Missing(qtype.Float32))

	return &float32Piecewise{
		slot:         runtimeSlot,
		splitPoints:  splitPoints,
		pointValues:  pointValues,
		middleValues: middleValues,
		missedValue:  missed,
	}, nil
}

func floatSplitPoints(trees []forest.DecisionTree) ([]float32, error) {
	var points []float32
	for _, t := range trees {
		for _, sn := range t.SplitNodes {
			switch c := sn.Condition.(type) {
			case condition.Interval:
				left, right := c.Left(), c.Right()
				if !math.IsInf(float64(left), -1) {
					points = append(points, left)
				}
				if !math.IsInf(float64(right), 1) && right != left {
					points = append(points, right)
				}
			default:
				return nil, ErrUnsupportedCondition
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return dedupeFloat32(points), nil
}

func dedupeFloat32(s []float32) []float32 {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// int64Piecewise is the int64-keyed analogue of float32Piecewise: split
// points are exact set members rather than interval bounds, so every lookup
// is either an exact point or, between two points, their integer midpoint.
type int64Piecewise struct {
	slot         frame.Slot
	splitPoints  []int64
	pointValues  []float32
	middleValues []float32
	missedValue  float32
}

func (p *int64Piecewise) Eval(in *frame.Frame) float32 {
	v := in.Get(p.slot)
	if !v.Present() {
		return p.missedValue
	}
	x := v.Int64()
	idx := sort.Search(len(p.splitPoints), func(i int) bool { return p.splitPoints[i] >= x })
	if idx < len(p.splitPoints) {
		if p.splitPoints[idx] == x {
			return p.pointValues[idx]
		}
		return p.middleValues[idx]
	}
	return p.middleValues[len(p.middleValues)-1]
}

func buildInt64Piecewise(trees []forest.DecisionTree, inputID int, runtimeSlot frame.Slot) (*int64Piecewise, error) {
	splitPoints, err := int64SplitPoints(trees)
	if err != nil {
		return nil, err
	}
	evalAt, err := compileReferenceEvaluator(trees, inputID, qtype.Int64)
	if err != nil {
		return nil, err
	}

	pointValues := make([]float32, len(splitPoints))
	for i, sp := range splitPoints {
		pointValues[i] = evalAt(qtype.Int64Value(sp))
	}

	middleValues := make([]float32, 0, len(splitPoints)+1)
	if len(splitPoints) == 0 {
		middleValues = append(middleValues, evalAt(qtype.Int64Value(0)))
	} else {
		middleValues = append(middleValues, evalAt(qtype.Int64Value(math.MinInt64)))
		for i := 1; i < len(splitPoints); i++ {
			mid := splitPoints[i-1] + (splitPoints[i]-splitPoints[i-1])/2
			middleValues = append(middleValues, evalAt(qtype.Int64Value(mid)))
		}
		middleValues = append(middleValues, evalAt(qtype.Int64Value(math.MaxInt64)))
	}
	missed := evalAt(qtype.Missing(qtype.Int64))

	return &int64Piecewise{
		slot:         runtimeSlot,
		splitPoints:  splitPoints,
		pointValues:  pointValues,
		middleValues: middleValues,
		missedValue:  missed,
	}, nil
}

func int64SplitPoints(trees []forest.DecisionTree) ([]int64, error) {
	var points []int64
	for _, t := range trees {
		for _, sn := range t.SplitNodes {
			switch c := sn.Condition.(type) {
			case condition.SetOfValuesInt64:
				points = append(points, c.Values()...)
			default:
				return nil, ErrUnsupportedCondition
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return dedupeInt64(points), nil
}

func dedupeInt64(s []int64) []int64 {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// compileReferenceEvaluator builds the restricted regular+bitmask-only
// evaluator used purely at compile time to compute ground-truth values at
// split points and midpoints.
func compileReferenceEvaluator(trees []forest.DecisionTree, inputID int, qt qtype.QType) (func(qtype.Value) float32, error) {
	subForest, err := forest.FromTrees(append([]forest.DecisionTree(nil), trees...))
	if err != nil {
		return nil, err
	}

	builder := frame.NewBuilder()
	slot := builder.AddSlot(qt)
	outSlot := builder.AddOutputSlot()
	layout := builder.Build()

	slots := map[int]frame.Slot{inputID: slot}
	subTrees := subForest.Trees()
	groups := make([]evalcore.TreeGroup, len(subTrees))
	for i := range subTrees {
		groups[i] = evalcore.TreeGroup{Tree: &subTrees[i], GroupIndex: 0}
	}
	ref, err := evalcore.Compile(groups, slots, evalcore.Params{EnableRegular: true, EnableBitmask: true})
	if err != nil {
		return nil, err
	}

	return func(v qtype.Value) float32 {
		f := layout.NewFrame()
		f.Set(slot, v)
		ref.Eval(f, []frame.OutputSlot{outSlot}, f)
		return f.Output(outSlot)
	}, nil
}
