// Package bitmask implements the mask-based tree evaluator: instead of
// walking a tree node by node, every split's condition is evaluated
// independently and the results are combined with OR into a single integer
// mask that encodes the reached leaf directly. This trades one extra
// accumulator word per tree for removing the pointer-chasing walk, the same
// trade prim_kruskal's union-find makes by replacing repeated tree-walks
// with O(1) amortized lookups.
//
// At each split, exactly one of its two children's leaf index range is
// "excluded" depending on which way the condition evaluates; every leaf
// other than the one actually reached gets excluded by the split where its
// path diverges from the reached leaf's path (their lowest common
// ancestor), leaving exactly one leaf index whose bit is never set. That
// index is the lowest zero bit of the accumulated mask.
package bitmask

import (
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/oblivious"
)

// KMaxRegions is the maximum number of leaves a single tree can have and
// still be representable with a 64-bit mask, the widest Mask this package
// supports.
const KMaxRegions = 64

// ErrTooManyLeaves is returned when a tree has more leaves than the widest
// supported mask can address.
var ErrTooManyLeaves = errors.New("bitmask: tree has more leaves than a 64-bit mask can address")

// Mask is the accumulator type a compiled Evaluator uses: uint32 when every
// tree fits in 32 leaves, uint64 otherwise.
type Mask interface {
	constraints.Unsigned
}

// Evaluator runs a set of precompiled trees, grouped by output index, using
// the mask technique. Build it with Build.
type Evaluator interface {
	// Eval adds every tree's contribution into the output slot for its
	// group, via out.AddOutput.
	Eval(in *frame.Frame, groupOutputs []frame.OutputSlot, out *frame.Frame)
}

type regularEntry[M Mask] struct {
	groupIndex int
	weight     float32
	splits     []splitMask[M]
	leaves     []float32 // adjustment*weight, indexed by DFS leaf order
}

type splitMask[M Mask] struct {
	cond      condition.SplitCondition
	slot      frame.Slot
	falseMask M
	trueMask  M
}

type obliviousEntry[M Mask] struct {
	groupIndex int
	layers     []layerCond
	leaves     []float32
}

type layerCond struct {
	cond condition.SplitCondition
	slot frame.Slot
}

type evaluator[M Mask] struct {
	regular   []regularEntry[M]
	oblivious []obliviousEntry[M]
}

// Eval implements Evaluator.
func (e *evaluator[M]) Eval(in *frame.Frame, groupOutputs []frame.OutputSlot, out *frame.Frame) {
	for i := range e.regular {
		ent := &e.regular[i]
		var acc M
		for _, sm := range ent.splits {
			if sm.cond.Evaluate(in.Get(sm.slot)) {
				acc |= sm.falseMask
			} else {
				acc |= sm.trueMask
			}
		}
		leaf := bits.TrailingZeros64(uint64(^acc))
		out.AddOutput(groupOutputs[ent.groupIndex], ent.leaves[leaf])
	}
	for i := range e.oblivious {
		ent := &e.oblivious[i]
		leaf := 0
		depth := len(ent.layers)
		for d, lc := range ent.layers {
			if lc.cond.Evaluate(in.Get(lc.slot)) {
				leaf |= 1 << uint(depth-1-d)
			}
		}
		out.AddOutput(groupOutputs[ent.groupIndex], ent.leaves[leaf])
	}
}

// Builder accumulates trees (already known to be bitmask-eligible) before
// sealing them into an Evaluator with the narrowest adequate Mask width.
type Builder struct {
	slots        map[int]frame.Slot
	smallTrees   []smallTreeJob
	obliviousTrs []obliviousTreeJob
	maxLeaves    int
}

type smallTreeJob struct {
	groupIndex int
	tree       *forest.DecisionTree
}

type obliviousTreeJob struct {
	groupIndex int
	view       *oblivious.View
}

// NewBuilder returns an empty Builder. slots must map every input id used
// by any added tree's conditions to its bound Slot.
func NewBuilder(slots map[int]frame.Slot) *Builder {
	return &Builder{slots: slots}
}

// AddSmallTree queues a general (non-oblivious) tree for the given output
// group. It is rejected if it has more leaves than KMaxRegions.
func (b *Builder) AddSmallTree(groupIndex int, t *forest.DecisionTree) error {
	n := len(t.Adjustments)
	if n > KMaxRegions {
		return fmt.Errorf("%w: %d leaves", ErrTooManyLeaves, n)
	}
	b.smallTrees = append(b.smallTrees, smallTreeJob{groupIndex: groupIndex, tree: t})
	if n > b.maxLeaves {
		b.maxLeaves = n
	}
	return nil
}

// AddObliviousTree queues an already-detected oblivious tree for the given
// output group. It is rejected if its leaf count exceeds KMaxRegions.
func (b *Builder) AddObliviousTree(groupIndex int, v *oblivious.View) error {
	n := 1 << v.Depth()
	if n > KMaxRegions {
		return fmt.Errorf("%w: %d leaves", ErrTooManyLeaves, n)
	}
	b.obliviousTrs = append(b.obliviousTrs, obliviousTreeJob{groupIndex: groupIndex, view: v})
	if n > b.maxLeaves {
		b.maxLeaves = n
	}
	return nil
}

// Empty reports whether any tree has been queued.
func (b *Builder) Empty() bool { return len(b.smallTrees) == 0 && len(b.obliviousTrs) == 0 }

// Build seals the queued trees into an Evaluator, picking uint32 when every
// tree fits in 32 leaves and uint64 otherwise.
func (b *Builder) Build() (Evaluator, error) {
	if b.maxLeaves <= 32 {
		return build[uint32](b)
	}
	return build[uint64](b)
}

func build[M Mask](b *Builder) (Evaluator, error) {
	e := &evaluator[M]{}
	for _, job := range b.smallTrees {
		entry, err := compileSmallTree[M](job.tree, job.groupIndex, b.slots)
		if err != nil {
			return nil, err
		}
		e.regular = append(e.regular, entry)
	}
	for _, job := range b.obliviousTrs {
		e.oblivious = append(e.oblivious, compileObliviousTree[M](job.view, job.groupIndex, b.slots))
	}
	return e, nil
}

func compileSmallTree[M Mask](t *forest.DecisionTree, groupIndex int, slots map[int]frame.Slot) (regularEntry[M], error) {
	n := len(t.Adjustments)
	splits := make([]splitMask[M], len(t.SplitNodes))
	leaves := make([]float32, n)
	leafCounter := 0

	var assign func(id forest.NodeId) (lo, hi int)
	assign = func(id forest.NodeId) (int, int) {
		if id.IsLeaf() {
			lo := leafCounter
			leaves[lo] = t.Adjustments[id.AdjustmentIndex()] * t.Weight
			leafCounter++
			return lo, lo + 1
		}
		node := t.SplitNodes[id.SplitIndex()]
		flo, fhi := assign(node.ChildIfFalse)
		tlo, thi := assign(node.ChildIfTrue)
		var fm, tm M
		for i := flo; i < fhi; i++ {
			fm |= M(1) << uint(i)
		}
		for i := tlo; i < thi; i++ {
			tm |= M(1) << uint(i)
		}
		sig := node.Condition.InputSignatures()[0]
		slot, ok := slots[sig.InputID]
		if !ok {
			panic(fmt.Sprintf("bitmask: no slot bound for input #%d", sig.InputID))
		}
		splits[id.SplitIndex()] = splitMask[M]{cond: node.Condition, slot: slot, falseMask: fm, trueMask: tm}
		return flo, thi
	}
	assign(t.RootID())

	return regularEntry[M]{groupIndex: groupIndex, weight: t.Weight, splits: splits, leaves: leaves}, nil
}

func compileObliviousTree[M Mask](v *oblivious.View, groupIndex int, slots map[int]frame.Slot) obliviousEntry[M] {
	layers := make([]layerCond, len(v.LayerSplits))
	for i, c := range v.LayerSplits {
		sig := c.InputSignatures()[0]
		slot, ok := slots[sig.InputID]
		if !ok {
			panic(fmt.Sprintf("bitmask: no slot bound for input #%d", sig.InputID))
		}
		layers[i] = layerCond{cond: c, slot: slot}
	}
	return obliviousEntry[M]{groupIndex: groupIndex, layers: layers, leaves: v.Adjustments}
}
