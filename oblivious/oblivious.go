// Package oblivious detects and represents oblivious decision trees: perfect
// binary trees where every node at a given depth shares the same split
// condition. BitmaskEvaluator gives these a much cheaper encoding than a
// general tree. Detection walks the tree pre-order with the false branch
// visited before the true branch at every split, the same traversal order
// dfs.dfsWalker uses for its pre/post-order hooks.
package oblivious

import (
	"math/bits"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/forest"
)

// View is the oblivious encoding of a DecisionTree: one condition per layer
// (LayerSplits[d] is shared by every split node at depth d) and the leaf
// adjustments in canonical order (leaf index == the bitmask accumulated by
// OR-ing in each layer's true-branch contribution).
type View struct {
	Tag         forest.Tag
	LayerSplits []condition.SplitCondition
	Adjustments []float32
}

// Detect attempts to view t as an oblivious tree. It returns ok == false
// when t is not a perfect binary tree or when any two nodes at the same
// depth disagree on their condition.
func Detect(t *forest.DecisionTree) (view *View, ok bool) {
	n := len(t.Adjustments)
	if n == 0 || n&(n-1) != 0 {
		return nil, false
	}
	depth := bits.TrailingZeros(uint(n))

	layerSplits := make([]condition.SplitCondition, depth)
	haveLayer := make([]bool, depth)
	adjustments := make([]float32, 0, n)

	var walk func(id forest.NodeId, level int) bool
	walk = func(id forest.NodeId, level int) bool {
		if id.IsLeaf() {
			if level != depth {
				return false
			}
			adjustments = append(adjustments, t.Adjustments[id.AdjustmentIndex()]*t.Weight)
			return true
		}
		if level >= depth {
			return false
		}
		node := t.SplitNodes[id.SplitIndex()]
		if !haveLayer[level] {
			layerSplits[level] = node.Condition
			haveLayer[level] = true
		} else if !layerSplits[level].Equal(node.Condition) {
			return false
		}
		// False branch first, matching the canonical leaf enumeration order.
		if !walk(node.ChildIfFalse, level+1) {
			return false
		}
		return walk(node.ChildIfTrue, level+1)
	}

	if !walk(t.RootID(), 0) {
		return nil, false
	}
	return &View{Tag: t.Tag, LayerSplits: layerSplits, Adjustments: adjustments}, true
}

// Depth returns the number of layers (log2 of the leaf count).
func (v *View) Depth() int { return len(v.LayerSplits) }
