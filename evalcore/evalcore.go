// Package evalcore implements the shared regular-walk + bitmask machinery
// that both the full pointwise evaluator and the single-input evaluator's
// internal reference sub-evaluator compile against. Factoring it out here
// (rather than inside package pointwise) is what lets singleinput compile a
// restricted regular+bitmask-only evaluator to use as ground truth without
// pointwise and singleinput importing each other.
package evalcore

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/ensemble/bitmask"
	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/oblivious"
)

// ErrNoSuitableEvaluator is returned when a tree cannot be routed to any of
// the evaluators enabled by Params.
var ErrNoSuitableEvaluator = errors.New("evalcore: no enabled evaluator can handle this tree")

// Params gates which of the two evaluators this package may route trees
// to. Both enabled is the common case; singleinput's reference compilation
// disables neither (it never sets EnableRegular or EnableBitmask false),
// but the flags exist so callers with stricter requirements can insist on
// one path only.
type Params struct {
	EnableRegular bool
	EnableBitmask bool
}

// TreeGroup pairs a tree with the output group it contributes to.
type TreeGroup struct {
	Tree       *forest.DecisionTree
	GroupIndex int
}

// Evaluator runs a compiled mix of regular-walked and bitmask-resolved
// trees, adding every tree's contribution to its group's output slot.
type Evaluator struct {
	regular []regularJob
	bm      bitmask.Evaluator
	slots   map[int]frame.Slot
}

type regularJob struct {
	tree       *forest.DecisionTree
	groupIndex int
}

// Compile routes each tree in groups to the bitmask evaluator (oblivious
// view first, then a general small tree) when Params.EnableBitmask and the
// tree qualifies, otherwise to the regular walker when Params.EnableRegular,
// otherwise fails.
func Compile(groups []TreeGroup, slots map[int]frame.Slot, params Params) (*Evaluator, error) {
	bmBuilder := bitmask.NewBuilder(slots)
	var regularJobs []regularJob

	for _, g := range groups {
		routed := false
		if params.EnableBitmask && isBitmaskSupported(g.Tree) {
			if view, ok := oblivious.Detect(g.Tree); ok {
				if err := bmBuilder.AddObliviousTree(g.GroupIndex, view); err == nil {
					routed = true
				}
			}
			if !routed {
				if err := bmBuilder.AddSmallTree(g.GroupIndex, g.Tree); err == nil {
					routed = true
				}
			}
		}
		if !routed {
			if !params.EnableRegular {
				return nil, fmt.Errorf("%w", ErrNoSuitableEvaluator)
			}
			regularJobs = append(regularJobs, regularJob{tree: g.Tree, groupIndex: g.GroupIndex})
		}
	}

	var bm bitmask.Evaluator
	if !bmBuilder.Empty() {
		var err error
		bm, err = bmBuilder.Build()
		if err != nil {
			return nil, err
		}
	}
	return &Evaluator{regular: regularJobs, bm: bm, slots: slots}, nil
}

// isBitmaskSupported reports whether every split in t uses a condition kind
// the bitmask evaluator can process: intervals and int64 sets, but not
// bytes sets (mirroring the reference evaluator's split kind coverage).
func isBitmaskSupported(t *forest.DecisionTree) bool {
	for _, sn := range t.SplitNodes {
		switch sn.Condition.Kind() {
		case condition.KindInterval, condition.KindSetInt64:
		default:
			return false
		}
	}
	return true
}

// Eval adds every compiled tree's contribution into its group's output
// slot.
func (e *Evaluator) Eval(in *frame.Frame, groupOutputs []frame.OutputSlot, out *frame.Frame) {
	for _, rj := range e.regular {
		id := rj.tree.RootID()
		for !id.IsLeaf() {
			node := rj.tree.SplitNodes[id.SplitIndex()]
			sig := node.Condition.InputSignatures()[0]
			if node.Condition.Evaluate(in.Get(e.slots[sig.InputID])) {
				id = node.ChildIfTrue
			} else {
				id = node.ChildIfFalse
			}
		}
		out.AddOutput(groupOutputs[rj.groupIndex], rj.tree.Adjustments[id.AdjustmentIndex()]*rj.tree.Weight)
	}
	if e.bm != nil {
		e.bm.Eval(in, groupOutputs, out)
	}
}
