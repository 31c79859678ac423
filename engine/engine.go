// Package engine is the public front door: it wraps forest construction
// and evaluator compilation behind two calls, CompilePointwise and
// CompileBatched, the same role algorithms/ plays wrapping core.Graph and
// the traversal packages behind a friendlier API.
package engine

import (
	"github.com/katalvlaran/ensemble/batched"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/pointwise"
)

// PointwiseEvaluator evaluates one row at a time against a shared frame
// layout the caller owns.
type PointwiseEvaluator struct {
	*pointwise.Evaluator
}

// CompilePointwise builds the trees into a forest and compiles a pointwise
// evaluator against it. inputSlots must bind every input id the trees
// reference to a Slot in the caller's frame layout.
func CompilePointwise(trees []forest.DecisionTree, inputSlots map[int]frame.Slot, outputs []pointwise.Output, opts ...pointwise.CompilationOption) (*PointwiseEvaluator, error) {
	f, err := forest.FromTrees(trees)
	if err != nil {
		return nil, err
	}
	ev, err := pointwise.Compile(f, inputSlots, outputs, opts...)
	if err != nil {
		return nil, err
	}
	return &PointwiseEvaluator{ev}, nil
}

// BatchedEvaluator evaluates a full columnar batch at once, owning its own
// frame layout.
type BatchedEvaluator struct {
	*batched.Evaluator
}

// CompileBatched builds the trees into a forest and compiles a batched
// evaluator against it, allocating its own input and output slots.
func CompileBatched(trees []forest.DecisionTree, outputs []batched.Output, opts ...batched.CompilationOption) (*BatchedEvaluator, error) {
	f, err := forest.FromTrees(trees)
	if err != nil {
		return nil, err
	}
	ev, err := batched.Compile(f, outputs, opts...)
	if err != nil {
		return nil, err
	}
	return &BatchedEvaluator{ev}, nil
}
