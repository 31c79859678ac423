package oblivious_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/oblivious"
	"github.com/katalvlaran/ensemble/qtype"
)

func mustInterval(t *testing.T, inputID int, left, right float32) condition.SplitCondition {
	t.Helper()
	c, err := condition.NewInterval(inputID, left, right)
	require.NoError(t, err)
	return c
}

// buildObliviousDepth2 builds a depth-2 oblivious tree: layer 0 splits on
// #0 in [-inf, 1], layer 1 splits on #0 in [-1, inf] at both nodes, giving
// four leaves in canonical false-first DFS order.
func buildObliviousDepth2(t *testing.T) forest.DecisionTree {
	t.Helper()
	layer0 := mustInterval(t, 0, negInf(), 1)
	layer1 := mustInterval(t, 0, -1, posInf())
	return forest.DecisionTree{
		SplitNodes: []forest.SplitNode{
			{Condition: layer0, ChildIfFalse: forest.SplitNodeID(1), ChildIfTrue: forest.SplitNodeID(2)},
			{Condition: layer1, ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)},
			{Condition: layer1, ChildIfFalse: forest.AdjustmentID(2), ChildIfTrue: forest.AdjustmentID(3)},
		},
		Adjustments: []float32{0, 1, 2, 3},
		Weight:      1,
		Tag:         forest.Tag{Step: 0, SubmodelID: 0},
	}
}

func negInf() float32 { return float32(negInf64()) }
func posInf() float32 { return float32(posInf64()) }
func negInf64() float64 { return -1.0 / zero() }
func posInf64() float64 { return 1.0 / zero() }
func zero() float64 { var z float64; return z }

func TestDetect_AcceptsObliviousTree(t *testing.T) {
	t.Parallel()
	tree := buildObliviousDepth2(t)

	view, ok := oblivious.Detect(&tree)
	require.True(t, ok)
	require.Equal(t, 2, view.Depth())
	require.Equal(t, []float32{0, 1, 2, 3}, view.Adjustments)
}

func TestDetect_AgreesWithNaiveEvaluation(t *testing.T) {
	t.Parallel()
	tree := buildObliviousDepth2(t)
	view, ok := oblivious.Detect(&tree)
	require.True(t, ok)

	inputs := []qtype.Value{
		qtype.Missing(qtype.Float32),
		qtype.Float32Value(-5),
		qtype.Float32Value(-1),
		qtype.Float32Value(0.5),
		qtype.Float32Value(1),
		qtype.Float32Value(5),
	}
	for _, v := range inputs {
		want := forest.NaiveEvaluation(&tree, map[int]qtype.Value{0: v})

		leaf := 0
		if view.LayerSplits[0].Evaluate(v) {
			leaf |= 2
		}
		if view.LayerSplits[1].Evaluate(v) {
			leaf |= 1
		}
		got := view.Adjustments[leaf]
		require.Equal(t, want, got)
	}
}

func TestDetect_RejectsNonPowerOfTwoLeafCount(t *testing.T) {
	t.Parallel()
	tree := forest.DecisionTree{
		SplitNodes: []forest.SplitNode{
			{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.SplitNodeID(1)},
			{Condition: mustInterval(t, 0, 1, 2), ChildIfFalse: forest.AdjustmentID(1), ChildIfTrue: forest.AdjustmentID(2)},
		},
		Adjustments: []float32{0, 1, 2},
		Weight:      1,
	}
	_, ok := oblivious.Detect(&tree)
	require.False(t, ok)
}

func TestDetect_RejectsMismatchedLayerConditions(t *testing.T) {
	t.Parallel()
	layer0 := mustInterval(t, 0, negInf(), 1)
	left := mustInterval(t, 0, -1, posInf())
	right := mustInterval(t, 0, -2, posInf())
	tree := forest.DecisionTree{
		SplitNodes: []forest.SplitNode{
			{Condition: layer0, ChildIfFalse: forest.SplitNodeID(1), ChildIfTrue: forest.SplitNodeID(2)},
			{Condition: left, ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)},
			{Condition: right, ChildIfFalse: forest.AdjustmentID(2), ChildIfTrue: forest.AdjustmentID(3)},
		},
		Adjustments: []float32{0, 1, 2, 3},
		Weight:      1,
	}
	_, ok := oblivious.Detect(&tree)
	require.False(t, ok)
}

func TestDetect_RejectsUnbalancedDepth(t *testing.T) {
	t.Parallel()
	tree := forest.DecisionTree{
		SplitNodes: []forest.SplitNode{
			{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.SplitNodeID(1)},
			{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.AdjustmentID(1), ChildIfTrue: forest.SplitNodeID(2)},
			{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.AdjustmentID(2), ChildIfTrue: forest.AdjustmentID(3)},
		},
		Adjustments: []float32{0, 1, 2, 3},
		Weight:      1,
	}
	_, ok := oblivious.Detect(&tree)
	require.False(t, ok)
}
