package batched_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/batched"
	"github.com/katalvlaran/ensemble/columnar"
	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/pointwise"
	"github.com/katalvlaran/ensemble/qtype"
	"github.com/katalvlaran/ensemble/threading"
)

func mustInterval(t *testing.T, inputID int, left, right float32) condition.SplitCondition {
	t.Helper()
	c, err := condition.NewInterval(inputID, left, right)
	require.NoError(t, err)
	return c
}

func buildForest(t *testing.T, numTrees int) *forest.DecisionForest {
	t.Helper()
	trees := make([]forest.DecisionTree, numTrees)
	for i := 0; i < numTrees; i++ {
		threshold := float32(i)
		trees[i] = forest.DecisionTree{
			SplitNodes: []forest.SplitNode{
				{Condition: mustInterval(t, 0, threshold, float32(posInf())), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)},
			},
			Adjustments: []float32{0, 1},
			Weight:      1,
		}
	}
	f, err := forest.FromTrees(trees)
	require.NoError(t, err)
	return f
}

func negInf() float64 { var z float64; return -1 / z }
func posInf() float64 { var z float64; return 1 / z }

// TestScenario8_BatchedMatchesNaiveEvaluation builds a forest with enough
// trees that a small split budget forces several sub-evaluator partitions,
// then checks the batched evaluator's columnar output agrees row-for-row
// with the naive evaluation of the same, unpartitioned forest.
func TestScenario8_BatchedMatchesNaiveEvaluation(t *testing.T) {
	t.Parallel()
	f := buildForest(t, 25)

	batchedEv, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}},
		batched.WithOptimalSplitsPerEvaluator(4))
	require.NoError(t, err)

	xs := []float32{-5, 0, 3, 7, 12, 24, 30}
	inputCol := columnar.NewFloat32Array(xs)

	results, err := batchedEv.EvalColumnar(map[int]columnar.Array{0: inputCol})
	require.NoError(t, err)
	require.Len(t, results, 1)

	for row, x := range xs {
		want := f.Eval(map[int]qtype.Value{0: qtype.Float32Value(x)}, forest.DefaultTreeFilter())
		got, err := results[0].ValueAt(row)
		require.NoError(t, err)
		require.Equal(t, want, got.Float32())
	}
}

// TestBatched_ThreadedMatchesSequential checks EvalColumnarThreaded produces
// the same output as EvalColumnar for the same batch.
func TestBatched_ThreadedMatchesSequential(t *testing.T) {
	t.Parallel()
	f := buildForest(t, 25)

	batchedEv, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}},
		batched.WithOptimalSplitsPerEvaluator(4))
	require.NoError(t, err)

	n := 200
	xs := make([]float32, n)
	for i := range xs {
		xs[i] = float32(i%30) - 5
	}
	inputCol := columnar.NewFloat32Array(xs)

	sequential, err := batchedEv.EvalColumnar(map[int]columnar.Array{0: inputCol})
	require.NoError(t, err)

	pool := threading.NewPool(4)
	threaded, err := batchedEv.EvalColumnarThreaded(map[int]columnar.Array{0: inputCol}, pool)
	require.NoError(t, err)

	for row := range xs {
		a, err := sequential[0].ValueAt(row)
		require.NoError(t, err)
		b, err := threaded[0].ValueAt(row)
		require.NoError(t, err)
		require.Equal(t, a.Float32(), b.Float32())
	}
}

// TestBatched_SubForestSplitNeverSplitsATree checks that even a budget
// smaller than a single tree's split count still compiles, keeping that
// tree whole in its own partition rather than erroring or truncating it.
func TestBatched_SubForestSplitNeverSplitsATree(t *testing.T) {
	t.Parallel()
	bigTree := forest.DecisionTree{
		SplitNodes: []forest.SplitNode{
			{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.SplitNodeID(1), ChildIfTrue: forest.AdjustmentID(2)},
			{Condition: mustInterval(t, 0, -1, 0), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)},
		},
		Adjustments: []float32{0, 1, 2},
		Weight:      1,
	}
	f, err := forest.FromTrees([]forest.DecisionTree{bigTree})
	require.NoError(t, err)

	ev, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}},
		batched.WithOptimalSplitsPerEvaluator(1))
	require.NoError(t, err)

	inputCol := columnar.NewFloat32Array([]float32{-0.5, 0.5, 2})
	results, err := ev.EvalColumnar(map[int]columnar.Array{0: inputCol})
	require.NoError(t, err)

	for row, x := range []float32{-0.5, 0.5, 2} {
		want := f.Eval(map[int]qtype.Value{0: qtype.Float32Value(x)}, forest.DefaultTreeFilter())
		got, err := results[0].ValueAt(row)
		require.NoError(t, err)
		require.Equal(t, want, got.Float32())
	}
}

// TestBatched_MissingColumnErrors checks that a required input with no
// supplied column is reported rather than silently treated as missing.
func TestBatched_MissingColumnErrors(t *testing.T) {
	t.Parallel()
	f := buildForest(t, 1)
	ev, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}})
	require.NoError(t, err)

	_, err = ev.EvalColumnar(map[int]columnar.Array{})
	require.ErrorIs(t, err, batched.ErrMissingColumn)
}

// TestBatched_RowCountMismatchErrors checks that columns of different
// lengths are rejected rather than silently truncated.
func TestBatched_RowCountMismatchErrors(t *testing.T) {
	t.Parallel()
	trees := []forest.DecisionTree{
		{
			SplitNodes:  []forest.SplitNode{{Condition: mustInterval(t, 0, 0, 1), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)}},
			Adjustments: []float32{0, 1},
			Weight:      1,
		},
		{
			SplitNodes:  []forest.SplitNode{{Condition: mustInterval(t, 1, 0, 1), ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)}},
			Adjustments: []float32{0, 1},
			Weight:      1,
		},
	}
	f, err := forest.FromTrees(trees)
	require.NoError(t, err)
	ev, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}})
	require.NoError(t, err)

	_, err = ev.EvalColumnar(map[int]columnar.Array{
		0: columnar.NewFloat32Array([]float32{1, 2}),
		1: columnar.NewInt64Array([]int64{1, 2, 3}),
	})
	require.ErrorIs(t, err, batched.ErrRowCountMismatch)
}

// TestBatched_WithPointwiseOptionsForwarded checks that a disabled stage
// propagates down to every sub-evaluator rather than being dropped.
func TestBatched_WithPointwiseOptionsForwarded(t *testing.T) {
	t.Parallel()
	f := buildForest(t, 3)
	ev, err := batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}},
		batched.WithPointwiseOptions(pointwise.WithSingleInputEval(false), pointwise.WithBitmaskEval(false)))
	require.NoError(t, err)

	inputCol := columnar.NewFloat32Array([]float32{-1, 1, 2})
	results, err := ev.EvalColumnar(map[int]columnar.Array{0: inputCol})
	require.NoError(t, err)
	for row, x := range []float32{-1, 1, 2} {
		want := f.Eval(map[int]qtype.Value{0: qtype.Float32Value(x)}, forest.DefaultTreeFilter())
		got, err := results[0].ValueAt(row)
		require.NoError(t, err)
		require.Equal(t, want, got.Float32())
	}

	_, err = batched.Compile(f, []batched.Output{{Filter: forest.DefaultTreeFilter()}},
		batched.WithPointwiseOptions(pointwise.WithSingleInputEval(false), pointwise.WithBitmaskEval(false), pointwise.WithRegularEval(false)))
	require.Error(t, err)
}
