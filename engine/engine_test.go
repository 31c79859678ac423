package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/batched"
	"github.com/katalvlaran/ensemble/columnar"
	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/engine"
	"github.com/katalvlaran/ensemble/forest"
	"github.com/katalvlaran/ensemble/frame"
	"github.com/katalvlaran/ensemble/pointwise"
	"github.com/katalvlaran/ensemble/qtype"
)

func TestCompilePointwise_EndToEnd(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	tree := forest.DecisionTree{
		SplitNodes:  []forest.SplitNode{{Condition: cond, ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)}},
		Adjustments: []float32{-1, 1},
		Weight:      1,
	}

	builder := frame.NewBuilder()
	slot := builder.AddSlot(qtype.Float32)
	outSlot := builder.AddOutputSlot()
	layout := builder.Build()

	ev, err := engine.CompilePointwise([]forest.DecisionTree{tree}, map[int]frame.Slot{0: slot},
		[]pointwise.Output{{Filter: forest.DefaultTreeFilter(), Slot: outSlot}})
	require.NoError(t, err)

	row := layout.NewFrame()
	row.Set(slot, qtype.Float32Value(0.5))
	ev.Eval(row, row)
	require.Equal(t, float32(1), row.Output(outSlot))
}

func TestCompileBatched_EndToEnd(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	tree := forest.DecisionTree{
		SplitNodes:  []forest.SplitNode{{Condition: cond, ChildIfFalse: forest.AdjustmentID(0), ChildIfTrue: forest.AdjustmentID(1)}},
		Adjustments: []float32{-1, 1},
		Weight:      1,
	}

	ev, err := engine.CompileBatched([]forest.DecisionTree{tree}, []batched.Output{{Filter: forest.DefaultTreeFilter()}})
	require.NoError(t, err)

	col := columnar.NewFloat32Array([]float32{-5, 0.5, 5})
	results, err := ev.EvalColumnar(map[int]columnar.Array{0: col})
	require.NoError(t, err)

	want := []float32{-1, 1, -1}
	for row, w := range want {
		v, err := results[0].ValueAt(row)
		require.NoError(t, err)
		require.Equal(t, w, v.Float32())
	}
}
