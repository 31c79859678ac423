package condition_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/condition"
	"github.com/katalvlaran/ensemble/qtype"
)

func TestInterval_EvaluateAndBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value qtype.Value
		want  bool
	}{
		{"below", qtype.Float32Value(-1), false},
		{"leftInclusive", qtype.Float32Value(0), true},
		{"inside", qtype.Float32Value(0.5), true},
		{"rightInclusive", qtype.Float32Value(1), true},
		{"above", qtype.Float32Value(1.5), false},
		{"missing", qtype.Missing(qtype.Float32), false},
	}

	cond, err := condition.NewInterval(3, 0, 1)
	require.NoError(t, err)

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, cond.Evaluate(tc.value))
		})
	}
}

func TestInterval_NaNAlwaysFalse(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	require.False(t, cond.Evaluate(qtype.Float32Value(float32(nan()))))
}

func nan() float64 { var z float64; return z / z }

func TestInterval_InvertedRejected(t *testing.T) {
	t.Parallel()
	_, err := condition.NewInterval(0, 1, 0)
	require.ErrorIs(t, err, condition.ErrInvertedInterval)
}

func TestInterval_String(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	require.Equal(t, "#0 in range [0.000000 1.000000]", cond.String())
}

func TestSetOfValuesInt64_DefaultIfMissed(t *testing.T) {
	t.Parallel()
	withDefault, err := condition.NewSetOfValuesInt64(0, []int64{1, 2}, true)
	require.NoError(t, err)
	withoutDefault, err := condition.NewSetOfValuesInt64(0, []int64{1, 2}, false)
	require.NoError(t, err)

	missing := qtype.Missing(qtype.Int64)
	require.True(t, withDefault.Evaluate(missing))
	require.False(t, withoutDefault.Evaluate(missing))

	require.True(t, withDefault.Evaluate(qtype.Int64Value(1)))
	require.False(t, withDefault.Evaluate(qtype.Int64Value(3)))
}

func TestSetOfValuesInt64_EmptyRejected(t *testing.T) {
	t.Parallel()
	_, err := condition.NewSetOfValuesInt64(0, nil, false)
	require.True(t, errors.Is(err, condition.ErrEmptySet))
}

func TestSetOfValuesBytes_Membership(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewSetOfValuesBytes(0, [][]byte{[]byte("X")}, false)
	require.NoError(t, err)

	require.True(t, cond.Evaluate(qtype.BytesValue([]byte("X"))))
	require.False(t, cond.Evaluate(qtype.BytesValue([]byte("Y"))))
	require.False(t, cond.Evaluate(qtype.Missing(qtype.Bytes)))
}

func TestEqual_DistinguishesKindAndBounds(t *testing.T) {
	t.Parallel()
	a, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	b, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	c, err := condition.NewInterval(0, 0, 2)
	require.NoError(t, err)
	d, err := condition.NewSetOfValuesInt64(0, []int64{1}, false)
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestHash_StableAndSensitive(t *testing.T) {
	t.Parallel()
	a, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	b, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	c, err := condition.NewInterval(0, 0, 2)
	require.NoError(t, err)

	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestRemapInputs(t *testing.T) {
	t.Parallel()
	cond, err := condition.NewInterval(0, 0, 1)
	require.NoError(t, err)
	remapped := cond.RemapInputs(map[int]int{0: 7})
	require.Equal(t, 7, remapped.InputSignatures()[0].InputID)

	untouched := cond.RemapInputs(map[int]int{5: 9})
	require.Equal(t, 0, untouched.InputSignatures()[0].InputID)
}
