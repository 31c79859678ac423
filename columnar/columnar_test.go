package columnar_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/columnar"
	"github.com/katalvlaran/ensemble/qtype"
)

func TestFloat32Array_PresenceMask(t *testing.T) {
	t.Parallel()
	arr := columnar.NewFloat32ArrayWithPresence([]float32{1, 2, 3}, []bool{true, false, true})
	require.Equal(t, 3, arr.Len())
	require.Equal(t, qtype.Float32, arr.QType())

	v, err := arr.ValueAt(0)
	require.NoError(t, err)
	require.True(t, v.Present())
	require.Equal(t, float32(1), v.Float32())

	v, err = arr.ValueAt(1)
	require.NoError(t, err)
	require.False(t, v.Present())

	_, err = arr.ValueAt(3)
	require.ErrorIs(t, err, columnar.ErrIndexOutOfRange)
}

func TestInt64Array_FullyPresent(t *testing.T) {
	t.Parallel()
	arr := columnar.NewInt64Array([]int64{10, 20})
	v, err := arr.ValueAt(1)
	require.NoError(t, err)
	require.Equal(t, int64(20), v.Int64())
}

func TestBytesArray_ValueAt(t *testing.T) {
	t.Parallel()
	arr := columnar.NewBytesArray([][]byte{[]byte("a"), []byte("b")})
	v, err := arr.ValueAt(0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), v.Bytes())
}

func TestMutableSequence_FreezeKeepsSetValues(t *testing.T) {
	t.Parallel()
	m := columnar.NewMutableSequence[int](3)
	m.Set(0, 1)
	m.Set(1, 2)
	m.Set(2, 3)
	seq := m.Freeze()

	require.Equal(t, 3, seq.Len())
	require.Equal(t, 2, seq.At(1))
}
