package qtype_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/ensemble/qtype"
)

func TestValue_PresentAndMissing(t *testing.T) {
	t.Parallel()
	present := qtype.Float32Value(1.5)
	require.True(t, present.Present())
	require.Equal(t, qtype.Float32, present.QType())
	require.Equal(t, float32(1.5), present.Float32())

	missing := qtype.Missing(qtype.Float32)
	require.False(t, missing.Present())
	require.Equal(t, qtype.Float32, missing.QType())
}

func TestValue_StringRendering(t *testing.T) {
	t.Parallel()
	require.Equal(t, "missing", qtype.Missing(qtype.Int64).String())
	require.Equal(t, "42", qtype.Int64Value(42).String())
	require.Equal(t, "b'x'", qtype.BytesValue([]byte("x")).String())
}

func TestQType_String(t *testing.T) {
	t.Parallel()
	require.Equal(t, "FLOAT32", qtype.Float32.String())
	require.Equal(t, "INT64", qtype.Int64.String())
	require.Equal(t, "BYTES", qtype.Bytes.String())
	require.Equal(t, "INVALID", qtype.Invalid.String())
}
