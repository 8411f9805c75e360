package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "name", Type: StringArgument{}},
		{Name: "count", Type: Int64Argument{}},
		{Name: "payload", Type: Big{Inner: BytesArgument{}}},
	}
}

func TestEncodeDecodeArgumentsRoundTrip(t *testing.T) {
	values := map[string]any{
		"name":    "node-1",
		"count":   int64(3),
		"payload": []byte("small payload"),
	}

	box, err := EncodeArguments(specs(), values)
	require.NoError(t, err)

	decoded, err := DecodeArguments(specs(), box)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
}

func TestEncodeArgumentsOmitsAbsentValues(t *testing.T) {
	box, err := EncodeArguments(specs(), map[string]any{"name": "solo"})
	require.NoError(t, err)
	assert.Len(t, box, 1)

	decoded, err := DecodeArguments(specs(), box)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "solo"}, decoded)
}

func TestEncodeArgumentsRejectsOversizedNonBigValue(t *testing.T) {
	oversized := strings.Repeat("x", MaxValueLength+1)
	_, err := EncodeArguments(
		[]ArgumentSpec{{Name: "name", Type: StringArgument{}}},
		map[string]any{"name": oversized},
	)
	assert.Error(t, err)
}

func TestBigArgumentChunksAcrossSynthesizedKeys(t *testing.T) {
	bigSpecs := []ArgumentSpec{{Name: "payload", Type: Big{Inner: BytesArgument{}}}}
	oversized := make([]byte, MaxValueLength*2+137)
	for i := range oversized {
		oversized[i] = byte(i)
	}

	box, err := EncodeArguments(bigSpecs, map[string]any{"payload": oversized})
	require.NoError(t, err)

	assert.Len(t, box, 3)
	assert.Contains(t, box, "payload")
	assert.Contains(t, box, "payload.2")
	assert.Contains(t, box, "payload.3")
	for key, chunk := range box {
		if key != "payload.3" {
			assert.Len(t, chunk, MaxValueLength)
		}
	}

	decoded, err := DecodeArguments(bigSpecs, box)
	require.NoError(t, err)
	assert.Equal(t, oversized, decoded["payload"])
}

func TestBigComposesWithListOf(t *testing.T) {
	bigList := ArgumentSpec{Name: "items", Type: Big{Inner: ListOf{Inner: StringArgument{}}}}
	values := make([]any, 0, 5000)
	for i := 0; i < 5000; i++ {
		values = append(values, "element-padding-to-force-multiple-chunks")
	}

	box, err := EncodeArguments([]ArgumentSpec{bigList}, map[string]any{"items": values})
	require.NoError(t, err)
	assert.Greater(t, len(box), 1)

	decoded, err := DecodeArguments([]ArgumentSpec{bigList}, box)
	require.NoError(t, err)
	assert.Equal(t, values, decoded["items"])
}

func TestGatherChunkedReturnsFalseWhenAbsent(t *testing.T) {
	_, present := gatherChunked(Box{}, "missing")
	assert.False(t, present)
}

func TestWriteChunkedHandlesEmptyValue(t *testing.T) {
	box := Box{}
	writeChunked(box, "empty", nil)
	data, present := gatherChunked(box, "empty")
	require.True(t, present)
	assert.Empty(t, data)
}
