package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	rec := Record{
		Kind:          RecordRequest,
		CorrelationID: 42,
		Command:       "ClusterStatus",
		Box: Box{
			"configuration": []byte("config-bytes"),
			"state":         []byte("state-bytes"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, rec))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFrameRoundTripError(t *testing.T) {
	rec := Record{
		Kind:          RecordError,
		CorrelationID: 7,
		ErrorCode:     "GENERATION_MISMATCH",
		ErrorMessage:  "peer is behind",
		Box:           Box{},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, rec))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFrameRoundTripEmptyBox(t *testing.T) {
	rec := Record{Kind: RecordAnswer, CorrelationID: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, rec))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, RecordKind(RecordAnswer), got.Kind)
	assert.Equal(t, uint64(1), got.CorrelationID)
	assert.Empty(t, got.Box)
}

func TestReadFrameMultipleSequentialFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Record{Kind: RecordRequest, CorrelationID: 1, Command: "Ping"}))
	require.NoError(t, WriteFrame(&buf, Record{Kind: RecordRequest, CorrelationID: 2, Command: "NoOp"}))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Ping", first.Command)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "NoOp", second.Command)
}

func TestReadFrameRejectsTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}))
	assert.Error(t, err)
}

func TestReadFrameRejectsTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Record{Kind: RecordRequest, CorrelationID: 1, Command: "Ping"}))
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	header := make([]byte, 4)
	header[0] = 0xFF
	_, err := ReadFrame(bytes.NewReader(header))
	assert.Error(t, err)
}
