package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveArgumentsRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		arg   ArgumentType
		value any
	}{
		{"string", StringArgument{}, "hello"},
		{"empty string", StringArgument{}, ""},
		{"int64", Int64Argument{}, int64(-42)},
		{"int64 zero", Int64Argument{}, int64(0)},
		{"bool true", BoolArgument{}, true},
		{"bool false", BoolArgument{}, false},
		{"bytes", BytesArgument{}, []byte("opaque-token")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.arg.Serialize(tt.value)
			require.NoError(t, err)
			got, err := tt.arg.Deserialize(data)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestInt64ArgumentAcceptsRelatedIntKinds(t *testing.T) {
	data, err := Int64Argument{}.Serialize(int32(7))
	require.NoError(t, err)
	got, err := Int64Argument{}.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestArgumentSerializeRejectsWrongType(t *testing.T) {
	_, err := Int64Argument{}.Serialize("not an int")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = BoolArgument{}.Serialize(1)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = StringArgument{}.Serialize(1)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestBoolArgumentRejectsMalformedBytes(t *testing.T) {
	_, err := BoolArgument{}.Deserialize([]byte{1, 2})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestListOfRoundTrip(t *testing.T) {
	list := ListOf{Inner: StringArgument{}}
	values := []any{"alpha", "beta", "gamma"}

	data, err := list.Serialize(values)
	require.NoError(t, err)

	got, err := list.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestListOfRejectsNonSliceValue(t *testing.T) {
	list := ListOf{Inner: StringArgument{}}
	_, err := list.Serialize("not a list")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestListOfPropagatesElementEncodeError(t *testing.T) {
	list := ListOf{Inner: Int64Argument{}}
	_, err := list.Serialize([]any{int64(1), "not an int"})
	assert.Error(t, err)
}
