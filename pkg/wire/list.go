package wire

import "fmt"

// ListOf composes an inner ArgumentType into a list argument: each element
// is serialized independently with Inner, then the list of byte strings is
// msgpack-framed as one value. It composes with Big (wrapping a ListOf) and
// with SerializableArgument as the element type, matching spec §4.A's
// requirement that Big "must compose with any inner argument type
// (including list-valued ones)".
type ListOf struct {
	Inner ArgumentType
}

func (l ListOf) Serialize(value any) ([]byte, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected []any, got %T", ErrTypeMismatch, value)
	}
	encoded := make([][]byte, len(items))
	for i, item := range items {
		b, err := l.Inner.Serialize(item)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrEncode, i, err)
		}
		encoded[i] = b
	}
	return Marshal(encoded)
}

func (l ListOf) Deserialize(data []byte) (any, error) {
	var encoded [][]byte
	if err := Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	items := make([]any, len(encoded))
	for i, b := range encoded {
		v, err := l.Inner.Deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrTypeMismatch, i, err)
		}
		items[i] = v
	}
	return items, nil
}
