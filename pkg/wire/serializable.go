package wire

import (
	"fmt"
	"sync"

	"github.com/cuemby/vessel/pkg/metrics"
)

// DocumentType describes one permitted document kind for a
// SerializableArgument: a tag byte written ahead of the payload so
// Deserialize knows which decoder to run, a type guard, and the
// encode/decode functions themselves.
type DocumentType struct {
	Tag     byte
	Matches func(value any) bool
	Encode  func(value any) ([]byte, error)
	Decode  func(data []byte) (any, error)
}

// SerializableArgument is the domain-object argument described in spec
// §4.A: parameterised by a set of permitted document types. Serialize
// rejects any value outside that set with ErrTypeMismatch; Deserialize
// verifies the recovered value against the same guard. When Cache is set,
// two Serialize calls on the identical object (by pointer identity) within
// its lifetime return the same bytes without re-encoding.
type SerializableArgument struct {
	Types []DocumentType
	Cache *EncodeCache
}

func (s SerializableArgument) Serialize(value any) ([]byte, error) {
	for _, t := range s.Types {
		if !t.Matches(value) {
			continue
		}
		var payload []byte
		var err error
		if s.Cache != nil {
			payload, err = s.Cache.GetOrEncode(value, t.Encode)
		} else {
			payload, err = t.Encode(value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		out := make([]byte, 0, len(payload)+1)
		out = append(out, t.Tag)
		out = append(out, payload...)
		return out, nil
	}
	return nil, fmt.Errorf("%w: value of type %T is not in the permitted set", ErrTypeMismatch, value)
}

func (s SerializableArgument) Deserialize(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrTypeMismatch)
	}
	tag, payload := data[0], data[1:]
	for _, t := range s.Types {
		if t.Tag != tag {
			continue
		}
		value, err := t.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		if !t.Matches(value) {
			return nil, fmt.Errorf("%w: decoded value failed its own type guard", ErrTypeMismatch)
		}
		return value, nil
	}
	return nil, fmt.Errorf("%w: unknown type tag %d", ErrTypeMismatch, tag)
}

// EncodeCache memoizes SerializableArgument encodings by object identity
// (pointer equality) for the lifetime of a single broadcast pass. It must
// be discarded afterward — see pkg/control — so it cannot pin arbitrary
// documents in memory indefinitely.
type EncodeCache struct {
	mu      sync.Mutex
	entries map[any][]byte
}

// NewEncodeCache returns an empty, ready-to-use EncodeCache.
func NewEncodeCache() *EncodeCache {
	return &EncodeCache{entries: make(map[any][]byte)}
}

// GetOrEncode returns the cached encoding for value's identity, calling
// encode and storing the result on a miss. value must be a pointer (or
// other comparable identity) — value-typed documents that happen to be
// structurally identical but come from two distinct call sites will miss
// the cache, which is the accepted tradeoff for O(1) identity lookup.
func (c *EncodeCache) GetOrEncode(value any, encode func(any) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.entries[value]; ok {
		metrics.WireEncodeCacheHitsTotal.Inc()
		return cached, nil
	}
	encoded, err := encode(value)
	if err != nil {
		return nil, err
	}
	c.entries[value] = encoded
	return encoded, nil
}
