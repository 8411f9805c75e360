package wire

import (
	"bytes"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

var msgpackHandle codec.MsgpackHandle

// Marshal encodes v with msgpack. Used for ListOf's element framing, for
// the documents and diffs in clusterdoc.go, and by pkg/configstore and
// pkg/clusterstate — the one place this module
// reaches past the argument-type abstraction for a generic container
// format, since msgpack (already in the teacher's dependency closure via
// raft) round-trips arbitrary Go structs without per-field plumbing.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack bytes produced by Marshal into v.
func Unmarshal(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), &msgpackHandle)
	return dec.Decode(v)
}
