package genhash

import (
	"bytes"
	"encoding/binary"
)

// canonicalBuffer accumulates a length-prefixed byte sequence
// that two processes produce identically for equal documents regardless of
// map iteration order — callers are responsible for sorting keys before
// writing them. Length-prefixing every field (rather than using a
// separator byte) rules out ambiguity between e.g. the strings "a","bc"
// and "ab","c".
type canonicalBuffer struct {
	buf bytes.Buffer
}

func newCanonicalBuffer() *canonicalBuffer {
	return &canonicalBuffer{}
}

func (b *canonicalBuffer) writeString(s string) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(s)))
	b.buf.Write(length[:])
	b.buf.WriteString(s)
}

func (b *canonicalBuffer) writeInt(n int) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(n))
	b.buf.Write(length[:])
}

func (b *canonicalBuffer) writeBool(v bool) {
	if v {
		b.buf.WriteByte(1)
	} else {
		b.buf.WriteByte(0)
	}
}

// Bytes returns the accumulated canonical encoding.
func (b *canonicalBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
