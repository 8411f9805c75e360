package wire

// MaxValueLength is the per-value byte ceiling inherited from the framing
// layer (spec §4.A/§6). It matches the AMP-derived original protocol's
// frame limit — see original_source/flocker/control/test/test_protocol.py.
const MaxValueLength = 65535

// Big wraps an inner ArgumentType so that oversized serialized values are
// split across synthesized keys (name, name.2, name.3, ...) by the box
// encoder instead of overflowing MAX_VALUE_LENGTH. Big delegates
// Serialize/Deserialize to Inner unchanged; splitting and reassembly are the
// box encoder's job (see box.go), so Big composes with any inner type,
// including ListOf and SerializableArgument.
type Big struct {
	Inner ArgumentType
}

func (b Big) Serialize(value any) ([]byte, error) {
	return b.Inner.Serialize(value)
}

func (b Big) Deserialize(data []byte) (any, error) {
	return b.Inner.Deserialize(data)
}

// chunked reports whether an ArgumentType requests chunk splitting. The box
// encoder type-asserts for this rather than exposing it on ArgumentType
// itself, keeping the common case (most arguments aren't Big) free of an
// extra method every implementation would otherwise have to stub out.
type chunked interface {
	chunkedArgument() bool
}

func (b Big) chunkedArgument() bool { return true }

func isChunked(t ArgumentType) bool {
	c, ok := t.(chunked)
	return ok && c.chunkedArgument()
}
