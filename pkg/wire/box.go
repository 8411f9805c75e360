package wire

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cuemby/vessel/pkg/metrics"
)

// Box is the flat key/value record a Command's arguments serialize into
// before framing — named after the AMP box this protocol is descended
// from. Every value is at most MaxValueLength bytes; Big arguments spread
// across synthesized keys "name", "name.2", "name.3", ...
type Box map[string][]byte

// ArgumentSpec names one argument slot in a Command and the ArgumentType
// that serializes it.
type ArgumentSpec struct {
	Name string
	Type ArgumentType
}

// EncodeArguments serializes values (by argument name) into a Box per
// specs. An argument absent from values is simply omitted — callers decide
// which arguments are required.
func EncodeArguments(specs []ArgumentSpec, values map[string]any) (Box, error) {
	box := Box{}
	for _, spec := range specs {
		value, present := values[spec.Name]
		if !present {
			continue
		}
		data, err := spec.Type.Serialize(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", spec.Name, err)
		}
		if isChunked(spec.Type) {
			writeChunked(box, spec.Name, data)
			continue
		}
		if len(data) > MaxValueLength {
			return nil, fmt.Errorf("argument %q: %d bytes exceeds MAX_VALUE_LENGTH without Big", spec.Name, len(data))
		}
		box[spec.Name] = data
	}
	return box, nil
}

// DecodeArguments reassembles chunked values and deserializes each argument
// named in specs that is present in box.
func DecodeArguments(specs []ArgumentSpec, box Box) (map[string]any, error) {
	values := make(map[string]any, len(specs))
	for _, spec := range specs {
		data, present := gatherChunked(box, spec.Name)
		if !present {
			continue
		}
		value, err := spec.Type.Deserialize(data)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", spec.Name, err)
		}
		values[spec.Name] = value
	}
	return values, nil
}

func writeChunked(box Box, name string, data []byte) {
	metrics.WireChunkedValuesTotal.Inc()
	if len(data) == 0 {
		box[name] = nil
		return
	}
	index := 1
	for offset := 0; offset < len(data); offset += MaxValueLength {
		end := offset + MaxValueLength
		if end > len(data) {
			end = len(data)
		}
		key := name
		if index > 1 {
			key = name + "." + strconv.Itoa(index)
		}
		box[key] = data[offset:end]
		index++
	}
}

func gatherChunked(box Box, name string) ([]byte, bool) {
	first, present := box[name]
	if !present {
		return nil, false
	}
	var buf bytes.Buffer
	buf.Write(first)
	for index := 2; ; index++ {
		key := name + "." + strconv.Itoa(index)
		chunk, ok := box[key]
		if !ok {
			break
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), true
}
