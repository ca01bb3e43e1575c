// Package codec implements the engine's Binary Codec (spec §4.6): fixed-
// width big-endian encoding of a Dataset's elements into a TX payload, and
// decoding an RX payload back into named, typed field values. It is the
// only package in this module that reaches into encoding/binary directly;
// everything upstream of it deals in named float64 values or DecodedField
// slices.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/tlc-io/tlcengine/config"
)

// DecodedField is one decoded dataset element: its name, declared type,
// and the repetition-count values it decoded to. Signed types are sign-
// extended into int64; BOOL8 decodes to 0 or 1 (spec §4.6).
type DecodedField struct {
	Name   string
	Type   config.ElementType
	Values []int64
}

// Encode produces a TX payload for dataset by walking its elements in
// declared order. values supplies named field values (spec §4.6); a field
// absent from values encodes as 0. An element whose ArraySize is N > 0
// replicates the same scalar value into all N slots (broadcast semantics,
// spec §9 open question — no per-index key lookup is attempted). Elements
// with an unsupported type are skipped: no bytes are emitted for them.
func Encode(dataset config.Dataset, values map[string]float64) []byte {
	buf := make([]byte, 0, estimateSize(dataset))

	for _, elem := range dataset.Elements {
		value, ok := values[elem.Name]
		if !ok {
			value = 0.0
		}
		value = clampFloat(value)
		count := elem.Count()
		for i := uint32(0); i < count; i++ {
			buf = appendElement(buf, elem.Type, value)
		}
	}
	return buf
}

func estimateSize(dataset config.Dataset) int {
	n := 0
	for _, e := range dataset.Elements {
		n += int(e.Count()) * e.Type.Size()
	}
	return n
}

// appendElement truncates value to the target width's low bits, per
// spec §8's documented (non-error) truncation behavior.
func appendElement(buf []byte, typ config.ElementType, value float64) []byte {
	switch typ {
	case config.BOOL8:
		if value != 0.0 {
			return append(buf, 1)
		}
		return append(buf, 0)
	case config.UINT8:
		return append(buf, uint8(int64(value)))
	case config.INT8:
		return append(buf, byte(int8(int64(value))))
	case config.UINT16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(int64(value)))
		return append(buf, b[:]...)
	case config.INT16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(int16(int64(value))))
		return append(buf, b[:]...)
	case config.UINT32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int64(value)))
		return append(buf, b[:]...)
	case config.INT32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(int64(value))))
		return append(buf, b[:]...)
	default:
		// unsupported type: no bytes emitted (spec §4.6)
		return buf
	}
}

// Decode walks payload by dataset's element order, producing a
// DecodedField per element. If payload is too short to supply the next
// field, Decode returns whatever was successfully decoded so far — never
// an error (spec §4.6, §8). An element with an unsupported type also
// terminates decoding at that point.
func Decode(dataset config.Dataset, payload []byte) []DecodedField {
	decoded := make([]DecodedField, 0, len(dataset.Elements))
	offset := 0

	for _, elem := range dataset.Elements {
		count := elem.Count()
		field := DecodedField{Name: elem.Name, Type: elem.Type, Values: make([]int64, 0, count)}

		for i := uint32(0); i < count; i++ {
			v, n, ok := decodeOne(elem.Type, payload, offset)
			if !ok {
				return decoded
			}
			field.Values = append(field.Values, v)
			offset += n
		}
		decoded = append(decoded, field)
	}
	return decoded
}

func decodeOne(typ config.ElementType, payload []byte, offset int) (value int64, size int, ok bool) {
	switch typ {
	case config.BOOL8, config.UINT8:
		if !hasBytes(payload, offset, 1) {
			return 0, 0, false
		}
		return int64(payload[offset]), 1, true
	case config.INT8:
		if !hasBytes(payload, offset, 1) {
			return 0, 0, false
		}
		return int64(int8(payload[offset])), 1, true
	case config.UINT16:
		if !hasBytes(payload, offset, 2) {
			return 0, 0, false
		}
		return int64(binary.BigEndian.Uint16(payload[offset:])), 2, true
	case config.INT16:
		if !hasBytes(payload, offset, 2) {
			return 0, 0, false
		}
		return int64(int16(binary.BigEndian.Uint16(payload[offset:]))), 2, true
	case config.UINT32:
		if !hasBytes(payload, offset, 4) {
			return 0, 0, false
		}
		return int64(binary.BigEndian.Uint32(payload[offset:])), 4, true
	case config.INT32:
		if !hasBytes(payload, offset, 4) {
			return 0, 0, false
		}
		return int64(int32(binary.BigEndian.Uint32(payload[offset:]))), 4, true
	default:
		return 0, 0, false
	}
}

func hasBytes(payload []byte, offset, count int) bool {
	return offset+count <= len(payload)
}

// AsBool reports whether a decoded BOOL8 value is true (value != 0).
// Convenience for adapters that want to avoid importing math for a
// single-field rounding check.
func AsBool(v int64) bool { return v != 0 }

// clampFloat guards against NaN/Inf reaching the integer truncation paths
// above, which would otherwise produce platform-dependent conversion
// results; the codec treats such inputs as 0, consistent with "value
// outside the target type's range truncates" rather than panicking.
func clampFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
