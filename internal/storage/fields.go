package storage

import (
	"encoding/binary"
	"fmt"
)

// encodeFields serializes a stream entry's field/value pairs into a single
// blob: a count, then length-prefixed field/value byte strings. Order is
// not significant to storage but is preserved by the caller's map
// iteration only incidentally; stream consumers should not rely on field
// order beyond what original_source preserves (insertion order), which
// Go's map type cannot guarantee — callers needing exact order pass an
// ordered slice instead.
func encodeFields(fields map[string][]byte) ([]byte, error) {
	buf := make([]byte, 0, 64)
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(fields))) //nolint:gosec
	buf = append(buf, header...)

	for field, value := range fields {
		buf = appendLP(buf, []byte(field))
		buf = appendLP(buf, value)
	}

	return buf, nil
}

func appendLP(buf, data []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data))) //nolint:gosec

	buf = append(buf, length...)
	buf = append(buf, data...)

	return buf
}

func decodeFields(payload []byte) (map[string][]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: truncated stream payload", ErrInvalidData)
	}

	count := binary.BigEndian.Uint32(payload)
	pos := 4

	out := make(map[string][]byte, count)

	for i := uint32(0); i < count; i++ {
		field, next, err := readLP(payload, pos)
		if err != nil {
			return nil, err
		}

		pos = next

		value, next, err := readLP(payload, pos)
		if err != nil {
			return nil, err
		}

		pos = next

		out[string(field)] = value
	}

	return out, nil
}

func readLP(payload []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(payload) {
		return nil, 0, fmt.Errorf("%w: truncated stream payload", ErrInvalidData)
	}

	length := int(binary.BigEndian.Uint32(payload[pos : pos+4]))
	pos += 4

	if pos+length > len(payload) {
		return nil, 0, fmt.Errorf("%w: truncated stream payload", ErrInvalidData)
	}

	return payload[pos : pos+length], pos + length, nil
}
