package storage

import (
	"context"
	"fmt"
	"math/bits"
)

// SetBit sets the bit at offset (0 = MSB of byte 0) to value (0 or 1),
// zero-extending the string as needed, and returns the bit's previous
// value.
func (s *Store) SetBit(ctx context.Context, db int, key string, offset int64, value int) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeString)
	if err != nil {
		return 0, err
	}

	var current []byte

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeString)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id

		if err := tx.QueryRowContext(ctx, `SELECT value FROM strings WHERE key_id = ?`, keyID).Scan(&current); err != nil {
			return 0, fmt.Errorf("reading string: %w", err)
		}
	}

	byteIdx := int(offset / 8)
	bitIdx := uint(offset % 8)

	if byteIdx >= len(current) {
		grown := make([]byte, byteIdx+1)
		copy(grown, current)
		current = grown
	}

	mask := byte(1) << (7 - bitIdx)
	prev := 0

	if current[byteIdx]&mask != 0 {
		prev = 1
	}

	if value == 1 {
		current[byteIdx] |= mask
	} else {
		current[byteIdx] &^= mask
	}

	if err := writeStringValue(ctx, tx, keyID, current); err != nil {
		return 0, err
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return prev, nil
}

// GetBit returns the bit at offset, 0 if the string is shorter than the
// offset requires.
func (s *Store) GetBit(ctx context.Context, db int, key string, offset int64) (int, error) {
	value, err := s.Get(ctx, db, key)
	if err != nil {
		return 0, err
	}

	byteIdx := int(offset / 8)
	if byteIdx >= len(value) {
		return 0, nil
	}

	bitIdx := uint(offset % 8)
	mask := byte(1) << (7 - bitIdx)

	if value[byteIdx]&mask != 0 {
		return 1, nil
	}

	return 0, nil
}

// BitCount counts set bits, optionally restricted to value[start:end]
// (inclusive, negative-from-end, spec §4.1's GETRANGE-style clamping).
func (s *Store) BitCount(ctx context.Context, db int, key string, start, end int, hasRange bool) (int, error) {
	value, err := s.Get(ctx, db, key)
	if err != nil || len(value) == 0 {
		return 0, err
	}

	if hasRange {
		lo, hi, ok := clampRange(len(value), start, end)
		if !ok {
			return 0, nil
		}

		value = value[lo:hi]
	}

	count := 0

	for _, b := range value {
		count += bits.OnesCount8(b)
	}

	return count, nil
}

// BitOpKind selects the operation for BITOP.
type BitOpKind int

const (
	BitAnd BitOpKind = iota
	BitOr
	BitXor
	BitNot
)

// BitOp computes the bitwise combination of the named source keys'
// values and stores it into dest, returning the result length. NOT takes
// exactly one source. Missing bytes in shorter sources are treated as
// zero (Redis's standard length rule).
func (s *Store) BitOp(ctx context.Context, db int, op BitOpKind, dest string, sources []string) (int, error) {
	values := make([][]byte, len(sources))

	maxLen := 0

	for i, key := range sources {
		value, err := s.Get(ctx, db, key)
		if err != nil {
			return 0, err
		}

		values[i] = value

		if len(value) > maxLen {
			maxLen = len(value)
		}
	}

	result := make([]byte, maxLen)

	switch op {
	case BitNot:
		src := values[0]
		for i := range result {
			b := byte(0)

			if i < len(src) {
				b = src[i]
			}

			result[i] = ^b
		}
	case BitAnd:
		for i := range result {
			b := byte(0xFF)

			for _, v := range values {
				var vb byte
				if i < len(v) {
					vb = v[i]
				}

				b &= vb
			}

			result[i] = b
		}
	case BitOr:
		for i := range result {
			var b byte

			for _, v := range values {
				if i < len(v) {
					b |= v[i]
				}
			}

			result[i] = b
		}
	default: // BitXor
		for i := range result {
			var b byte

			for _, v := range values {
				if i < len(v) {
					b ^= v[i]
				}
			}

			result[i] = b
		}
	}

	if _, err := s.Set(ctx, db, dest, result, SetOpts{ //nolint:exhaustruct
		ExpireAtMillis: 0,
	}); err != nil {
		return 0, err
	}

	return len(result), nil
}
