package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// HSet writes each field/value pair, returning the count of fields that
// did not previously exist (spec §4.1: "HSET returns count of newly
// created fields, not updated").
func (s *Store) HSet(ctx context.Context, db int, key string, fields map[string][]byte) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeHash)
	if err != nil {
		return 0, err
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeHash)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id
	}

	created := 0

	for field, value := range fields {
		var exists int

		err := tx.QueryRowContext(ctx, `SELECT 1 FROM hashes WHERE key_id = ? AND field = ?`,
			keyID, field).Scan(&exists)
		if err != nil {
			created++
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hashes (key_id, field, value) VALUES (?, ?, ?)
			 ON CONFLICT (key_id, field) DO UPDATE SET value = excluded.value`,
			keyID, field, value); err != nil {
			return 0, fmt.Errorf("writing hash field: %w", err)
		}
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return created, nil
}

// HGet returns the field's value, nil if absent.
func (s *Store) HGet(ctx context.Context, db int, key, field string) ([]byte, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeHash)
	if err != nil || k == nil {
		return nil, err
	}

	var value []byte

	err = s.db.QueryRowContext(ctx, `SELECT value FROM hashes WHERE key_id = ? AND field = ?`, k.id, field).Scan(&value)
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	return value, nil
}

// HMGet returns one slot per requested field.
func (s *Store) HMGet(ctx context.Context, db int, key string, fields []string) ([][]byte, error) {
	out := make([][]byte, len(fields))

	for i, field := range fields {
		value, err := s.HGet(ctx, db, key, field)
		if err != nil {
			return nil, err
		}

		out[i] = value
	}

	return out, nil
}

// HGetAll returns the full field/value map, preserving no particular
// order beyond what the caller imposes.
func (s *Store) HGetAll(ctx context.Context, db int, key string) (map[string][]byte, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeHash)
	if err != nil || k == nil {
		return map[string][]byte{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hashes WHERE key_id = ?`, k.id)
	if err != nil {
		return nil, fmt.Errorf("reading hash: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := map[string][]byte{}

	for rows.Next() {
		var field string

		var value []byte

		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scanning hash row: %w", err)
		}

		out[field] = value
	}

	return out, rows.Err()
}

// HDel removes the named fields, returning the count actually removed,
// and deletes the key once the last field is gone (spec §4.1).
func (s *Store) HDel(ctx context.Context, db int, key string, fields []string) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeHash)
	if err != nil || k == nil {
		return 0, err
	}

	removed := 0

	for _, field := range fields {
		res, err := tx.ExecContext(ctx, `DELETE FROM hashes WHERE key_id = ? AND field = ?`, k.id, field)
		if err != nil {
			return 0, fmt.Errorf("deleting hash field: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		removed += int(n)
	}

	if removed > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}

		if err := deleteKeyIfEmpty(ctx, tx, "hashes", k.id); err != nil {
			return 0, err
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return removed, nil
}

// HExists reports whether field is present.
func (s *Store) HExists(ctx context.Context, db int, key, field string) (bool, error) {
	value, err := s.HGet(ctx, db, key, field)
	if err != nil {
		return false, err
	}

	return value != nil, nil
}

// HKeys returns all field names.
func (s *Store) HKeys(ctx context.Context, db int, key string) ([]string, error) {
	all, err := s.HGetAll(ctx, db, key)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(all))
	for field := range all {
		keys = append(keys, field)
	}

	return keys, nil
}

// HVals returns all values.
func (s *Store) HVals(ctx context.Context, db int, key string) ([][]byte, error) {
	all, err := s.HGetAll(ctx, db, key)
	if err != nil {
		return nil, err
	}

	vals := make([][]byte, 0, len(all))
	for _, v := range all {
		vals = append(vals, v)
	}

	return vals, nil
}

// HLen returns the field count.
func (s *Store) HLen(ctx context.Context, db int, key string) (int, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeHash)
	if err != nil || k == nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hashes WHERE key_id = ?`, k.id).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting hash fields: %w", err)
	}

	return count, nil
}

// HSetNX sets field only if absent, returning whether it wrote.
func (s *Store) HSetNX(ctx context.Context, db int, key, field string, value []byte) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeHash)
	if err != nil {
		return false, err
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeHash)
		if err != nil {
			return false, err
		}
	} else {
		keyID = k.id

		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM hashes WHERE key_id = ? AND field = ?`,
			keyID, field).Scan(&exists); err == nil {
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO hashes (key_id, field, value) VALUES (?, ?, ?)`,
		keyID, field, value); err != nil {
		return false, fmt.Errorf("writing hash field: %w", err)
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return false, err
	}

	if err := commit(tx); err != nil {
		return false, err
	}

	return true, nil
}

// HIncrBy adds delta to the integer stored in field (absent treated as 0).
func (s *Store) HIncrBy(ctx context.Context, db int, key, field string, delta int64) (int64, error) {
	return s.hIncr(ctx, db, key, field, func(current []byte) ([]byte, int64, error) {
		n, err := parseHashInt(current)
		if err != nil {
			return nil, 0, err
		}

		next := n + delta

		return []byte(formatInt(next)), next, nil
	})
}

// HIncrByFloat adds delta to the float stored in field.
func (s *Store) HIncrByFloat(ctx context.Context, db int, key, field string, delta float64) (float64, error) {
	var result float64

	_, err := s.hIncr(ctx, db, key, field, func(current []byte) ([]byte, int64, error) {
		f, err := parseHashFloat(current)
		if err != nil {
			return nil, 0, err
		}

		next := f + delta
		result = next

		return []byte(formatFloat(next)), 0, nil
	})

	return result, err
}

func (s *Store) hIncr(
	ctx context.Context, db int, key, field string,
	apply func(current []byte) (next []byte, intResult int64, err error),
) (int64, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeHash)
	if err != nil {
		return 0, err
	}

	var keyID int64

	var current []byte

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeHash)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id

		_ = tx.QueryRowContext(ctx, `SELECT value FROM hashes WHERE key_id = ? AND field = ?`,
			keyID, field).Scan(&current)
	}

	next, intResult, err := apply(current)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hashes (key_id, field, value) VALUES (?, ?, ?)
		 ON CONFLICT (key_id, field) DO UPDATE SET value = excluded.value`,
		keyID, field, next); err != nil {
		return 0, fmt.Errorf("writing hash field: %w", err)
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return intResult, nil
}

func parseHashInt(raw []byte) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}

	return n, nil
}

func parseHashFloat(raw []byte) (float64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, ErrNotFloat
	}

	return f, nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
