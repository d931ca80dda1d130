package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SetOpts carries SET's optional modifiers (spec §4.1 "SET key bytes
// [EX|PX|EXAT|PXAT t] [NX|XX]").
type SetOpts struct {
	ExpireAtMillis int64 // 0 means no TTL requested
	OnlyIfExists   bool  // XX
	OnlyIfAbsent   bool  // NX
	KeepTTL        bool  // KEEPTTL
}

// Set writes a string value, honoring NX/XX/expiry. Returns ok=false
// (without error) when NX/XX prevented the write — spec calls this "not
// set", distinct from an error.
func (s *Store) Set(ctx context.Context, db int, key string, value []byte, opts SetOpts) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupKey(ctx, tx, db, key)
	if err != nil {
		return false, err
	}

	if opts.OnlyIfExists && k == nil {
		return false, nil
	}

	if opts.OnlyIfAbsent && k != nil {
		return false, nil
	}

	var keyID int64

	var expireAt sql.NullInt64
	if opts.ExpireAtMillis > 0 {
		expireAt = sql.NullInt64{Int64: opts.ExpireAtMillis, Valid: true}
	} else if opts.KeepTTL && k != nil && k.kind == TypeString {
		expireAt = k.expireAt
	}

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeString)
		if err != nil {
			return false, err
		}
	} else {
		keyID = k.id
		// Any SET replaces a non-string key too (Redis semantics, spec §4.1).
		if k.kind != TypeString {
			if err := clearSideRows(ctx, tx, k.kind, keyID); err != nil {
				return false, err
			}

			if _, err := tx.ExecContext(ctx, `UPDATE keys SET type = ? WHERE id = ?`, TypeString, keyID); err != nil {
				return false, fmt.Errorf("retyping key: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `DELETE FROM strings WHERE key_id = ?`, keyID); err != nil {
				return false, fmt.Errorf("clearing prior string: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO strings (key_id, value) VALUES (?, ?)`, keyID, value); err != nil {
		return false, fmt.Errorf("writing string: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE keys SET expire_at = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		nullOrZero(expireAt), nowMillis(), keyID); err != nil {
		return false, fmt.Errorf("updating key metadata: %w", err)
	}

	if err := commit(tx); err != nil {
		return false, err
	}

	s.notify(db, key)

	return true, nil
}

func nullOrZero(n sql.NullInt64) any {
	if n.Valid {
		return n.Int64
	}

	return nil
}

func clearSideRows(ctx context.Context, tx sqlExecutor, kind KeyType, keyID int64) error {
	table := sideTableFor(kind)
	if table == "" {
		return nil
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key_id = ?`, table), keyID); err != nil { //nolint:gosec
		return fmt.Errorf("clearing %s rows: %w", table, err)
	}

	return nil
}

func sideTableFor(kind KeyType) string {
	switch kind {
	case TypeString:
		return "strings"
	case TypeHash:
		return "hashes"
	case TypeList:
		return "lists"
	case TypeSet:
		return "sets"
	case TypeZSet:
		return "zsets"
	case TypeStream:
		return "stream_entries"
	default:
		return ""
	}
}

// Get returns the string value, nil if absent, ErrWrongType if the key
// holds a different type.
func (s *Store) Get(ctx context.Context, db int, key string) ([]byte, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeString)
	if err != nil || k == nil {
		return nil, err
	}

	var value []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT value FROM strings WHERE key_id = ?`, k.id).Scan(&value); err != nil {
		return nil, fmt.Errorf("reading string: %w", err)
	}

	return value, nil
}

// GetDel atomically reads and removes a string key.
func (s *Store) GetDel(ctx context.Context, db int, key string) ([]byte, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeString)
	if err != nil || k == nil {
		return nil, err
	}

	var value []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM strings WHERE key_id = ?`, k.id).Scan(&value); err != nil {
		return nil, fmt.Errorf("reading string: %w", err)
	}

	if err := deleteKey(ctx, tx, k.id); err != nil {
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return value, nil
}

// GetEx reads a string value while optionally mutating its TTL, matching
// GETEX's EX/PX/EXAT/PXAT/PERSIST modifiers.
func (s *Store) GetEx(ctx context.Context, db int, key string, opts SetOpts, persist bool) ([]byte, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeString)
	if err != nil || k == nil {
		return nil, err
	}

	var value []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM strings WHERE key_id = ?`, k.id).Scan(&value); err != nil {
		return nil, fmt.Errorf("reading string: %w", err)
	}

	switch {
	case persist:
		if _, err := tx.ExecContext(ctx, `UPDATE keys SET expire_at = NULL WHERE id = ?`, k.id); err != nil {
			return nil, fmt.Errorf("persisting key: %w", err)
		}
	case opts.ExpireAtMillis > 0:
		if _, err := tx.ExecContext(ctx, `UPDATE keys SET expire_at = ? WHERE id = ?`, opts.ExpireAtMillis, k.id); err != nil {
			return nil, fmt.Errorf("updating expiry: %w", err)
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return value, nil
}

// IncrBy parses the string as a signed 64-bit integer (absent treated as
// 0), adds delta, and stores the result as decimal text. Preserves TTL.
func (s *Store) IncrBy(ctx context.Context, db int, key string, delta int64) (int64, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeString)
	if err != nil {
		return 0, err
	}

	var current int64

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeString)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id

		var raw []byte
		if err := tx.QueryRowContext(ctx, `SELECT value FROM strings WHERE key_id = ?`, keyID).Scan(&raw); err != nil {
			return 0, fmt.Errorf("reading string: %w", err)
		}

		current, err = strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
	}

	next := current + delta
	if (delta > 0 && next < current) || (delta < 0 && next > current) {
		return 0, ErrNotInteger
	}

	if err := writeStringValue(ctx, tx, keyID, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return next, nil
}

// IncrByFloat parses the string as an IEEE-754 double and adds delta.
func (s *Store) IncrByFloat(ctx context.Context, db int, key string, delta float64) (float64, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeString)
	if err != nil {
		return 0, err
	}

	var current float64

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeString)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id

		var raw []byte
		if err := tx.QueryRowContext(ctx, `SELECT value FROM strings WHERE key_id = ?`, keyID).Scan(&raw); err != nil {
			return 0, fmt.Errorf("reading string: %w", err)
		}

		current, err = strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			return 0, ErrNotFloat
		}
	}

	next := current + delta

	if err := writeStringValue(ctx, tx, keyID, []byte(formatFloat(next))); err != nil {
		return 0, err
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return next, nil
}

// formatFloat renders a float trimming trailing zeros but keeping at least
// one fractional digit unless the result is integral (spec §4.1
// INCRBYFLOAT).
func formatFloat(f float64) string {
	text := strconv.FormatFloat(f, 'f', -1, 64)

	return text
}

func writeStringValue(ctx context.Context, tx sqlExecutor, keyID int64, value []byte) error {
	res, err := tx.ExecContext(ctx, `UPDATE strings SET value = ? WHERE key_id = ?`, value, keyID)
	if err != nil {
		return fmt.Errorf("updating string: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		if _, err := tx.ExecContext(ctx, `INSERT INTO strings (key_id, value) VALUES (?, ?)`, keyID, value); err != nil {
			return fmt.Errorf("inserting string: %w", err)
		}
	}

	return nil
}

// Append concatenates suffix to the existing value (absent treated as
// empty string), returning the new length.
func (s *Store) Append(ctx context.Context, db int, key string, suffix []byte) (int, error) {
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

	next := append(current, suffix...) //nolint:gocritic

	if err := writeStringValue(ctx, tx, keyID, next); err != nil {
		return 0, err
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return len(next), nil
}

// StrLen returns len(value), 0 if absent.
func (s *Store) StrLen(ctx context.Context, db int, key string) (int, error) {
	value, err := s.Get(ctx, db, key)
	if err != nil {
		return 0, err
	}

	return len(value), nil
}

// GetRange returns value[start:end] using Redis's inclusive, negative-from-
// end index semantics.
func (s *Store) GetRange(ctx context.Context, db int, key string, start, end int) ([]byte, error) {
	value, err := s.Get(ctx, db, key)
	if err != nil || value == nil {
		return []byte{}, err
	}

	lo, hi, ok := clampRange(len(value), start, end)
	if !ok {
		return []byte{}, nil
	}

	return value[lo:hi], nil
}

// clampRange converts Redis-style inclusive [start,end] (negative = from
// end) bounds over a sequence of length n into Go half-open [lo,hi).
func clampRange(n, start, end int) (int, int, bool) {
	if n == 0 {
		return 0, 0, false
	}

	if start < 0 {
		start += n
	}

	if end < 0 {
		end += n
	}

	if start < 0 {
		start = 0
	}

	if end >= n {
		end = n - 1
	}

	if start > end || start >= n {
		return 0, 0, false
	}

	return start, end + 1, true
}

// SetRange overwrites value starting at offset (zero-padding if offset
// exceeds the current length), returning the new length.
func (s *Store) SetRange(ctx context.Context, db int, key string, offset int, patch []byte) (int, error) {
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
		if len(patch) == 0 {
			return 0, nil
		}

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

	needed := offset + len(patch)
	if needed > len(current) {
		grown := make([]byte, needed)
		copy(grown, current)
		current = grown
	}

	copy(current[offset:], patch)

	if err := writeStringValue(ctx, tx, keyID, current); err != nil {
		return 0, err
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return len(current), nil
}

// MGet returns one slot per key: the value, or nil if absent or wrong
// type (Redis treats a type mismatch inside MGET as a nil slot, not an
// error, since MGET has no single key to blame).
func (s *Store) MGet(ctx context.Context, db int, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))

	for i, key := range keys {
		value, err := s.Get(ctx, db, key)
		if err != nil && !errors.Is(err, ErrWrongType) {
			return nil, err
		}

		out[i] = value
	}

	return out, nil
}

// MSet writes every pair atomically in one transaction.
func (s *Store) MSet(ctx context.Context, db int, pairs map[string][]byte) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for key, value := range pairs {
		if err := s.setWithinTx(ctx, tx, db, key, value); err != nil {
			return err
		}
	}

	if err := commit(tx); err != nil {
		return err
	}

	for key := range pairs {
		s.notify(db, key)
	}

	return nil
}

func (s *Store) setWithinTx(ctx context.Context, tx *sql.Tx, db int, key string, value []byte) error {
	k, err := lookupKey(ctx, tx, db, key)
	if err != nil {
		return err
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeString)
		if err != nil {
			return err
		}
	} else {
		keyID = k.id
		if k.kind != TypeString {
			if err := clearSideRows(ctx, tx, k.kind, keyID); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `UPDATE keys SET type = ? WHERE id = ?`, TypeString, keyID); err != nil {
				return fmt.Errorf("retyping key: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM strings WHERE key_id = ?`, keyID); err != nil {
			return fmt.Errorf("clearing prior string: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO strings (key_id, value) VALUES (?, ?)`, keyID, value); err != nil {
		return fmt.Errorf("writing string: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE keys SET expire_at = NULL, version = version + 1, updated_at = ? WHERE id = ?`,
		nowMillis(), keyID); err != nil {
		return fmt.Errorf("updating key metadata: %w", err)
	}

	return nil
}
