package storage

import (
	"context"
	"fmt"
)

// Expire sets a TTL on key, returning whether the key existed. When
// expireAtMillis is in the past, the key is deleted immediately.
func (s *Store) Expire(ctx context.Context, db int, key string, expireAtMillis int64) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupKey(ctx, tx, db, key)
	if err != nil || k == nil {
		return false, err
	}

	if expireAtMillis <= nowMillis() {
		if err := deleteKey(ctx, tx, k.id); err != nil {
			return false, err
		}

		return true, commit(tx)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE keys SET expire_at = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		expireAtMillis, nowMillis(), k.id); err != nil {
		return false, fmt.Errorf("setting expiration: %w", err)
	}

	return true, commit(tx)
}

// Persist clears key's TTL, returning whether it had one.
func (s *Store) Persist(ctx context.Context, db int, key string) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupKey(ctx, tx, db, key)
	if err != nil || k == nil || !k.expireAt.Valid {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE keys SET expire_at = NULL, version = version + 1, updated_at = ? WHERE id = ?`,
		nowMillis(), k.id); err != nil {
		return false, fmt.Errorf("clearing expiration: %w", err)
	}

	return true, commit(tx)
}

// TTL returns the remaining millis until expiration, -1 if the key has no
// TTL, or -2 if it does not exist.
func (s *Store) TTL(ctx context.Context, db int, key string) (int64, error) {
	k, err := lookupKey(ctx, s.db, db, key)
	if err != nil {
		return -2, err
	}

	if k == nil {
		return -2, nil
	}

	if !k.expireAt.Valid {
		return -1, nil
	}

	remaining := k.expireAt.Int64 - nowMillis()
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Exists reports whether key is present (honoring lazy expiration).
func (s *Store) Exists(ctx context.Context, db int, key string) (bool, error) {
	k, err := lookupKey(ctx, s.db, db, key)

	return k != nil, err
}

// TypeOf returns the key's type tag, or "" if absent.
func (s *Store) TypeOf(ctx context.Context, db int, key string) (KeyType, error) {
	k, err := lookupKey(ctx, s.db, db, key)
	if err != nil || k == nil {
		return "", err
	}

	return k.kind, nil
}

// Del removes the named keys, returning the count actually removed.
func (s *Store) Del(ctx context.Context, db int, keys []string) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	removed := 0

	for _, key := range keys {
		k, err := lookupKey(ctx, tx, db, key)
		if err != nil {
			return 0, err
		}

		if k == nil {
			continue
		}

		if err := deleteKey(ctx, tx, k.id); err != nil {
			return 0, err
		}

		removed++
	}

	return removed, commit(tx)
}

// Rename moves key to newKey, overwriting any prior value there. Returns
// ErrNoSuchKey if key does not exist.
func (s *Store) Rename(ctx context.Context, db int, key, newKey string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupKey(ctx, tx, db, key)
	if err != nil {
		return err
	}

	if k == nil {
		return ErrNoSuchKey
	}

	if existing, err := lookupKey(ctx, tx, db, newKey); err != nil {
		return err
	} else if existing != nil {
		if err := deleteKey(ctx, tx, existing.id); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE keys SET name = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		newKey, nowMillis(), k.id); err != nil {
		return fmt.Errorf("renaming key: %w", err)
	}

	return commit(tx)
}

// RenameNX is Rename but only when newKey does not already exist, returning
// whether the rename happened.
func (s *Store) RenameNX(ctx context.Context, db int, key, newKey string) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupKey(ctx, tx, db, key)
	if err != nil {
		return false, err
	}

	if k == nil {
		return false, ErrNoSuchKey
	}

	existing, err := lookupKey(ctx, tx, db, newKey)
	if err != nil {
		return false, err
	}

	if existing != nil {
		return false, commit(tx)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE keys SET name = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		newKey, nowMillis(), k.id); err != nil {
		return false, fmt.Errorf("renaming key: %w", err)
	}

	return true, commit(tx)
}

// Keys returns all non-expired key names in db matching the glob pattern
// (empty pattern matches everything). Lazily purges any expired keys it
// encounters along the way.
func (s *Store) Keys(ctx context.Context, db int, pattern string) ([]string, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT id, name, expire_at FROM keys WHERE db = ?`, db)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}

	type row struct {
		id       int64
		name     string
		expireAt *int64
	}

	var all []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.expireAt); err != nil {
			rows.Close() //nolint:errcheck

			return nil, fmt.Errorf("scanning key row: %w", err)
		}

		all = append(all, r)
	}

	rows.Close() //nolint:errcheck

	now := nowMillis()

	var out []string

	for _, r := range all {
		if r.expireAt != nil && *r.expireAt <= now {
			if err := deleteKey(ctx, tx, r.id); err != nil {
				return nil, err
			}

			continue
		}

		if pattern == "" || globMatch(pattern, r.name) {
			out = append(out, r.name)
		}
	}

	return out, commit(tx)
}

// DBSize returns the count of non-expired keys in db.
func (s *Store) DBSize(ctx context.Context, db int) (int, error) {
	keys, err := s.Keys(ctx, db, "")

	return len(keys), err
}

// FlushDB deletes every key in db.
func (s *Store) FlushDB(ctx context.Context, db int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM keys WHERE db = ?`, db); err != nil {
		return fmt.Errorf("flushing database: %w", err)
	}

	return nil
}

// FlushAll deletes every key in every database.
func (s *Store) FlushAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM keys`); err != nil {
		return fmt.Errorf("flushing all databases: %w", err)
	}

	return nil
}

// Vacuum purges every key whose TTL has passed, across all databases,
// returning the count removed (component I, background vacuum and the
// VACUUM admin command share this routine).
func (s *Store) Vacuum(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keys WHERE expire_at IS NOT NULL AND expire_at <= ?`, nowMillis())
	if err != nil {
		return 0, fmt.Errorf("vacuuming expired keys: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading vacuum result: %w", err)
	}

	return int(n), nil
}

// KeyInfo reports KEYINFO's per-key diagnostic fields.
type KeyInfo struct {
	Type       KeyType
	TTLMillis  int64
	Version    int64
	CreatedAt  int64
	UpdatedAt  int64
}

// Scan returns key names matching pattern, paginated via an opaque cursor
// encoding the last-seen key id (spec §9's design note).
func (s *Store) Scan(ctx context.Context, db int, cursor int64, match string, count int) ([]string, int64, error) {
	if count <= 0 {
		count = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, expire_at FROM keys WHERE db = ? AND id > ? ORDER BY id ASC LIMIT ?`,
		db, cursor, count)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	now := nowMillis()

	var out []string

	var next int64

	for rows.Next() {
		var id int64

		var name string

		var expireAt *int64

		if err := rows.Scan(&id, &name, &expireAt); err != nil {
			return nil, 0, fmt.Errorf("scanning key row: %w", err)
		}

		next = id

		if expireAt != nil && *expireAt <= now {
			continue
		}

		if match == "" || globMatch(match, name) {
			out = append(out, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning keys: %w", err)
	}

	if next == 0 {
		return out, 0, nil
	}

	return out, next, nil
}

// KeyInfo returns diagnostic metadata for key, nil if absent.
func (s *Store) KeyInfo(ctx context.Context, db int, key string) (*KeyInfo, error) {
	k, err := lookupKey(ctx, s.db, db, key)
	if err != nil || k == nil {
		return nil, err
	}

	ttl := int64(-1)
	if k.expireAt.Valid {
		ttl = k.expireAt.Int64 - nowMillis()
		if ttl < 0 {
			ttl = 0
		}
	}

	return &KeyInfo{
		Type:      k.kind,
		TTLMillis: ttl,
		Version:   k.version,
		CreatedAt: k.createdAt,
		UpdatedAt: k.updatedAt,
	}, nil
}
