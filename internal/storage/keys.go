package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KeyType enumerates the type tag stored on a key record (spec §3).
type KeyType string

const (
	TypeString KeyType = "string"
	TypeHash   KeyType = "hash"
	TypeList   KeyType = "list"
	TypeSet    KeyType = "set"
	TypeZSet   KeyType = "zset"
	TypeStream KeyType = "stream"
)

// keyRow is the internal row of the central keys table (spec §3 "Key
// record"). expireAt is nil when the key has no TTL.
type keyRow struct {
	expireAt          sql.NullInt64
	name              string
	kind              KeyType
	id                int64
	db                int
	createdAt         int64
	updatedAt         int64
	version           int64
}

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx, letting the lookup
// helpers run either standalone or nested inside a caller's transaction.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// lookupKey returns the key row for (db, name), honoring lazy expiration
// (invariant 2): a row whose expire_at has passed is deleted on the spot
// and reported as not-found. Returns (nil, nil) when absent.
func lookupKey(ctx context.Context, tx sqlExecutor, db int, name string) (*keyRow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, type, expire_at, created_at, updated_at, version
		 FROM keys WHERE db = ? AND name = ?`, db, name)

	var k keyRow
	k.db = db
	k.name = name

	err := row.Scan(&k.id, &k.kind, &k.expireAt, &k.createdAt, &k.updatedAt, &k.version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("looking up key: %w", err)
	}

	if k.expireAt.Valid && k.expireAt.Int64 <= nowMillis() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM keys WHERE id = ?`, k.id); err != nil {
			return nil, fmt.Errorf("lazily expiring key: %w", err)
		}

		return nil, nil //nolint:nilnil
	}

	return &k, nil
}

// lookupTyped returns the key row for name if it exists and matches kind,
// ErrWrongType if it exists with a different type, or (nil, nil) if absent.
func lookupTyped(ctx context.Context, tx sqlExecutor, db int, name string, kind KeyType) (*keyRow, error) {
	k, err := lookupKey(ctx, tx, db, name)
	if err != nil || k == nil {
		return k, err
	}

	if k.kind != kind {
		return nil, ErrWrongType
	}

	return k, nil
}

// createKey inserts a fresh key record with version 0, returning its id.
// Used on first write of a given type to a previously-absent name.
func createKey(ctx context.Context, tx sqlExecutor, db int, name string, kind KeyType) (int64, error) {
	now := nowMillis()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO keys (db, name, type, expire_at, created_at, updated_at, version)
		 VALUES (?, ?, ?, NULL, ?, ?, 0)`, db, name, kind, now, now)
	if err != nil {
		return 0, fmt.Errorf("creating key: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new key id: %w", err)
	}

	return id, nil
}

// touchVersion bumps the key's version counter and updated_at timestamp.
// Called once per command invocation that successfully mutates a key
// (spec §4.3 version-bumping rule).
func touchVersion(ctx context.Context, tx sqlExecutor, keyID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE keys SET version = version + 1, updated_at = ? WHERE id = ?`, nowMillis(), keyID)
	if err != nil {
		return fmt.Errorf("bumping key version: %w", err)
	}

	return nil
}

// deleteKey removes the key record; side-table rows cascade via FK
// ON DELETE CASCADE.
func deleteKey(ctx context.Context, tx sqlExecutor, keyID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM keys WHERE id = ?`, keyID); err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	return nil
}

// deleteKeyIfEmpty deletes the key record when the named side table has no
// remaining rows for keyID (invariant 3: non-stream containers vanish once
// empty).
func deleteKeyIfEmpty(ctx context.Context, tx sqlExecutor, sideTable string, keyID int64) error {
	var count int

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE key_id = ?`, sideTable) //nolint:gosec

	if err := tx.QueryRowContext(ctx, query, keyID).Scan(&count); err != nil {
		return fmt.Errorf("counting side table rows: %w", err)
	}

	if count == 0 {
		return deleteKey(ctx, tx, keyID)
	}

	return nil
}

func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
