package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// listGap is the default spacing between adjacent list positions,
// matching spec §3's "large gap, e.g. 10^6" so inserts via LINSERT can
// bisect without renumbering for a long time.
const listGap = 1_000_000

// Side describes which end of a list an operation targets.
type Side int

const (
	Left Side = iota
	Right
)

// Push appends values to the given side, assigning sparse positions. For
// LPUSH the values are applied in reverse insertion order so the last
// pushed element becomes the new head, matching spec §4.1.
func (s *Store) Push(ctx context.Context, db int, key string, side Side, values [][]byte, onlyIfExists bool) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil {
		return 0, err
	}

	if k == nil && onlyIfExists {
		return 0, nil
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeList)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id
	}

	var edge int64

	var query string
	if side == Left {
		query = `SELECT MIN(pos) FROM lists WHERE key_id = ?`
	} else {
		query = `SELECT MAX(pos) FROM lists WHERE key_id = ?`
	}

	var edgeNull sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, keyID).Scan(&edgeNull); err != nil {
		return 0, fmt.Errorf("reading list edge: %w", err)
	}

	if edgeNull.Valid {
		edge = edgeNull.Int64
	}

	for i, value := range values {
		var pos int64
		if side == Left {
			pos = edge - int64(i+1)*listGap
		} else {
			pos = edge + int64(i+1)*listGap
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO lists (key_id, pos, value) VALUES (?, ?, ?)`,
			keyID, pos, value); err != nil {
			return 0, fmt.Errorf("pushing list element: %w", err)
		}
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	length, err := countRows(ctx, tx, "lists", keyID)
	if err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, key)

	return length, nil
}

func countRows(ctx context.Context, tx sqlExecutor, table string, keyID int64) (int, error) {
	var count int

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE key_id = ?`, table) //nolint:gosec
	if err := tx.QueryRowContext(ctx, query, keyID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s rows: %w", table, err)
	}

	return count, nil
}

// Pop removes up to count elements from the given side, returning them in
// pop order.
func (s *Store) Pop(ctx context.Context, db int, key string, side Side, count int) ([][]byte, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil || k == nil {
		return nil, err
	}

	order := "ASC"
	if side == Right {
		order = "DESC"
	}

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT pos, value FROM lists WHERE key_id = ? ORDER BY pos %s LIMIT ?`, order), //nolint:gosec
		k.id, count)
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}

	type row struct {
		pos   int64
		value []byte
	}

	var picked []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.pos, &r.value); err != nil {
			rows.Close() //nolint:errcheck

			return nil, fmt.Errorf("scanning list row: %w", err)
		}

		picked = append(picked, r)
	}

	rows.Close() //nolint:errcheck

	if len(picked) == 0 {
		return nil, nil
	}

	out := make([][]byte, len(picked))

	for i, r := range picked {
		out[i] = r.value

		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE key_id = ? AND pos = ?`, k.id, r.pos); err != nil {
			return nil, fmt.Errorf("popping list element: %w", err)
		}
	}

	if err := touchVersion(ctx, tx, k.id); err != nil {
		return nil, err
	}

	if err := deleteKeyIfEmpty(ctx, tx, "lists", k.id); err != nil {
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return out, nil
}

// LLen returns the list length, 0 if absent.
func (s *Store) LLen(ctx context.Context, db int, key string) (int, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeList)
	if err != nil || k == nil {
		return 0, err
	}

	return countRows(ctx, s.db, "lists", k.id)
}

// LRange returns the logical slice [start,end] using Redis negative-from-
// end index semantics.
func (s *Store) LRange(ctx context.Context, db int, key string, start, end int) ([][]byte, error) {
	all, err := s.listSnapshot(ctx, db, key)
	if err != nil {
		return nil, err
	}

	lo, hi, ok := clampRange(len(all), start, end)
	if !ok {
		return [][]byte{}, nil
	}

	return all[lo:hi], nil
}

func (s *Store) listSnapshot(ctx context.Context, db int, key string) ([][]byte, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeList)
	if err != nil || k == nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT value FROM lists WHERE key_id = ? ORDER BY pos ASC`, k.id)
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out [][]byte

	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scanning list row: %w", err)
		}

		out = append(out, value)
	}

	return out, rows.Err()
}

func (s *Store) listPositions(ctx context.Context, tx sqlExecutor, keyID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT pos FROM lists WHERE key_id = ? ORDER BY pos ASC`, keyID)
	if err != nil {
		return nil, fmt.Errorf("reading list positions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []int64

	for rows.Next() {
		var pos int64
		if err := rows.Scan(&pos); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}

		out = append(out, pos)
	}

	return out, rows.Err()
}

// LIndex returns the element at logical index, nil if out of range.
func (s *Store) LIndex(ctx context.Context, db int, key string, index int) ([]byte, error) {
	all, err := s.listSnapshot(ctx, db, key)
	if err != nil || all == nil {
		return nil, err
	}

	if index < 0 {
		index += len(all)
	}

	if index < 0 || index >= len(all) {
		return nil, nil
	}

	return all[index], nil
}

// LSet overwrites the element at logical index. Returns ErrNoSuchKey if
// the key is absent and ErrOutOfRange if the index is out of bounds.
func (s *Store) LSet(ctx context.Context, db int, key string, index int, value []byte) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil {
		return err
	}

	if k == nil {
		return ErrNoSuchKey
	}

	positions, err := s.listPositions(ctx, tx, k.id)
	if err != nil {
		return err
	}

	if index < 0 {
		index += len(positions)
	}

	if index < 0 || index >= len(positions) {
		return ErrOutOfRange
	}

	if _, err := tx.ExecContext(ctx, `UPDATE lists SET value = ? WHERE key_id = ? AND pos = ?`,
		value, k.id, positions[index]); err != nil {
		return fmt.Errorf("updating list element: %w", err)
	}

	if err := touchVersion(ctx, tx, k.id); err != nil {
		return err
	}

	return commit(tx)
}

// LTrim keeps only the logical slice [start,end], deleting the rest.
func (s *Store) LTrim(ctx context.Context, db int, key string, start, end int) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil || k == nil {
		return err
	}

	positions, err := s.listPositions(ctx, tx, k.id)
	if err != nil {
		return err
	}

	lo, hi, ok := clampRange(len(positions), start, end)

	var keep map[int64]bool
	if ok {
		keep = make(map[int64]bool, hi-lo)
		for _, pos := range positions[lo:hi] {
			keep[pos] = true
		}
	}

	for _, pos := range positions {
		if !keep[pos] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE key_id = ? AND pos = ?`, k.id, pos); err != nil {
				return fmt.Errorf("trimming list: %w", err)
			}
		}
	}

	if err := touchVersion(ctx, tx, k.id); err != nil {
		return err
	}

	if err := deleteKeyIfEmpty(ctx, tx, "lists", k.id); err != nil {
		return err
	}

	return commit(tx)
}

// LRem removes up to count occurrences of value: count > 0 scans head to
// tail, count < 0 scans tail to head, count == 0 removes all.
func (s *Store) LRem(ctx context.Context, db int, key string, count int, value []byte) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil || k == nil {
		return 0, err
	}

	order := "ASC"
	if count < 0 {
		order = "DESC"
	}

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT pos, value FROM lists WHERE key_id = ? ORDER BY pos %s`, order), k.id) //nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("reading list: %w", err)
	}

	type row struct {
		pos   int64
		value []byte
	}

	var all []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.pos, &r.value); err != nil {
			rows.Close() //nolint:errcheck

			return 0, fmt.Errorf("scanning list row: %w", err)
		}

		all = append(all, r)
	}

	rows.Close() //nolint:errcheck

	limit := count
	if limit < 0 {
		limit = -limit
	}

	removed := 0

	for _, r := range all {
		if limit > 0 && removed >= limit {
			break
		}

		if !bytesEqual(r.value, value) {
			continue
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE key_id = ? AND pos = ?`, k.id, r.pos); err != nil {
			return 0, fmt.Errorf("removing list element: %w", err)
		}

		removed++
	}

	if removed > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}

		if err := deleteKeyIfEmpty(ctx, tx, "lists", k.id); err != nil {
			return 0, err
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	return removed, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// LInsert inserts value before or after the first occurrence of pivot.
// Returns the new length, 0 if pivot not found, -1 if the key is absent.
func (s *Store) LInsert(ctx context.Context, db int, key string, before bool, pivot, value []byte) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeList)
	if err != nil {
		return 0, err
	}

	if k == nil {
		return -1, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT pos, value FROM lists WHERE key_id = ? ORDER BY pos ASC`, k.id)
	if err != nil {
		return 0, fmt.Errorf("reading list: %w", err)
	}

	type row struct {
		pos   int64
		value []byte
	}

	var all []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.pos, &r.value); err != nil {
			rows.Close() //nolint:errcheck

			return 0, fmt.Errorf("scanning list row: %w", err)
		}

		all = append(all, r)
	}

	rows.Close() //nolint:errcheck

	idx := -1

	for i, r := range all {
		if bytesEqual(r.value, pivot) {
			idx = i

			break
		}
	}

	if idx == -1 {
		return 0, nil
	}

	var newPos int64

	switch {
	case before && idx == 0:
		newPos = all[0].pos - listGap
	case !before && idx == len(all)-1:
		newPos = all[idx].pos + listGap
	case before:
		newPos = (all[idx-1].pos + all[idx].pos) / 2
	default:
		newPos = (all[idx].pos + all[idx+1].pos) / 2
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO lists (key_id, pos, value) VALUES (?, ?, ?)`,
		k.id, newPos, value); err != nil {
		return 0, fmt.Errorf("inserting list element: %w", err)
	}

	if err := touchVersion(ctx, tx, k.id); err != nil {
		return 0, err
	}

	length := len(all) + 1

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, key)

	return length, nil
}

// LPos returns the logical index of the rank-th match of value (rank=1 is
// the first match scanning head to tail, negative rank scans tail to
// head), or nil if not found.
func (s *Store) LPos(ctx context.Context, db int, key string, value []byte, rank, maxLen int) (*int, error) {
	all, err := s.listSnapshot(ctx, db, key)
	if err != nil || all == nil {
		return nil, err
	}

	if rank == 0 {
		rank = 1
	}

	matches := 0
	need := rank

	if need < 0 {
		need = -need

		scanned := 0

		for i := len(all) - 1; i >= 0; i-- {
			if maxLen > 0 && scanned >= maxLen {
				break
			}

			scanned++

			if bytesEqual(all[i], value) {
				matches++
				if matches == need {
					idx := i

					return &idx, nil
				}
			}
		}

		return nil, nil
	}

	scanned := 0

	for i := range all {
		if maxLen > 0 && scanned >= maxLen {
			break
		}

		scanned++

		if bytesEqual(all[i], value) {
			matches++
			if matches == need {
				idx := i

				return &idx, nil
			}
		}
	}

	return nil, nil
}

// LPosCount returns the logical indexes of up to count matches of value
// (count=0 means "every match"), scanning in the same rank-th-onward
// direction LPos uses. Returns an empty, non-nil slice when nothing
// matches.
func (s *Store) LPosCount(ctx context.Context, db int, key string, value []byte, rank, count, maxLen int) ([]int, error) {
	all, err := s.listSnapshot(ctx, db, key)
	if err != nil || all == nil {
		return []int{}, err
	}

	if rank == 0 {
		rank = 1
	}

	out := make([]int, 0)
	matches := 0
	need := rank

	if need < 0 {
		need = -need

		scanned := 0

		for i := len(all) - 1; i >= 0; i-- {
			if maxLen > 0 && scanned >= maxLen {
				break
			}

			scanned++

			if !bytesEqual(all[i], value) {
				continue
			}

			matches++
			if matches < need {
				continue
			}

			out = append(out, i)
			if count > 0 && len(out) >= count {
				break
			}
		}

		return out, nil
	}

	scanned := 0

	for i := range all {
		if maxLen > 0 && scanned >= maxLen {
			break
		}

		scanned++

		if !bytesEqual(all[i], value) {
			continue
		}

		matches++
		if matches < need {
			continue
		}

		out = append(out, i)
		if count > 0 && len(out) >= count {
			break
		}
	}

	return out, nil
}

// LMove atomically pops one element from src's side and pushes it onto
// dst's side, within a single transaction (spec §4.1). src and dst may be
// the same key.
func (s *Store) LMove(ctx context.Context, db int, src, dst string, fromSide, toSide Side) ([]byte, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	srcKey, err := lookupTyped(ctx, tx, db, src, TypeList)
	if err != nil || srcKey == nil {
		return nil, err
	}

	order := "ASC"
	if fromSide == Right {
		order = "DESC"
	}

	var pos int64

	var value []byte

	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT pos, value FROM lists WHERE key_id = ? ORDER BY pos %s LIMIT 1`, order), srcKey.id) //nolint:gosec
	if err := row.Scan(&pos, &value); err != nil {
		return nil, nil //nolint:nilerr
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE key_id = ? AND pos = ?`, srcKey.id, pos); err != nil {
		return nil, fmt.Errorf("removing source element: %w", err)
	}

	if err := touchVersion(ctx, tx, srcKey.id); err != nil {
		return nil, err
	}

	if err := deleteKeyIfEmptyExceptSelf(ctx, tx, srcKey.id, "lists"); err != nil {
		return nil, err
	}

	dstKey, err := lookupTyped(ctx, tx, db, dst, TypeList)
	if err != nil {
		return nil, err
	}

	var dstID int64

	if dstKey == nil {
		dstID, err = createKey(ctx, tx, db, dst, TypeList)
		if err != nil {
			return nil, err
		}
	} else {
		dstID = dstKey.id
	}

	var edgeNull sql.NullInt64

	edgeQuery := `SELECT MAX(pos) FROM lists WHERE key_id = ?`
	if toSide == Left {
		edgeQuery = `SELECT MIN(pos) FROM lists WHERE key_id = ?`
	}

	if err := tx.QueryRowContext(ctx, edgeQuery, dstID).Scan(&edgeNull); err != nil {
		return nil, fmt.Errorf("reading destination edge: %w", err)
	}

	newPos := listGap
	if edgeNull.Valid {
		if toSide == Left {
			newPos = int(edgeNull.Int64) - listGap
		} else {
			newPos = int(edgeNull.Int64) + listGap
		}
	} else if toSide == Left {
		newPos = -listGap
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO lists (key_id, pos, value) VALUES (?, ?, ?)`,
		dstID, newPos, value); err != nil {
		return nil, fmt.Errorf("inserting destination element: %w", err)
	}

	if err := touchVersion(ctx, tx, dstID); err != nil {
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	s.notify(db, dst)

	return value, nil
}

// deleteKeyIfEmptyExceptSelf is deleteKeyIfEmpty under another name, used
// by LMOVE after removing the source element. It has no same-key special
// case: when src==dst and the list held one element, the key record is
// deleted here and LMOVE's push half then creates a fresh one.
func deleteKeyIfEmptyExceptSelf(ctx context.Context, tx sqlExecutor, keyID int64, table string) error {
	return deleteKeyIfEmpty(ctx, tx, table, keyID)
}
