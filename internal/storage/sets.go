package storage

import (
	"context"
	"fmt"
	"math/rand"
)

// SAdd adds members to the set, returning the count actually added.
func (s *Store) SAdd(ctx context.Context, db int, key string, members [][]byte) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeSet)
	if err != nil {
		return 0, err
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeSet)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id
	}

	added := 0

	for _, member := range members {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sets (key_id, member) VALUES (?, ?) ON CONFLICT (key_id, member) DO NOTHING`,
			keyID, member)
		if err != nil {
			return 0, fmt.Errorf("writing set member: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		added += int(n)
	}

	if added > 0 {
		if err := touchVersion(ctx, tx, keyID); err != nil {
			return 0, err
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	if added > 0 {
		s.notify(db, key)
	}

	return added, nil
}

// SRem removes members, returning the count actually removed, and deletes
// the key once empty.
func (s *Store) SRem(ctx context.Context, db int, key string, members [][]byte) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeSet)
	if err != nil || k == nil {
		return 0, err
	}

	removed := 0

	for _, member := range members {
		res, err := tx.ExecContext(ctx, `DELETE FROM sets WHERE key_id = ? AND member = ?`, k.id, member)
		if err != nil {
			return 0, fmt.Errorf("removing set member: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		removed += int(n)
	}

	if removed > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}

		if err := deleteKeyIfEmpty(ctx, tx, "sets", k.id); err != nil {
			return 0, err
		}
	}

	return removed, commit(tx)
}

func (s *Store) setMembers(ctx context.Context, db int, key string) ([][]byte, int64, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeSet)
	if err != nil || k == nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT member FROM sets WHERE key_id = ?`, k.id)
	if err != nil {
		return nil, 0, fmt.Errorf("reading set: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out [][]byte

	for rows.Next() {
		var member []byte
		if err := rows.Scan(&member); err != nil {
			return nil, 0, fmt.Errorf("scanning set row: %w", err)
		}

		out = append(out, member)
	}

	return out, k.id, rows.Err()
}

// SMembers returns all members.
func (s *Store) SMembers(ctx context.Context, db int, key string) ([][]byte, error) {
	members, _, err := s.setMembers(ctx, db, key)

	return members, err
}

// SIsMember reports whether member is in the set.
func (s *Store) SIsMember(ctx context.Context, db int, key string, member []byte) (bool, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeSet)
	if err != nil || k == nil {
		return false, err
	}

	var exists int

	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM sets WHERE key_id = ? AND member = ?`, k.id, member).Scan(&exists)

	return err == nil, nil
}

// SCard returns the member count.
func (s *Store) SCard(ctx context.Context, db int, key string) (int, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeSet)
	if err != nil || k == nil {
		return 0, err
	}

	return countRows(ctx, s.db, "sets", k.id)
}

// SPop removes and returns up to count random members.
func (s *Store) SPop(ctx context.Context, db int, key string, count int) ([][]byte, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeSet)
	if err != nil || k == nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT member FROM sets WHERE key_id = ? ORDER BY RANDOM() LIMIT ?`, k.id, count)
	if err != nil {
		return nil, fmt.Errorf("reading set: %w", err)
	}

	var picked [][]byte

	for rows.Next() {
		var member []byte
		if err := rows.Scan(&member); err != nil {
			rows.Close() //nolint:errcheck

			return nil, fmt.Errorf("scanning set row: %w", err)
		}

		picked = append(picked, member)
	}

	rows.Close() //nolint:errcheck

	for _, member := range picked {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sets WHERE key_id = ? AND member = ?`, k.id, member); err != nil {
			return nil, fmt.Errorf("popping set member: %w", err)
		}
	}

	if len(picked) > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return nil, err
		}

		if err := deleteKeyIfEmpty(ctx, tx, "sets", k.id); err != nil {
			return nil, err
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return picked, nil
}

// SRandMember returns up to abs(count) members without removing them. A
// negative count allows repeats (drawn independently); a positive count
// returns distinct members, capped at the set's size.
func (s *Store) SRandMember(ctx context.Context, db int, key string, count int) ([][]byte, error) {
	members, _, err := s.setMembers(ctx, db, key)
	if err != nil || len(members) == 0 {
		return nil, err
	}

	if count >= 0 {
		if count > len(members) {
			count = len(members)
		}

		perm := rand.Perm(len(members)) //nolint:gosec
		out := make([][]byte, count)

		for i := 0; i < count; i++ {
			out[i] = members[perm[i]]
		}

		return out, nil
	}

	n := -count
	out := make([][]byte, n)

	for i := 0; i < n; i++ {
		out[i] = members[rand.Intn(len(members))] //nolint:gosec
	}

	return out, nil
}

// SetOp selects the combining rule for SDIFF/SINTER/SUNION.
type SetOp int

const (
	OpDiff SetOp = iota
	OpInter
	OpUnion
)

// SCombine computes the result of combining the named sets' members with
// op, without writing anything.
func (s *Store) SCombine(ctx context.Context, db int, op SetOp, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	sets := make([]map[string][]byte, len(keys))

	for i, key := range keys {
		members, _, err := s.setMembers(ctx, db, key)
		if err != nil {
			return nil, err
		}

		m := make(map[string][]byte, len(members))
		for _, member := range members {
			m[string(member)] = member
		}

		sets[i] = m
	}

	result := combineSets(op, sets)

	out := make([][]byte, 0, len(result))
	for _, member := range result {
		out = append(out, member)
	}

	return out, nil
}

func combineSets(op SetOp, sets []map[string][]byte) map[string][]byte {
	switch op {
	case OpUnion:
		out := map[string][]byte{}

		for _, set := range sets {
			for k, v := range set {
				out[k] = v
			}
		}

		return out
	case OpInter:
		out := map[string][]byte{}

		if len(sets) == 0 {
			return out
		}

		for k, v := range sets[0] {
			inAll := true

			for _, other := range sets[1:] {
				if _, ok := other[k]; !ok {
					inAll = false

					break
				}
			}

			if inAll {
				out[k] = v
			}
		}

		return out
	default: // OpDiff
		out := map[string][]byte{}

		if len(sets) == 0 {
			return out
		}

		for k, v := range sets[0] {
			out[k] = v
		}

		for _, other := range sets[1:] {
			for k := range other {
				delete(out, k)
			}
		}

		return out
	}
}

// SCombineStore computes the combination and stores it into dst, replacing
// any prior value there; an empty result deletes dst. Returns the result
// cardinality.
func (s *Store) SCombineStore(ctx context.Context, db int, op SetOp, dst string, keys []string) (int, error) {
	result, err := s.SCombine(ctx, db, op, keys)
	if err != nil {
		return 0, err
	}

	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := lookupKey(ctx, tx, db, dst)
	if err != nil {
		return 0, err
	}

	if existing != nil {
		if err := deleteKey(ctx, tx, existing.id); err != nil {
			return 0, err
		}
	}

	if len(result) == 0 {
		return 0, commit(tx)
	}

	keyID, err := createKey(ctx, tx, db, dst, TypeSet)
	if err != nil {
		return 0, err
	}

	for _, member := range result {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sets (key_id, member) VALUES (?, ?)`, keyID, member); err != nil {
			return 0, fmt.Errorf("writing set member: %w", err)
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, dst)

	return len(result), nil
}

// SMove atomically moves member from src to dst, returning whether it was
// present in src.
func (s *Store) SMove(ctx context.Context, db int, src, dst string, member []byte) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	srcKey, err := lookupTyped(ctx, tx, db, src, TypeSet)
	if err != nil || srcKey == nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sets WHERE key_id = ? AND member = ?`, srcKey.id, member)
	if err != nil {
		return false, fmt.Errorf("removing source member: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck
	if n == 0 {
		return false, commit(tx)
	}

	if err := touchVersion(ctx, tx, srcKey.id); err != nil {
		return false, err
	}

	if err := deleteKeyIfEmpty(ctx, tx, "sets", srcKey.id); err != nil {
		return false, err
	}

	dstKey, err := lookupTyped(ctx, tx, db, dst, TypeSet)
	if err != nil {
		return false, err
	}

	var dstID int64

	if dstKey == nil {
		dstID, err = createKey(ctx, tx, db, dst, TypeSet)
		if err != nil {
			return false, err
		}
	} else {
		dstID = dstKey.id
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sets (key_id, member) VALUES (?, ?) ON CONFLICT (key_id, member) DO NOTHING`,
		dstID, member); err != nil {
		return false, fmt.Errorf("writing destination member: %w", err)
	}

	if err := touchVersion(ctx, tx, dstID); err != nil {
		return false, err
	}

	if err := commit(tx); err != nil {
		return false, err
	}

	s.notify(db, dst)

	return true, nil
}

// SScan returns members whose string form matches glob (empty = all),
// paginated via an opaque cursor encoding the last-seen rowid.
func (s *Store) SScan(ctx context.Context, db int, key string, cursor int64, match string, count int) ([][]byte, int64, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeSet)
	if err != nil || k == nil {
		return nil, 0, err
	}

	if count <= 0 {
		count = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, member FROM sets WHERE key_id = ? AND rowid > ? ORDER BY rowid ASC LIMIT ?`,
		k.id, cursor, count)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning set: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out [][]byte

	var next int64

	for rows.Next() {
		var rowid int64

		var member []byte

		if err := rows.Scan(&rowid, &member); err != nil {
			return nil, 0, fmt.Errorf("scanning set row: %w", err)
		}

		next = rowid

		if match == "" || globMatch(match, string(member)) {
			out = append(out, member)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning set: %w", err)
	}

	if next == 0 {
		return out, 0, nil
	}

	return out, next, nil
}
