package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ZAdd inserts or updates score/member pairs, returning the count of
// members that did not previously exist. A duplicate member in the same
// call updates its score in place (spec §4.1).
func (s *Store) ZAdd(ctx context.Context, db int, key string, pairs map[string]float64) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeZSet)
	if err != nil {
		return 0, err
	}

	var keyID int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeZSet)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id
	}

	created := 0

	for member, score := range pairs {
		var exists int

		err := tx.QueryRowContext(ctx, `SELECT 1 FROM zsets WHERE key_id = ? AND member = ?`,
			keyID, member).Scan(&exists)
		if err != nil {
			created++
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zsets (key_id, member, score) VALUES (?, ?, ?)
			 ON CONFLICT (key_id, member) DO UPDATE SET score = excluded.score`,
			keyID, member, score); err != nil {
			return 0, fmt.Errorf("writing zset member: %w", err)
		}
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, key)

	return created, nil
}

// ZRem removes members, returning the count removed, and deletes the key
// once empty.
func (s *Store) ZRem(ctx context.Context, db int, key string, members []string) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeZSet)
	if err != nil || k == nil {
		return 0, err
	}

	removed := 0

	for _, member := range members {
		res, err := tx.ExecContext(ctx, `DELETE FROM zsets WHERE key_id = ? AND member = ?`, k.id, member)
		if err != nil {
			return 0, fmt.Errorf("removing zset member: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		removed += int(n)
	}

	if removed > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}

		if err := deleteKeyIfEmpty(ctx, tx, "zsets", k.id); err != nil {
			return 0, err
		}
	}

	return removed, commit(tx)
}

// ZScore returns the member's score and whether it exists.
func (s *Store) ZScore(ctx context.Context, db int, key, member string) (float64, bool, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeZSet)
	if err != nil || k == nil {
		return 0, false, err
	}

	var score float64

	err = s.db.QueryRowContext(ctx, `SELECT score FROM zsets WHERE key_id = ? AND member = ?`, k.id, member).Scan(&score)
	if err != nil {
		return 0, false, nil //nolint:nilerr
	}

	return score, true, nil
}

type ZMember struct {
	Member string
	Score  float64
}

func (s *Store) zsetSnapshot(ctx context.Context, db int, key string) ([]ZMember, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeZSet)
	if err != nil || k == nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT member, score FROM zsets WHERE key_id = ? ORDER BY score ASC, member ASC`, k.id)
	if err != nil {
		return nil, fmt.Errorf("reading zset: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ZMember

	for rows.Next() {
		var m ZMember
		if err := rows.Scan(&m.Member, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning zset row: %w", err)
		}

		out = append(out, m)
	}

	return out, rows.Err()
}

// ZRank returns the 0-based rank of member in ascending score order, and
// whether it exists. ZRevRank uses descending order.
func (s *Store) ZRank(ctx context.Context, db int, key, member string, reverse bool) (int, bool, error) {
	all, err := s.zsetSnapshot(ctx, db, key)
	if err != nil {
		return 0, false, err
	}

	for i, m := range all {
		if m.Member == member {
			if reverse {
				return len(all) - 1 - i, true, nil
			}

			return i, true, nil
		}
	}

	return 0, false, nil
}

// ZCard returns the member count.
func (s *Store) ZCard(ctx context.Context, db int, key string) (int, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeZSet)
	if err != nil || k == nil {
		return 0, err
	}

	return countRows(ctx, s.db, "zsets", k.id)
}

// ZRange returns the logical slice [start,end] in ascending (or, if
// reverse, descending) order.
func (s *Store) ZRange(ctx context.Context, db int, key string, start, end int, reverse bool) ([]ZMember, error) {
	all, err := s.zsetSnapshot(ctx, db, key)
	if err != nil {
		return nil, err
	}

	if reverse {
		reversed := make([]ZMember, len(all))
		for i, m := range all {
			reversed[len(all)-1-i] = m
		}

		all = reversed
	}

	lo, hi, ok := clampRange(len(all), start, end)
	if !ok {
		return nil, nil
	}

	return all[lo:hi], nil
}

// ZRangeByScore returns members with min <= score <= max (exclusivity
// flags handled by the caller pre-adjusting bounds via math.Nextafter),
// honoring an optional offset/count limit. Use math.Inf for unbounded ends.
func (s *Store) ZRangeByScore(ctx context.Context, db int, key string, minScore, maxScore float64, offset, count int) ([]ZMember, error) {
	all, err := s.zsetSnapshot(ctx, db, key)
	if err != nil {
		return nil, err
	}

	var out []ZMember

	for _, m := range all {
		if m.Score >= minScore && m.Score <= maxScore {
			out = append(out, m)
		}
	}

	return applyLimit(out, offset, count), nil
}

// ZRevRangeByScore is ZRangeByScore in descending order.
func (s *Store) ZRevRangeByScore(ctx context.Context, db int, key string, minScore, maxScore float64, offset, count int) ([]ZMember, error) {
	out, err := s.ZRangeByScore(ctx, db, key, minScore, maxScore, 0, -1)
	if err != nil {
		return nil, err
	}

	reversed := make([]ZMember, len(out))
	for i, m := range out {
		reversed[len(out)-1-i] = m
	}

	return applyLimit(reversed, offset, count), nil
}

func applyLimit(all []ZMember, offset, count int) []ZMember {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(all) {
		return nil
	}

	all = all[offset:]

	if count < 0 || count > len(all) {
		return all
	}

	return all[:count]
}

// ZCount counts members with min <= score <= max.
func (s *Store) ZCount(ctx context.Context, db int, key string, minScore, maxScore float64) (int, error) {
	all, err := s.ZRangeByScore(ctx, db, key, minScore, maxScore, 0, -1)

	return len(all), err
}

// ZIncrBy adds delta to member's score (absent treated as 0), returning
// the new score.
func (s *Store) ZIncrBy(ctx context.Context, db int, key, member string, delta float64) (float64, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeZSet)
	if err != nil {
		return 0, err
	}

	var keyID int64

	var current float64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeZSet)
		if err != nil {
			return 0, err
		}
	} else {
		keyID = k.id

		_ = tx.QueryRowContext(ctx, `SELECT score FROM zsets WHERE key_id = ? AND member = ?`,
			keyID, member).Scan(&current)
	}

	next := current + delta

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO zsets (key_id, member, score) VALUES (?, ?, ?)
		 ON CONFLICT (key_id, member) DO UPDATE SET score = excluded.score`,
		keyID, member, next); err != nil {
		return 0, fmt.Errorf("writing zset member: %w", err)
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return 0, err
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, key)

	return next, nil
}

// ZRemRangeByRank removes the logical slice [start,end], returning the
// count removed.
func (s *Store) ZRemRangeByRank(ctx context.Context, db int, key string, start, end int) (int, error) {
	all, err := s.zsetSnapshot(ctx, db, key)
	if err != nil || len(all) == 0 {
		return 0, err
	}

	lo, hi, ok := clampRange(len(all), start, end)
	if !ok {
		return 0, nil
	}

	members := make([]string, 0, hi-lo)
	for _, m := range all[lo:hi] {
		members = append(members, m.Member)
	}

	return s.ZRem(ctx, db, key, members)
}

// ZRemRangeByScore removes members with min <= score <= max, returning the
// count removed.
func (s *Store) ZRemRangeByScore(ctx context.Context, db int, key string, minScore, maxScore float64) (int, error) {
	all, err := s.ZRangeByScore(ctx, db, key, minScore, maxScore, 0, -1)
	if err != nil || len(all) == 0 {
		return 0, err
	}

	members := make([]string, 0, len(all))
	for _, m := range all {
		members = append(members, m.Member)
	}

	return s.ZRem(ctx, db, key, members)
}

// ZAggregate selects the combining rule for ZINTERSTORE/ZUNIONSTORE.
type ZAggregate int

const (
	AggSum ZAggregate = iota
	AggMin
	AggMax
)

// ZStore computes the weighted aggregate of the named sorted sets'
// members (union or intersection per op) and stores the result into dst,
// replacing any prior value; an empty result deletes dst. Returns the
// result cardinality.
func (s *Store) ZStore(ctx context.Context, db int, op SetOp, agg ZAggregate, dst string, keys []string, weights []float64) (int, error) {
	acc := map[string]float64{}
	present := map[string]int{}

	for i, key := range keys {
		members, err := s.zsetSnapshot(ctx, db, key)
		if err != nil {
			return 0, err
		}

		weight := 1.0
		if i < len(weights) {
			weight = weights[i]
		}

		for _, m := range members {
			weighted := m.Score * weight

			present[m.Member]++

			if existing, ok := acc[m.Member]; ok {
				switch agg {
				case AggMin:
					acc[m.Member] = math.Min(existing, weighted)
				case AggMax:
					acc[m.Member] = math.Max(existing, weighted)
				default:
					acc[m.Member] = existing + weighted
				}
			} else {
				acc[m.Member] = weighted
			}
		}
	}

	var members []string

	for member, count := range present {
		if op == OpInter && count != len(keys) {
			continue
		}

		members = append(members, member)
	}

	sort.Strings(members)

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

	if len(members) == 0 {
		return 0, commit(tx)
	}

	keyID, err := createKey(ctx, tx, db, dst, TypeZSet)
	if err != nil {
		return 0, err
	}

	for _, member := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO zsets (key_id, member, score) VALUES (?, ?, ?)`,
			keyID, member, acc[member]); err != nil {
			return 0, fmt.Errorf("writing zset member: %w", err)
		}
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	s.notify(db, dst)

	return len(members), nil
}

// ZScan returns members whose string form matches glob, paginated via an
// opaque cursor encoding the last-seen rowid.
func (s *Store) ZScan(ctx context.Context, db int, key string, cursor int64, match string, count int) ([]ZMember, int64, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeZSet)
	if err != nil || k == nil {
		return nil, 0, err
	}

	if count <= 0 {
		count = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, member, score FROM zsets WHERE key_id = ? AND rowid > ? ORDER BY rowid ASC LIMIT ?`,
		k.id, cursor, count)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning zset: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ZMember

	var next int64

	for rows.Next() {
		var rowid int64

		var m ZMember

		if err := rows.Scan(&rowid, &m.Member, &m.Score); err != nil {
			return nil, 0, fmt.Errorf("scanning zset row: %w", err)
		}

		next = rowid

		if match == "" || globMatch(match, m.Member) {
			out = append(out, m)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning zset: %w", err)
	}

	if next == 0 {
		return out, 0, nil
	}

	return out, next, nil
}
