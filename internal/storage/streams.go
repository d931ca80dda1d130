package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StreamID is a stream entry identifier: a millisecond timestamp paired
// with a per-millisecond sequence number (spec §4.4), ordered lexically by
// (ms, seq).
type StreamID struct {
	Ms  int64
	Seq int64
}

func (id StreamID) less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}

	return id.Seq < other.Seq
}

func (id StreamID) lessEqual(other StreamID) bool {
	return id == other || id.less(other)
}

// StreamEntry is one XADD payload along with its assigned ID.
type StreamEntry struct {
	ID     StreamID
	Fields map[string][]byte
}

// XAdd appends an entry to the stream. An explicit id must be strictly
// greater than the stream's last ID; a zero id (both Ms and Seq 0, paired
// with auto=true) requests auto-generation: candidate_ms = max(now_ms,
// last.ms), seq = last.seq+1 if ms unchanged else 0 (spec §4.4). nomkstream
// suppresses implicit stream creation.
func (s *Store) XAdd(ctx context.Context, db int, key string, id StreamID, auto bool, fields map[string][]byte, nomkstream bool) (StreamID, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return StreamID{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return StreamID{}, err
	}

	if k == nil && nomkstream {
		return StreamID{}, nil
	}

	var keyID int64

	var lastMs, lastSeq int64

	if k == nil {
		keyID, err = createKey(ctx, tx, db, key, TypeStream)
		if err != nil {
			return StreamID{}, err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stream_meta (key_id, last_ms, last_seq) VALUES (?, 0, 0)`, keyID); err != nil {
			return StreamID{}, fmt.Errorf("initializing stream metadata: %w", err)
		}
	} else {
		keyID = k.id

		if err := tx.QueryRowContext(ctx, `SELECT last_ms, last_seq FROM stream_meta WHERE key_id = ?`,
			keyID).Scan(&lastMs, &lastSeq); err != nil {
			return StreamID{}, fmt.Errorf("reading stream metadata: %w", err)
		}
	}

	last := StreamID{Ms: lastMs, Seq: lastSeq}

	var assigned StreamID

	if auto {
		ms := nowMillis()
		if ms < last.Ms {
			ms = last.Ms
		}

		seq := int64(0)
		if ms == last.Ms {
			seq = last.Seq + 1
		}

		assigned = StreamID{Ms: ms, Seq: seq}
	} else {
		if !last.less(id) && !(last == StreamID{}) {
			return StreamID{}, ErrInvalidData
		}

		if (last == StreamID{}) && id == (StreamID{}) {
			return StreamID{}, ErrInvalidData
		}

		assigned = id
	}

	payload, err := encodeFields(fields)
	if err != nil {
		return StreamID{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_entries (key_id, id_ms, id_seq, payload) VALUES (?, ?, ?, ?)`,
		keyID, assigned.Ms, assigned.Seq, payload); err != nil {
		return StreamID{}, fmt.Errorf("appending stream entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE stream_meta SET last_ms = ?, last_seq = ? WHERE key_id = ?`,
		assigned.Ms, assigned.Seq, keyID); err != nil {
		return StreamID{}, fmt.Errorf("updating stream metadata: %w", err)
	}

	if err := touchVersion(ctx, tx, keyID); err != nil {
		return StreamID{}, err
	}

	if err := commit(tx); err != nil {
		return StreamID{}, err
	}

	s.notify(db, key)

	return assigned, nil
}

// XLen returns the entry count.
func (s *Store) XLen(ctx context.Context, db int, key string) (int, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return 0, err
	}

	return countRows(ctx, s.db, "stream_entries", k.id)
}

// XRange returns entries with from <= id <= to (or reverse order if
// reverse), honoring an optional count cap (0 = unbounded).
func (s *Store) XRange(ctx context.Context, db int, key string, from, to StreamID, count int, reverse bool) ([]StreamEntry, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return nil, err
	}

	order := "ASC"
	if reverse {
		order = "DESC"
	}

	query := fmt.Sprintf( //nolint:gosec
		`SELECT id_ms, id_seq, payload FROM stream_entries WHERE key_id = ?
		 AND (id_ms > ? OR (id_ms = ? AND id_seq >= ?))
		 AND (id_ms < ? OR (id_ms = ? AND id_seq <= ?))
		 ORDER BY id_ms %s, id_seq %s`, order, order)

	args := []any{k.id, from.Ms, from.Ms, from.Seq, to.Ms, to.Ms, to.Seq}
	if count > 0 {
		query += " LIMIT ?"
		args = append(args, count)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading stream range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanStreamEntries(rows)
}

func scanStreamEntries(rows *sql.Rows) ([]StreamEntry, error) {
	var out []StreamEntry

	for rows.Next() {
		var e StreamEntry

		var payload []byte

		if err := rows.Scan(&e.ID.Ms, &e.ID.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scanning stream entry: %w", err)
		}

		fields, err := decodeFields(payload)
		if err != nil {
			return nil, err
		}

		e.Fields = fields
		out = append(out, e)
	}

	return out, rows.Err()
}

// XRead returns entries with id > after, up to count (0 = unbounded).
func (s *Store) XRead(ctx context.Context, db int, key string, after StreamID, count int) ([]StreamEntry, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return nil, err
	}

	query := `SELECT id_ms, id_seq, payload FROM stream_entries WHERE key_id = ?
		AND (id_ms > ? OR (id_ms = ? AND id_seq > ?)) ORDER BY id_ms ASC, id_seq ASC`

	args := []any{k.id, after.Ms, after.Ms, after.Seq}
	if count > 0 {
		query += " LIMIT ?"
		args = append(args, count)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanStreamEntries(rows)
}

// XDel removes the named entries, returning the count actually removed.
func (s *Store) XDel(ctx context.Context, db int, key string, ids []StreamID) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil || k == nil {
		return 0, err
	}

	removed := 0

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM stream_entries WHERE key_id = ? AND id_ms = ? AND id_seq = ?`,
			k.id, id.Ms, id.Seq)
		if err != nil {
			return 0, fmt.Errorf("deleting stream entry: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		removed += int(n)
	}

	if removed > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}
	}

	return removed, commit(tx)
}

// XTrimMaxLen trims the stream to at most maxLen entries, keeping the most
// recent ones, returning the count removed.
func (s *Store) XTrimMaxLen(ctx context.Context, db int, key string, maxLen int) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil || k == nil {
		return 0, err
	}

	total, err := countRows(ctx, tx, "stream_entries", k.id)
	if err != nil {
		return 0, err
	}

	excess := total - maxLen
	if excess <= 0 {
		return 0, commit(tx)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM stream_entries WHERE rowid IN (
			SELECT rowid FROM stream_entries WHERE key_id = ? ORDER BY id_ms ASC, id_seq ASC LIMIT ?
		)`, k.id, excess)
	if err != nil {
		return 0, fmt.Errorf("trimming stream: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck

	if err := touchVersion(ctx, tx, k.id); err != nil {
		return 0, err
	}

	return int(n), commit(tx)
}

// XTrimMinID removes entries with id < minID, returning the count removed.
func (s *Store) XTrimMinID(ctx context.Context, db int, key string, minID StreamID) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil || k == nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM stream_entries WHERE key_id = ? AND (id_ms < ? OR (id_ms = ? AND id_seq < ?))`,
		k.id, minID.Ms, minID.Ms, minID.Seq)
	if err != nil {
		return 0, fmt.Errorf("trimming stream: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck

	if n > 0 {
		if err := touchVersion(ctx, tx, k.id); err != nil {
			return 0, err
		}
	}

	return int(n), commit(tx)
}

// StreamGroup describes a consumer group's cursor.
type StreamGroup struct {
	Name      string
	LastID    StreamID
	CreatedAt int64
}

// XGroupCreate creates a consumer group at startID, or at the stream's last
// ID when useLast is set (the "$" sentinel). mkstream creates the stream if
// absent.
func (s *Store) XGroupCreate(ctx context.Context, db int, key, group string, startID StreamID, useLast, mkstream bool) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return err
	}

	var keyID int64

	if k == nil {
		if !mkstream {
			return ErrNoGroup
		}

		keyID, err = createKey(ctx, tx, db, key, TypeStream)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stream_meta (key_id, last_ms, last_seq) VALUES (?, 0, 0)`, keyID); err != nil {
			return fmt.Errorf("initializing stream metadata: %w", err)
		}
	} else {
		keyID = k.id
	}

	id := startID

	if useLast {
		if err := tx.QueryRowContext(ctx, `SELECT last_ms, last_seq FROM stream_meta WHERE key_id = ?`,
			keyID).Scan(&id.Ms, &id.Seq); err != nil {
			return fmt.Errorf("reading stream metadata: %w", err)
		}
	}

	var exists int

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM stream_groups WHERE key_id = ? AND name = ?`, keyID, group).Scan(&exists)
	if err == nil {
		return ErrBusyGroup
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_groups (key_id, name, last_ms, last_seq, created_at) VALUES (?, ?, ?, ?, ?)`,
		keyID, group, id.Ms, id.Seq, nowMillis()); err != nil {
		return fmt.Errorf("creating consumer group: %w", err)
	}

	return commit(tx)
}

// XGroupDestroy removes a consumer group, returning whether it existed.
func (s *Store) XGroupDestroy(ctx context.Context, db int, key, group string) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil || k == nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM stream_groups WHERE key_id = ? AND name = ?`, k.id, group)
	if err != nil {
		return false, fmt.Errorf("destroying consumer group: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck

	return n > 0, commit(tx)
}

// XGroupSetID resets the group's delivery cursor.
func (s *Store) XGroupSetID(ctx context.Context, db int, key, group string, id StreamID, useLast bool) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return err
	}

	if k == nil {
		return ErrNoGroup
	}

	if useLast {
		if err := tx.QueryRowContext(ctx, `SELECT last_ms, last_seq FROM stream_meta WHERE key_id = ?`,
			k.id).Scan(&id.Ms, &id.Seq); err != nil {
			return fmt.Errorf("reading stream metadata: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE stream_groups SET last_ms = ?, last_seq = ? WHERE key_id = ? AND name = ?`,
		id.Ms, id.Seq, k.id, group)
	if err != nil {
		return fmt.Errorf("updating consumer group cursor: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck
	if n == 0 {
		return ErrNoGroup
	}

	return commit(tx)
}

// XGroupCreateConsumer registers a consumer with no pending entries,
// returning whether it was newly created.
func (s *Store) XGroupCreateConsumer(ctx context.Context, db int, key, group, consumer string) (bool, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return false, err
	}

	if k == nil {
		return false, ErrNoGroup
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO stream_consumers (key_id, grp, name, seen_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key_id, grp, name) DO NOTHING`,
		k.id, group, consumer, nowMillis())
	if err != nil {
		return false, fmt.Errorf("creating consumer: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck

	return n > 0, commit(tx)
}

// XGroupDelConsumer removes a consumer and its pending entries, returning
// the count of pending entries that were dropped.
func (s *Store) XGroupDelConsumer(ctx context.Context, db int, key, group, consumer string) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return 0, err
	}

	if k == nil {
		return 0, ErrNoGroup
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM stream_pending WHERE key_id = ? AND grp = ? AND consumer = ?`,
		k.id, group, consumer)
	if err != nil {
		return 0, fmt.Errorf("clearing pending entries: %w", err)
	}

	n, _ := res.RowsAffected() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM stream_consumers WHERE key_id = ? AND grp = ? AND name = ?`,
		k.id, group, consumer); err != nil {
		return 0, fmt.Errorf("removing consumer: %w", err)
	}

	return int(n), commit(tx)
}

// XReadGroup delivers up to count new entries (id > group cursor) to
// consumer, recording pending entries unless noack. Advances the group
// cursor as entries are delivered.
func (s *Store) XReadGroup(ctx context.Context, db int, key, group, consumer string, count int, noack bool) ([]StreamEntry, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return nil, err
	}

	if k == nil {
		return nil, ErrNoGroup
	}

	var lastMs, lastSeq int64

	err = tx.QueryRowContext(ctx, `SELECT last_ms, last_seq FROM stream_groups WHERE key_id = ? AND name = ?`,
		k.id, group).Scan(&lastMs, &lastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoGroup
	}

	if err != nil {
		return nil, fmt.Errorf("reading consumer group: %w", err)
	}

	query := `SELECT id_ms, id_seq, payload FROM stream_entries WHERE key_id = ?
		AND (id_ms > ? OR (id_ms = ? AND id_seq > ?)) ORDER BY id_ms ASC, id_seq ASC`

	args := []any{k.id, lastMs, lastMs, lastSeq}
	if count > 0 {
		query += " LIMIT ?"
		args = append(args, count)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	entries, err := scanStreamEntries(rows)
	rows.Close() //nolint:errcheck

	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, commit(tx)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_consumers (key_id, grp, name, seen_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key_id, grp, name) DO UPDATE SET seen_at = excluded.seen_at`,
		k.id, group, consumer, nowMillis()); err != nil {
		return nil, fmt.Errorf("updating consumer: %w", err)
	}

	last := entries[len(entries)-1].ID

	if _, err := tx.ExecContext(ctx, `UPDATE stream_groups SET last_ms = ?, last_seq = ? WHERE key_id = ? AND name = ?`,
		last.Ms, last.Seq, k.id, group); err != nil {
		return nil, fmt.Errorf("advancing consumer group cursor: %w", err)
	}

	if !noack {
		now := nowMillis()

		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stream_pending (key_id, grp, id_ms, id_seq, consumer, delivered_at, delivery_count)
				 VALUES (?, ?, ?, ?, ?, ?, 1)
				 ON CONFLICT (key_id, grp, id_ms, id_seq)
				 DO UPDATE SET consumer = excluded.consumer, delivered_at = excluded.delivered_at,
				               delivery_count = stream_pending.delivery_count + 1`,
				k.id, group, e.ID.Ms, e.ID.Seq, consumer, now); err != nil {
				return nil, fmt.Errorf("recording pending entry: %w", err)
			}
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return entries, nil
}

// XAck acknowledges the given entries, returning the count actually
// removed from the pending list.
func (s *Store) XAck(ctx context.Context, db int, key, group string, ids []StreamID) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil || k == nil {
		return 0, err
	}

	removed := 0

	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM stream_pending WHERE key_id = ? AND grp = ? AND id_ms = ? AND id_seq = ?`,
			k.id, group, id.Ms, id.Seq)
		if err != nil {
			return 0, fmt.Errorf("acking entry: %w", err)
		}

		n, _ := res.RowsAffected() //nolint:errcheck
		removed += int(n)
	}

	return removed, commit(tx)
}

// PendingEntry is one row of XPENDING's extended (range) form.
type PendingEntry struct {
	ID            StreamID
	Consumer      string
	IdleMillis    int64
	DeliveryCount int
}

// XPendingSummary is XPENDING's no-range summary form.
type XPendingSummary struct {
	Count     int
	MinID     StreamID
	MaxID     StreamID
	Consumers map[string]int
}

// XPending returns the group's pending-entry summary.
func (s *Store) XPending(ctx context.Context, db int, key, group string) (XPendingSummary, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return XPendingSummary{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id_ms, id_seq, consumer FROM stream_pending WHERE key_id = ? AND grp = ? ORDER BY id_ms ASC, id_seq ASC`,
		k.id, group)
	if err != nil {
		return XPendingSummary{}, fmt.Errorf("reading pending entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	summary := XPendingSummary{Consumers: map[string]int{}} //nolint:exhaustruct

	var first, last StreamID

	for rows.Next() {
		var id StreamID

		var consumer string

		if err := rows.Scan(&id.Ms, &id.Seq, &consumer); err != nil {
			return XPendingSummary{}, fmt.Errorf("scanning pending entry: %w", err)
		}

		if summary.Count == 0 {
			first = id
		}

		last = id
		summary.Count++
		summary.Consumers[consumer]++
	}

	summary.MinID = first
	summary.MaxID = last

	return summary, rows.Err()
}

// XPendingRange returns the detailed entries in [from,to], optionally
// filtered to one consumer, up to count.
func (s *Store) XPendingRange(ctx context.Context, db int, key, group string, from, to StreamID, count int, consumer string) ([]PendingEntry, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return nil, err
	}

	query := `SELECT id_ms, id_seq, consumer, delivered_at, delivery_count FROM stream_pending
		WHERE key_id = ? AND grp = ?
		AND (id_ms > ? OR (id_ms = ? AND id_seq >= ?))
		AND (id_ms < ? OR (id_ms = ? AND id_seq <= ?))`

	args := []any{k.id, group, from.Ms, from.Ms, from.Seq, to.Ms, to.Ms, to.Seq}

	if consumer != "" {
		query += " AND consumer = ?"
		args = append(args, consumer)
	}

	query += " ORDER BY id_ms ASC, id_seq ASC"

	if count > 0 {
		query += " LIMIT ?"
		args = append(args, count)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading pending range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	now := nowMillis()

	var out []PendingEntry

	for rows.Next() {
		var p PendingEntry

		var deliveredAt int64

		if err := rows.Scan(&p.ID.Ms, &p.ID.Seq, &p.Consumer, &deliveredAt, &p.DeliveryCount); err != nil {
			return nil, fmt.Errorf("scanning pending entry: %w", err)
		}

		p.IdleMillis = now - deliveredAt
		out = append(out, p)
	}

	return out, rows.Err()
}

// XClaim reassigns pending entries idle at least minIdleMillis to
// consumer, incrementing their delivery count unless justID is set
// (the minIdleMillis check applies either way). force claims entries not
// yet in the pending list, as long as they exist in the stream.
func (s *Store) XClaim(ctx context.Context, db int, key, group, consumer string, minIdleMillis int64, ids []StreamID, justID, force bool) ([]StreamEntry, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	k, err := lookupTyped(ctx, tx, db, key, TypeStream)
	if err != nil {
		return nil, err
	}

	if k == nil {
		return nil, ErrNoGroup
	}

	now := nowMillis()

	var claimed []StreamID

	for _, id := range ids {
		var deliveredAt int64

		var deliveryCount int

		err := tx.QueryRowContext(ctx,
			`SELECT delivered_at, delivery_count FROM stream_pending WHERE key_id = ? AND grp = ? AND id_ms = ? AND id_seq = ?`,
			k.id, group, id.Ms, id.Seq).Scan(&deliveredAt, &deliveryCount)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if !force {
				continue
			}

			var entryExists int

			if err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM stream_entries WHERE key_id = ? AND id_ms = ? AND id_seq = ?`,
				k.id, id.Ms, id.Seq).Scan(&entryExists); err != nil {
				continue
			}

			deliveryCount = 0
		case err != nil:
			return nil, fmt.Errorf("reading pending entry: %w", err)
		default:
			if now-deliveredAt < minIdleMillis {
				continue
			}
		}

		nextCount := deliveryCount + 1
		if justID {
			nextCount = deliveryCount
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stream_pending (key_id, grp, id_ms, id_seq, consumer, delivered_at, delivery_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (key_id, grp, id_ms, id_seq)
			 DO UPDATE SET consumer = excluded.consumer, delivered_at = excluded.delivered_at,
			               delivery_count = excluded.delivery_count`,
			k.id, group, id.Ms, id.Seq, consumer, now, nextCount); err != nil {
			return nil, fmt.Errorf("claiming entry: %w", err)
		}

		claimed = append(claimed, id)
	}

	if len(claimed) == 0 {
		return nil, commit(tx)
	}

	var out []StreamEntry

	for _, id := range claimed {
		var payload []byte

		err := tx.QueryRowContext(ctx, `SELECT payload FROM stream_entries WHERE key_id = ? AND id_ms = ? AND id_seq = ?`,
			k.id, id.Ms, id.Seq).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM stream_pending WHERE key_id = ? AND grp = ? AND id_ms = ? AND id_seq = ?`,
				k.id, group, id.Ms, id.Seq); err != nil {
				return nil, fmt.Errorf("dropping claim for deleted entry: %w", err)
			}

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("reading claimed entry: %w", err)
		}

		fields, err := decodeFields(payload)
		if err != nil {
			return nil, err
		}

		out = append(out, StreamEntry{ID: id, Fields: fields})
	}

	return out, commit(tx)
}

// XInfoStream reports summary information about a stream.
type XInfoStream struct {
	Length        int
	LastID        StreamID
	FirstEntry    *StreamEntry
	LastEntry     *StreamEntry
	GroupCount    int
}

// XInfoStream returns the stream's summary info.
func (s *Store) XInfoStream(ctx context.Context, db int, key string) (XInfoStream, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return XInfoStream{}, err
	}

	var info XInfoStream

	info.Length, err = countRows(ctx, s.db, "stream_entries", k.id)
	if err != nil {
		return XInfoStream{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT last_ms, last_seq FROM stream_meta WHERE key_id = ?`,
		k.id).Scan(&info.LastID.Ms, &info.LastID.Seq); err != nil {
		return XInfoStream{}, fmt.Errorf("reading stream metadata: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stream_groups WHERE key_id = ?`,
		k.id).Scan(&info.GroupCount); err != nil {
		return XInfoStream{}, fmt.Errorf("counting consumer groups: %w", err)
	}

	entries, err := s.XRange(ctx, db, key, StreamID{}, StreamID{Ms: 1<<63 - 1, Seq: 1<<63 - 1}, 1, false)
	if err != nil {
		return XInfoStream{}, err
	}

	if len(entries) > 0 {
		info.FirstEntry = &entries[0]
	}

	last, err := s.XRange(ctx, db, key, StreamID{}, StreamID{Ms: 1<<63 - 1, Seq: 1<<63 - 1}, 1, true)
	if err != nil {
		return XInfoStream{}, err
	}

	if len(last) > 0 {
		info.LastEntry = &last[0]
	}

	return info, nil
}

// XInfoGroups returns each consumer group's name, cursor and creation
// time; pending counts are not included.
func (s *Store) XInfoGroups(ctx context.Context, db int, key string) ([]StreamGroup, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, last_ms, last_seq, created_at FROM stream_groups WHERE key_id = ?`, k.id)
	if err != nil {
		return nil, fmt.Errorf("reading consumer groups: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []StreamGroup

	for rows.Next() {
		var g StreamGroup
		if err := rows.Scan(&g.Name, &g.LastID.Ms, &g.LastID.Seq, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning consumer group: %w", err)
		}

		out = append(out, g)
	}

	return out, rows.Err()
}

// StreamConsumer describes one registered consumer of a group.
type StreamConsumer struct {
	Name   string
	SeenAt int64
}

// XInfoConsumers returns the group's registered consumers.
func (s *Store) XInfoConsumers(ctx context.Context, db int, key, group string) ([]StreamConsumer, error) {
	k, err := lookupTyped(ctx, s.db, db, key, TypeStream)
	if err != nil || k == nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, seen_at FROM stream_consumers WHERE key_id = ? AND grp = ?`, k.id, group)
	if err != nil {
		return nil, fmt.Errorf("reading consumers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []StreamConsumer

	for rows.Next() {
		var c StreamConsumer
		if err := rows.Scan(&c.Name, &c.SeenAt); err != nil {
			return nil, fmt.Errorf("scanning consumer: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}
