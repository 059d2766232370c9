package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateMessage appends a ledger entry and returns its id. Ids are strictly
// increasing: AUTOINCREMENT plus the single writer connection means no two
// concurrent calls can observe the same id.
func (s *Store) CreateMessage(ctx context.Context, group, text string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(group_name, text, sent_time) VALUES(?,?,?)`,
		group, text, at.UTC().Truncate(time.Second).Format(timeFormat),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) MessageExists(ctx context.Context, mid int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE message_id = ?`, mid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MessagesSince lists ledger entries sent at or after the given time, newest
// last. Read-side only; used by the digest.
func (s *Store) MessagesSince(ctx context.Context, since time.Time) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, group_name, text, sent_time
		  FROM messages
		 WHERE sent_time >= ?
		 ORDER BY message_id`,
		since.UTC().Format(timeFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sent string
		if err := rows.Scan(&m.ID, &m.Group, &m.Text, &sent); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(timeFormat, sent); perr == nil {
			m.SentAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordDelivery stores the transport outcome for one (message, recipient)
// pair. Last write wins; re-sends are not expected but are not rejected.
func (s *Store) RecordDelivery(ctx context.Context, mid, uid int64, delivered bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO delivery(message_id, user_id, delivered) VALUES(?,?,?)`,
		mid, uid, delivered,
	)
	return err
}

// MarkRead records the first-seen read acknowledgment for one (message,
// recipient) pair. First write wins: the insert is ignored when a receipt
// already exists, and the composite primary key makes the check-and-insert
// atomic under concurrent duplicate signals. Returns true when the receipt
// was newly recorded.
func (s *Store) MarkRead(ctx context.Context, mid, uid int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO read_receipts(message_id, user_id, read_time) VALUES(?,?,?)
		 ON CONFLICT(message_id, user_id) DO NOTHING`,
		mid, uid, at.UTC().Truncate(time.Second).Format(timeFormat),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeliveryReport joins delivery records with read receipts for one message:
// one row per recipient ever attempted, ordered by user id, ReadAt nil when
// unacknowledged. Receipts without a matching delivery row are excluded.
func (s *Store) DeliveryReport(ctx context.Context, mid int64) ([]ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.user_id, d.delivered, rr.read_time
		  FROM delivery d
		  LEFT JOIN read_receipts rr
		    ON d.message_id = rr.message_id AND d.user_id = rr.user_id
		 WHERE d.message_id = ?
		 ORDER BY d.user_id`, mid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		var readTime sql.NullString
		if err := rows.Scan(&r.UserID, &r.Delivered, &readTime); err != nil {
			return nil, err
		}
		if readTime.Valid {
			if t, perr := time.Parse(timeFormat, readTime.String); perr == nil {
				r.ReadAt = &t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
