package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrEmptyGroupName = errors.New("group name is empty")

// AddSubscriber registers a subscriber. Re-subscribing is a no-op (the
// original name fields are kept).
func (s *Store) AddSubscriber(ctx context.Context, sub Subscriber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers(user_id, first_name, last_name) VALUES(?,?,?)`,
		sub.UserID, sub.FirstName, sub.LastName,
	)
	return err
}

// RemoveSubscriber purges a subscriber: directory entry, group memberships
// and delivery records go with it. Ledger rows and read receipts stay; a
// receipt without a delivery row simply never joins into a report.
func (s *Store) RemoveSubscriber(ctx context.Context, uid int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM subscribers WHERE user_id = ?`,
		`DELETE FROM group_members WHERE user_id = ?`,
		`DELETE FROM delivery WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, uid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Subscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, first_name, last_name FROM subscribers ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.UserID, &sub.FirstName, &sub.LastName); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SubscriberIDs snapshots every subscriber id (the broadcast-to-all audience).
func (s *Store) SubscriberIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT user_id FROM subscribers ORDER BY user_id`)
}

func (s *Store) AllowUser(ctx context.Context, uid int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO allowed_users(user_id) VALUES(?)`, uid)
	return err
}

func (s *Store) IsAllowed(ctx context.Context, uid int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM allowed_users WHERE user_id = ?`, uid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CreateGroup(ctx context.Context, group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return ErrEmptyGroupName
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_list(group_name) VALUES(?)`, group)
	return err
}

// DeleteGroup removes the group and its membership rows. Historical
// messages sent under this group name are untouched.
func (s *Store) DeleteGroup(ctx context.Context, group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return ErrEmptyGroupName
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_list WHERE group_name = ?`, group); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_name = ?`, group); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Groups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_name FROM group_list ORDER BY group_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) AssignToGroup(ctx context.Context, uid int64, group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return ErrEmptyGroupName
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members(group_name, user_id) VALUES(?,?)`, group, uid)
	return err
}

func (s *Store) RemoveFromGroup(ctx context.Context, uid int64, group string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE user_id = ? AND group_name = ?`, uid, group)
	return err
}

// GroupMembers lists member directory entries, for display.
func (s *Store) GroupMembers(ctx context.Context, group string) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.user_id, s.first_name, s.last_name
		  FROM subscribers s
		  JOIN group_members g ON s.user_id = g.user_id
		 WHERE g.group_name = ?
		 ORDER BY s.user_id`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.UserID, &sub.FirstName, &sub.LastName); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GroupMemberIDs snapshots the current member set of a group. This is the
// membership view the broadcast orchestrator resolves at send time.
func (s *Store) GroupMemberIDs(ctx context.Context, group string) ([]int64, error) {
	return s.queryIDs(ctx, `
		SELECT s.user_id
		  FROM subscribers s
		  JOIN group_members g ON s.user_id = g.user_id
		 WHERE g.group_name = ?
		 ORDER BY s.user_id`, group)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
