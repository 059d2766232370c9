package store

import "time"

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Subscriber is one directory entry.
type Subscriber struct {
	UserID    int64
	FirstName string
	LastName  string
}

// Message is one ledger entry for a tracked group notification.
// Immutable after creation.
type Message struct {
	ID     int64
	Group  string
	Text   string
	SentAt time.Time
}

// ReportRow is one line of the delivery/read reconciliation report:
// a delivery record left-joined with its read receipt.
// ReadAt is nil while the recipient has not acknowledged.
type ReportRow struct {
	UserID    int64
	Delivered bool
	ReadAt    *time.Time
}

// timeFormat is how timestamps are persisted: RFC 3339 UTC, second precision.
const timeFormat = time.RFC3339
