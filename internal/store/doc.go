// Package store is heraldbot's sqlite persistence layer.
//
// It holds two kinds of state:
//   - Directory state: subscribers, the allow-list, and named groups.
//   - Notification state: the message ledger, per-recipient delivery
//     records, and first-seen read receipts.
//
// The database is opened with a single writer connection (sqlite prefers
// that) and WAL journaling. Read receipts are written with insert-or-ignore
// semantics so a duplicate acknowledgment can never overwrite the first
// timestamp, even under concurrent signals.
package store
