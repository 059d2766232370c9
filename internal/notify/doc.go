// Package notify implements tracked group notifications.
//
// A group send creates one ledger entry, resolves the group's members at
// send time, delivers the text with an inline "mark as read" button to each
// member, and records the transport outcome per recipient. Acknowledgment
// taps come back as callback events carrying a token derived from the
// message id; the first tap per (message, recipient) pair is recorded with
// its timestamp, later taps are no-ops. The report joins delivery outcomes
// with read receipts.
//
// Delivery semantics
//
// Per-recipient transport failures are absorbed into delivery state
// (delivered=false) and never abort the batch or surface to the caller.
// There is no retry: a failed send is final for that recipient and message.
// Store write failures, by contrast, always propagate: a silently missing
// delivery record would make later reports wrong.
//
// Broadcast-to-all is deliberately untracked: no ledger entry, no delivery
// records, no ack button. Only group-targeted sends are reported on.
package notify
