package router

import (
	"sync"
	"time"
)

// pendingKind enumerates the menu actions that wait for one free-text
// answer from the user. No other conversation state exists: a slash command
// or a newer menu action always replaces the pending entry.
type pendingKind int

const (
	pendingAssign pendingKind = iota
	pendingUnassign
	pendingCreateGroup
	pendingDeleteGroup
	pendingNotifyAll
	pendingNotifyGroup
)

func (k pendingKind) String() string {
	switch k {
	case pendingAssign:
		return "assign"
	case pendingUnassign:
		return "unassign"
	case pendingCreateGroup:
		return "create_group"
	case pendingDeleteGroup:
		return "delete_group"
	case pendingNotifyAll:
		return "notify_all"
	case pendingNotifyGroup:
		return "notify_group"
	default:
		return "unknown"
	}
}

type pendingEntry struct {
	kind  pendingKind
	setAt time.Time
}

// pendingTable keys awaiting-input state by user id. Entries expire after
// ttl so a stale prompt cannot capture an unrelated message days later.
type pendingTable struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]pendingEntry

	// now is swappable for tests.
	now func() time.Time
}

func newPendingTable(ttl time.Duration) *pendingTable {
	return &pendingTable{ttl: ttl, m: make(map[int64]pendingEntry), now: time.Now}
}

func (t *pendingTable) Set(uid int64, kind pendingKind) {
	t.mu.Lock()
	t.m[uid] = pendingEntry{kind: kind, setAt: t.now()}
	t.mu.Unlock()
}

// Take returns and clears the pending action for uid, if any non-expired
// entry exists.
func (t *pendingTable) Take(uid int64) (pendingKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[uid]
	if !ok {
		return 0, false
	}
	delete(t.m, uid)
	if t.ttl > 0 && t.now().Sub(e.setAt) > t.ttl {
		return 0, false
	}
	return e.kind, true
}

func (t *pendingTable) Clear(uid int64) {
	t.mu.Lock()
	delete(t.m, uid)
	t.mu.Unlock()
}
