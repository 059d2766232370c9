package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "heraldbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "herald.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDirectoryLifecycle(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.AddSubscriber(ctx, Subscriber{UserID: 20, FirstName: "Bea"}); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if err := st.AddSubscriber(ctx, Subscriber{UserID: 10, FirstName: "Ann", LastName: "K"}); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	// Re-subscribing keeps the original name.
	if err := st.AddSubscriber(ctx, Subscriber{UserID: 10, FirstName: "Other"}); err != nil {
		t.Fatalf("AddSubscriber repeat: %v", err)
	}

	subs, err := st.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subs))
	}
	if subs[0].UserID != 10 || subs[1].UserID != 20 {
		t.Fatalf("expected ascending user ids, got %+v", subs)
	}
	if subs[0].FirstName != "Ann" {
		t.Fatalf("re-subscribe overwrote name: %+v", subs[0])
	}

	ok, err := st.IsAllowed(ctx, 10)
	if err != nil || ok {
		t.Fatalf("IsAllowed before AllowUser = %v, %v", ok, err)
	}
	if err := st.AllowUser(ctx, 10); err != nil {
		t.Fatalf("AllowUser: %v", err)
	}
	if err := st.AllowUser(ctx, 10); err != nil {
		t.Fatalf("AllowUser repeat: %v", err)
	}
	ok, err = st.IsAllowed(ctx, 10)
	if err != nil || !ok {
		t.Fatalf("IsAllowed after AllowUser = %v, %v", ok, err)
	}
}

func TestGroupMembership(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateGroup(ctx, "ops"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := st.CreateGroup(ctx, "  "); err != ErrEmptyGroupName {
		t.Fatalf("expected ErrEmptyGroupName, got %v", err)
	}

	for _, uid := range []int64{3, 1, 2} {
		if err := st.AddSubscriber(ctx, Subscriber{UserID: uid}); err != nil {
			t.Fatalf("AddSubscriber(%d): %v", uid, err)
		}
		if err := st.AssignToGroup(ctx, uid, "ops"); err != nil {
			t.Fatalf("AssignToGroup(%d): %v", uid, err)
		}
	}
	// Membership of someone not in the directory does not show up.
	if err := st.AssignToGroup(ctx, 99, "ops"); err != nil {
		t.Fatalf("AssignToGroup(99): %v", err)
	}

	ids, err := st.GroupMemberIDs(ctx, "ops")
	if err != nil {
		t.Fatalf("GroupMemberIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected member ids: %v", ids)
	}

	if err := st.RemoveFromGroup(ctx, 2, "ops"); err != nil {
		t.Fatalf("RemoveFromGroup: %v", err)
	}
	ids, err = st.GroupMemberIDs(ctx, "ops")
	if err != nil {
		t.Fatalf("GroupMemberIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 members after unassign, got %v", ids)
	}

	if err := st.DeleteGroup(ctx, "ops"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	groups, err := st.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groups)
	}
	ids, err = st.GroupMemberIDs(ctx, "ops")
	if err != nil {
		t.Fatalf("GroupMemberIDs after delete: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("membership survived group deletion: %v", ids)
	}
}

func TestLedgerAndReport(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mid, err := st.CreateMessage(ctx, "ops", "deploy at noon", now)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	mid2, err := st.CreateMessage(ctx, "ops", "second", now)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if mid2 <= mid {
		t.Fatalf("message ids not increasing: %d then %d", mid, mid2)
	}

	ok, err := st.MessageExists(ctx, mid)
	if err != nil || !ok {
		t.Fatalf("MessageExists(%d) = %v, %v", mid, ok, err)
	}
	ok, err = st.MessageExists(ctx, mid2+100)
	if err != nil || ok {
		t.Fatalf("MessageExists(unknown) = %v, %v", ok, err)
	}

	if err := st.RecordDelivery(ctx, mid, 1, true); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if err := st.RecordDelivery(ctx, mid, 2, false); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	// A receipt for a user with no delivery row never joins into the report.
	if _, err := st.MarkRead(ctx, mid, 7, now); err != nil {
		t.Fatalf("MarkRead(orphan): %v", err)
	}

	readAt := now.Add(time.Minute)
	newly, err := st.MarkRead(ctx, mid, 1, readAt)
	if err != nil || !newly {
		t.Fatalf("MarkRead first = %v, %v", newly, err)
	}

	rows, err := st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 report rows, got %d", len(rows))
	}
	if rows[0].UserID != 1 || !rows[0].Delivered || rows[0].ReadAt == nil {
		t.Fatalf("unexpected row for user 1: %+v", rows[0])
	}
	want := readAt.UTC().Truncate(time.Second)
	if !rows[0].ReadAt.Equal(want) {
		t.Fatalf("ReadAt = %v, want %v", rows[0].ReadAt, want)
	}
	if rows[1].UserID != 2 || rows[1].Delivered || rows[1].ReadAt != nil {
		t.Fatalf("unexpected row for user 2: %+v", rows[1])
	}

	rows, err = st.DeliveryReport(ctx, mid2)
	if err != nil {
		t.Fatalf("DeliveryReport(mid2): %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty report for untouched message, got %v", rows)
	}
}

func TestRecordDeliveryLastWriteWins(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	mid, err := st.CreateMessage(ctx, "ops", "x", time.Now())
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if err := st.RecordDelivery(ctx, mid, 1, true); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if err := st.RecordDelivery(ctx, mid, 1, false); err != nil {
		t.Fatalf("repeat RecordDelivery: %v", err)
	}

	rows, err := st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row per recipient after overwrite, got %d", len(rows))
	}
	if rows[0].Delivered {
		t.Fatal("later delivery outcome did not overwrite the earlier one")
	}

	if err := st.RecordDelivery(ctx, mid, 1, true); err != nil {
		t.Fatalf("third RecordDelivery: %v", err)
	}
	rows, err = st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	if len(rows) != 1 || !rows[0].Delivered {
		t.Fatalf("expected single delivered=true row, got %+v", rows)
	}
}

func TestMarkReadFirstWriteWins(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mid, err := st.CreateMessage(ctx, "ops", "x", now)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := st.RecordDelivery(ctx, mid, 1, true); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}

	first := now.Add(time.Second)
	newly, err := st.MarkRead(ctx, mid, 1, first)
	if err != nil || !newly {
		t.Fatalf("first MarkRead = %v, %v", newly, err)
	}
	newly, err = st.MarkRead(ctx, mid, 1, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if newly {
		t.Fatal("duplicate receipt reported as new")
	}

	rows, err := st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	want := first.UTC().Truncate(time.Second)
	if rows[0].ReadAt == nil || !rows[0].ReadAt.Equal(want) {
		t.Fatalf("ReadAt = %v, want first-seen %v", rows[0].ReadAt, want)
	}
}

func TestMarkReadConcurrentDuplicates(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	mid, err := st.CreateMessage(ctx, "ops", "x", time.Now())
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = st.MarkRead(ctx, mid, 1, time.Now())
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("MarkRead[%d]: %v", i, errs[i])
		}
		if results[i] {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRemoveSubscriberPurgesDeliveryNotReceipts(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := st.AddSubscriber(ctx, Subscriber{UserID: 1}); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if err := st.CreateGroup(ctx, "ops"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := st.AssignToGroup(ctx, 1, "ops"); err != nil {
		t.Fatalf("AssignToGroup: %v", err)
	}
	mid, err := st.CreateMessage(ctx, "ops", "x", now)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := st.RecordDelivery(ctx, mid, 1, true); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if _, err := st.MarkRead(ctx, mid, 1, now); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	if err := st.RemoveSubscriber(ctx, 1); err != nil {
		t.Fatalf("RemoveSubscriber: %v", err)
	}

	subs, err := st.Subscribers(ctx)
	if err != nil || len(subs) != 0 {
		t.Fatalf("Subscribers after purge = %v, %v", subs, err)
	}
	ids, err := st.GroupMemberIDs(ctx, "ops")
	if err != nil || len(ids) != 0 {
		t.Fatalf("GroupMemberIDs after purge = %v, %v", ids, err)
	}
	rows, err := st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("delivery rows survived purge: %v", rows)
	}
	// The receipt row itself stays; it just has nothing to join against.
	newly, err := st.MarkRead(ctx, mid, 1, now)
	if err != nil {
		t.Fatalf("MarkRead after purge: %v", err)
	}
	if newly {
		t.Fatal("receipt was purged with the subscriber")
	}
}

func TestDeleteGroupKeepsHistory(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := st.CreateGroup(ctx, "eng"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	mid, err := st.CreateMessage(ctx, "eng", "deploy at 5pm", now)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := st.RecordDelivery(ctx, mid, 101, true); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if _, err := st.MarkRead(ctx, mid, 101, now); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	if err := st.DeleteGroup(ctx, "eng"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	ok, err := st.MessageExists(ctx, mid)
	if err != nil || !ok {
		t.Fatalf("ledger entry lost with the group: %v, %v", ok, err)
	}
	rows, err := st.DeliveryReport(ctx, mid)
	if err != nil {
		t.Fatalf("DeliveryReport: %v", err)
	}
	if len(rows) != 1 || !rows[0].Delivered || rows[0].ReadAt == nil {
		t.Fatalf("history altered by group deletion: %+v", rows)
	}
}

func TestMessagesSince(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	if _, err := st.CreateMessage(ctx, "ops", "old", base.Add(-48*time.Hour)); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	mid, err := st.CreateMessage(ctx, "ops", "recent", base)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	msgs, err := st.MessagesSince(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("MessagesSince: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != mid {
		t.Fatalf("expected only the recent message, got %+v", msgs)
	}
	if msgs[0].Text != "recent" || !msgs[0].SentAt.Equal(base) {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
}
