package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
	logx "heraldbot/pkg/logx"
)

type fakeStore struct {
	messages []store.Message
	reports  map[int64][]store.ReportRow
}

func (f *fakeStore) MessagesSince(_ context.Context, since time.Time) ([]store.Message, error) {
	var out []store.Message
	for _, m := range f.messages {
		if !m.SentAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) DeliveryReport(_ context.Context, mid int64) ([]store.ReportRow, error) {
	return f.reports[mid], nil
}

type fakeSender struct {
	sent map[int64]string
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	if f.sent == nil {
		f.sent = map[int64]string{}
	}
	f.sent[to.ChatID] = text
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func TestRunSummarizesWindow(t *testing.T) {
	t.Parallel()
	now := time.Now()
	readAt := now.Add(-time.Hour)
	st := &fakeStore{
		messages: []store.Message{
			{ID: 1, Group: "ops", SentAt: now.Add(-2 * time.Hour)},
			{ID: 2, Group: "dev", SentAt: now.Add(-72 * time.Hour)},
		},
		reports: map[int64][]store.ReportRow{
			1: {
				{UserID: 10, Delivered: true, ReadAt: &readAt},
				{UserID: 11, Delivered: true},
				{UserID: 12, Delivered: false},
			},
		},
	}
	snd := &fakeSender{}
	svc := New(Config{Enabled: true, Spec: "@daily", Window: 24 * time.Hour}, st, snd, []int64{777, 888}, logx.Nop())

	if err := svc.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(snd.sent) != 2 {
		t.Fatalf("expected a digest per admin, got %d", len(snd.sent))
	}
	body := snd.sent[777]
	if !strings.Contains(body, "#1 ops: 2/3 delivered, 1 read") {
		t.Fatalf("unexpected digest body:\n%s", body)
	}
	if strings.Contains(body, "#2") {
		t.Fatalf("message outside window included:\n%s", body)
	}
}

func TestRunSkipsEmptyWindow(t *testing.T) {
	t.Parallel()
	snd := &fakeSender{}
	svc := New(Config{Enabled: true, Spec: "@daily", Window: time.Hour}, &fakeStore{}, snd, []int64{777}, logx.Nop())

	if err := svc.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(snd.sent) != 0 {
		t.Fatal("digest sent with no recent messages")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	svc := New(Config{Enabled: true, Spec: "not a cron line"}, &fakeStore{}, &fakeSender{}, nil, logx.Nop())
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}

	svc = New(Config{Enabled: false}, &fakeStore{}, &fakeSender{}, nil, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("disabled digest should start cleanly: %v", err)
	}
	svc.Stop()
}
