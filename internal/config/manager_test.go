package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "admin_user_ids": [1], "poll_timeout": "15s"},
  "access": {"secret_start_token": "s3cret"},
  "storage": {"path": "./herald.db", "busy_timeout": "2s"},
  "notify": {"rate_per_sec": 10},
  "digest": {"enabled": true, "spec": "0 9 * * *", "window": "48h"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}}
}`

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", validJSON))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.AdminUserIDs[0] != 1 {
		t.Fatalf("telegram section: %+v", cfg.Telegram)
	}
	if cfg.Access.SecretStartToken != "s3cret" {
		t.Fatalf("access section: %+v", cfg.Access)
	}
	if cfg.Notify.RatePerSec != 10 {
		t.Fatalf("notify section: %+v", cfg.Notify)
	}
	d, err := ParseDurationOrDefault("digest.window", cfg.Digest.Window, 24*time.Hour)
	if err != nil || d != 48*time.Hour {
		t.Fatalf("digest.window = %v, %v", d, err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	yml := `
telegram:
  token: "123:abc"
  admin_user_ids: [1, 2]
access:
  secret_start_token: s3cret
storage:
  path: ./herald.db
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
`
	m := NewManager(writeConfig(t, "config.yaml", yml))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 {
		t.Fatalf("admin ids: %v", cfg.Telegram.AdminUserIDs)
	}
	if cfg.Storage.Path != "./herald.db" {
		t.Fatalf("storage path: %q", cfg.Storage.Path)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(string) string
		wantSub string
	}{
		{
			name:    "unknown key",
			mutate:  func(s string) string { return strings.Replace(s, `"notify"`, `"notifyy"`, 1) },
			wantSub: "unknown field",
		},
		{
			name:    "missing token",
			mutate:  func(s string) string { return strings.Replace(s, `"123:abc"`, `""`, 1) },
			wantSub: "telegram.token",
		},
		{
			name:    "missing admins",
			mutate:  func(s string) string { return strings.Replace(s, `[1]`, `[]`, 1) },
			wantSub: "admin_user_ids",
		},
		{
			name:    "missing secret",
			mutate:  func(s string) string { return strings.Replace(s, `"s3cret"`, `""`, 1) },
			wantSub: "secret_start_token",
		},
		{
			name:    "bad duration",
			mutate:  func(s string) string { return strings.Replace(s, `"15s"`, `"soon"`, 1) },
			wantSub: "poll_timeout",
		},
		{
			name:    "trailing data",
			mutate:  func(s string) string { return s + "\n{}" },
			wantSub: "trailing data",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, "config.json", tt.mutate(validJSON)))
			_, err := m.Parse()
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", validJSON))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	next, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	next.Notify.RatePerSec = 5
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-sub:
		if got.Notify.RatePerSec != 5 {
			t.Fatalf("published config: %+v", got.Notify)
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}
}
