// Package digest periodically summarizes read rates of recent tracked
// notifications to the admin chats. Pure read-side consumer of the ledger
// and the report join; it never writes notification state.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
	logx "heraldbot/pkg/logx"
	"heraldbot/pkg/tgui"
)

type Config struct {
	Enabled bool
	// Spec is a cron expression (five fields or a @descriptor).
	Spec string
	// Window bounds how far back messages are summarized. Default 24h.
	Window time.Duration
}

// Store is the read-side slice of the persistence layer the digest needs.
type Store interface {
	MessagesSince(ctx context.Context, since time.Time) ([]store.Message, error)
	DeliveryReport(ctx context.Context, mid int64) ([]store.ReportRow, error)
}

type Service struct {
	cfg    Config
	store  Store
	sender Sender
	admins []int64
	log    logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

func New(cfg Config, st Store, sender Sender, admins []int64, log logx.Logger) *Service {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: st, sender: sender, admins: admins, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(s.cfg.Spec) == "" {
		return fmt.Errorf("digest enabled but spec is empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(s.cfg.Spec, func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := s.run(rctx); err != nil {
			s.log.Warn("digest run failed", logx.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("digest spec %q: %w", s.cfg.Spec, err)
	}

	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
	c.Start()
	s.log.Info("digest scheduled", logx.String("spec", s.cfg.Spec), logx.Duration("window", s.cfg.Window))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) run(ctx context.Context) error {
	since := time.Now().Add(-s.cfg.Window)
	msgs, err := s.store.MessagesSince(ctx, since)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(tgui.B("Notification digest").String())
	b.WriteString("\n")
	for _, m := range msgs {
		rows, err := s.store.DeliveryReport(ctx, m.ID)
		if err != nil {
			return err
		}
		delivered, read := 0, 0
		for _, r := range rows {
			if r.Delivered {
				delivered++
			}
			if r.ReadAt != nil {
				read++
			}
		}
		fmt.Fprintf(&b, "• #%d %s: %d/%d delivered, %d read\n",
			m.ID, tgui.Esc(m.Group), delivered, len(rows), read)
	}

	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	for _, admin := range s.admins {
		if _, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: admin}, b.String(), opt); err != nil {
			s.log.Warn("digest send failed", logx.Int64("admin", admin), logx.Err(err))
		}
	}
	return nil
}
