package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	kit "heraldbot/internal/transport"
	logx "heraldbot/pkg/logx"
	"heraldbot/pkg/tgui"
)

const ackButtonLabel = "✅ Mark as read"

type Service struct {
	store   Store
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, st Store, sender Sender, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:   st,
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		now:     time.Now,
	}
}

// SendToGroup sends a tracked notification to the group's current members.
//
// The member set is resolved once, after the ledger entry exists: users added
// to the group later never see this message, users removed before the
// snapshot are excluded. Each recipient is an independent unit of work: a
// transport failure is recorded as delivered=false and the loop continues.
// The message id is returned even when every individual send failed; only
// store errors make this function fail.
func (s *Service) SendToGroup(ctx context.Context, group, text string) (int64, error) {
	mid, err := s.store.CreateMessage(ctx, group, text, s.now())
	if err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}

	members, err := s.store.GroupMemberIDs(ctx, group)
	if err != nil {
		return mid, fmt.Errorf("resolve group %q: %w", group, err)
	}

	body := fmt.Sprintf("Notice for %q: %s", group, text)
	markup := tgui.NewInline().
		Row(tgui.Btn(ackButtonLabel, tgui.Data("notify", "ack", AckToken(mid)))).
		Markup()
	opt := &kit.SendOptions{ReplyMarkupAdapter: markup}

	failed := 0
	for _, uid := range members {
		if err := s.limiter.Wait(ctx); err != nil {
			return mid, err
		}

		_, sendErr := s.sender.SendText(ctx, kit.ChatTarget{ChatID: uid}, body, opt)
		if sendErr != nil {
			failed++
			s.log.Warn("notification send failed",
				logx.Int64("mid", mid), logx.Int64("uid", uid), logx.Err(sendErr))
		}

		if err := s.store.RecordDelivery(ctx, mid, uid, sendErr == nil); err != nil {
			return mid, fmt.Errorf("record delivery (mid=%d uid=%d): %w", mid, uid, err)
		}
	}

	s.log.Info("group notification sent",
		logx.String("group", group), logx.Int64("mid", mid),
		logx.Int("recipients", len(members)), logx.Int("failed", failed))
	return mid, nil
}

// SendToAll is a fire-and-forget broadcast to every subscriber. No ledger
// entry, no delivery records, no ack button: callers must not expect
// delivery or read reporting for it.
func (s *Service) SendToAll(ctx context.Context, text string) error {
	ids, err := s.store.SubscriberIDs(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	failed := 0
	for _, uid := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, sendErr := s.sender.SendText(ctx, kit.ChatTarget{ChatID: uid}, text, nil); sendErr != nil {
			failed++
			s.log.Debug("broadcast send failed", logx.Int64("uid", uid), logx.Err(sendErr))
		}
	}

	s.log.Info("broadcast sent", logx.Int("recipients", len(ids)), logx.Int("failed", failed))
	return nil
}

// HandleAck processes an inbound acknowledgment signal. It reports whether
// the receipt was newly recorded; duplicates are a successful no-op so the
// user-visible answer is the same either way.
func (s *Service) HandleAck(ctx context.Context, token string, uid int64) (bool, error) {
	mid, err := ParseAckToken(token)
	if err != nil {
		return false, err
	}

	newly, err := s.store.MarkRead(ctx, mid, uid, s.now())
	if err != nil {
		return false, fmt.Errorf("record read receipt (mid=%d uid=%d): %w", mid, uid, err)
	}
	if newly {
		s.log.Debug("read receipt recorded", logx.Int64("mid", mid), logx.Int64("uid", uid))
	}
	return newly, nil
}
