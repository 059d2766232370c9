package notify

import (
	"context"
	"errors"
	"time"

	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
)

// ErrMalformedToken is returned by HandleAck when the acknowledgment token
// does not decode to a message id. The caller should answer the signal with
// a "not understood" response and take no further action.
var ErrMalformedToken = errors.New("malformed acknowledgment token")

// ErrUnknownMessage is returned by Report when the message id was never
// issued by the ledger.
var ErrUnknownMessage = errors.New("unknown message id")

// Store is the persistence surface the notification service needs.
// *store.Store satisfies it.
type Store interface {
	CreateMessage(ctx context.Context, group, text string, at time.Time) (int64, error)
	MessageExists(ctx context.Context, mid int64) (bool, error)
	RecordDelivery(ctx context.Context, mid, uid int64, delivered bool) error
	MarkRead(ctx context.Context, mid, uid int64, at time.Time) (bool, error)
	DeliveryReport(ctx context.Context, mid int64) ([]store.ReportRow, error)

	// Membership view, snapshotted at send time.
	GroupMemberIDs(ctx context.Context, group string) ([]int64, error)
	SubscriberIDs(ctx context.Context) ([]int64, error)
}

// Sender is the outbound slice of the transport adapter.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

type Config struct {
	// RatePerSec caps outbound sends. Telegram throttles bots around 30
	// messages per second; default is a conservative 20.
	RatePerSec int
}
