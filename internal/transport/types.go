package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
	UpdateContact  UpdateKind = "contact"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
	Contact  *Contact
}

type Message struct {
	ID            int
	ChatID        int64
	FromID        int64
	FromUsername  string
	FromFirstName string
	FromLastName  string
	Text          string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Contact is a shared contact card. UserID is 0 when the contact has no
// Telegram account attached.
type Contact struct {
	ChatID    int64
	FromID    int64
	UserID    int64
	FirstName string
	LastName  string
	Phone     string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendDocument(ctx context.Context, to ChatTarget, path, filename string) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// BotName returns the bot's public username (for deep links).
	BotName() string
}
