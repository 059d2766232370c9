package router

import (
	"context"
	"strings"
	"time"

	"heraldbot/internal/config"
	"heraldbot/internal/notify"
	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
	logx "heraldbot/pkg/logx"
	"heraldbot/pkg/tgui"
)

// Router turns boundary updates into directory operations, notifications and
// reports. Inbound callbacks are decoded into tagged events before any
// dispatch; free-text follow-ups to menu prompts go through the per-user
// pending-action table.
type Router struct {
	adapter kit.Adapter
	store   *store.Store
	notify  *notify.Service
	cfgm    *config.Manager
	log     logx.Logger

	reportDir string
	pending   *pendingTable

	handle HandlerFunc
}

// Request carries one decoded update through the middleware chain.
type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	Payload string
	Logger  logx.Logger
}

func New(adapter kit.Adapter, st *store.Store, svc *notify.Service, cfgm *config.Manager, reportDir string, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(reportDir) == "" {
		reportDir = "./reports"
	}
	r := &Router{
		adapter:   adapter,
		store:     st,
		notify:    svc,
		cfgm:      cfgm,
		log:       log,
		reportDir: reportDir,
		pending:   newPendingTable(5 * time.Minute),
	}
	r.handle = Chain(r.dispatch,
		MWPanicRecover(log),
		MWRequestLog(log),
		MWTimeout(30*time.Second),
	)
	return r
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.HandleUpdate(ctx, up)
		}
	}
}

func (r *Router) HandleUpdate(ctx context.Context, up kit.Update) {
	req := &Request{Update: up, Logger: r.log}
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: up.Message.ChatID}
		req.FromID = up.Message.FromID
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: up.Callback.ChatID}
		req.FromID = up.Callback.FromID
	case kit.UpdateContact:
		if up.Contact == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: up.Contact.ChatID}
		req.FromID = up.Contact.FromID
	default:
		return
	}
	req.Logger = r.log.With(logx.Int64("from_id", req.FromID))

	if err := r.handle(ctx, req); err != nil {
		req.Logger.Warn("update handling failed", logx.String("cmd", req.Command), logx.Err(err))
	}
}

func (r *Router) dispatch(ctx context.Context, req *Request) error {
	switch req.Update.Kind {
	case kit.UpdateMessage:
		return r.dispatchMessage(ctx, req)
	case kit.UpdateCallback:
		return r.dispatchCallback(ctx, req)
	case kit.UpdateContact:
		return r.handleContact(ctx, req)
	}
	return nil
}

func (r *Router) dispatchMessage(ctx context.Context, req *Request) error {
	text := strings.TrimSpace(req.Update.Message.Text)
	if strings.HasPrefix(text, "/") {
		r.pending.Clear(req.FromID)
		cmd, args := splitCommand(text, r.adapter.BotName())
		req.Command = cmd
		req.Args = args
		return r.runCommand(ctx, req)
	}

	// Free text: either an answer to a menu prompt, or noise.
	if kind, ok := r.pending.Take(req.FromID); ok {
		req.Command = "pending:" + kind.String()
		return r.runPending(ctx, req, kind, text)
	}
	return nil
}

// callbackEvent is the tagged form of inbound callback data. Decoding
// happens once, at the boundary; everything downstream switches on Kind.
type callbackEvent struct {
	Kind    callbackKind
	Token   string // Kind == callbackAck
	Action  string // Kind == callbackMenu
	Payload string
}

type callbackKind int

const (
	callbackUnknown callbackKind = iota
	callbackAck
	callbackMenu
)

func decodeCallback(data string) callbackEvent {
	scope, action, payload := tgui.SplitData(data)
	switch scope {
	case "notify":
		if action == "ack" {
			return callbackEvent{Kind: callbackAck, Token: payload}
		}
	case "menu":
		return callbackEvent{Kind: callbackMenu, Action: action, Payload: payload}
	}
	return callbackEvent{Kind: callbackUnknown}
}

func (r *Router) dispatchCallback(ctx context.Context, req *Request) error {
	ev := decodeCallback(req.Update.Callback.Data)
	switch ev.Kind {
	case callbackAck:
		req.Command = "callback:ack"
		req.Payload = ev.Token
		return r.handleAckCallback(ctx, req, ev.Token)
	case callbackMenu:
		req.Command = "callback:menu:" + ev.Action
		req.Payload = ev.Payload
		return r.handleMenuCallback(ctx, req, ev.Action)
	default:
		return r.adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Unknown action.")
	}
}

// splitCommand parses "/cmd@bot arg1 arg2..." into (cmd, args).
func splitCommand(text, botName string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		mention := cmd[at+1:]
		if botName == "" || strings.EqualFold(mention, botName) {
			cmd = cmd[:at]
		}
	}
	return strings.ToLower(cmd), fields[1:]
}

func (r *Router) isAdmin(uid int64) bool {
	cfg := r.cfgm.Get()
	if cfg == nil {
		return false
	}
	for _, id := range cfg.Telegram.AdminUserIDs {
		if id == uid {
			return true
		}
	}
	return false
}

func (r *Router) secretToken() string {
	cfg := r.cfgm.Get()
	if cfg == nil {
		return ""
	}
	return cfg.Access.SecretStartToken
}

func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	_, err := r.adapter.SendText(ctx, req.Chat, text, nil)
	return err
}

func (r *Router) replyHTML(ctx context.Context, req *Request, html string, markup any) error {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyMarkupAdapter: markup}
	_, err := r.adapter.SendText(ctx, req.Chat, html, opt)
	return err
}
