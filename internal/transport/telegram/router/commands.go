package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"heraldbot/internal/notify"
	"heraldbot/internal/report"
	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
	"heraldbot/pkg/tgui"
)

func (r *Router) runCommand(ctx context.Context, req *Request) error {
	switch req.Command {
	case "start":
		return r.cmdStart(ctx, req)
	case "subscribe":
		return r.cmdSubscribe(ctx, req)
	case "menu":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.sendMenu(ctx, req)
	case "add_group":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdAddGroup(ctx, req)
	case "delete_group":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdDeleteGroup(ctx, req)
	case "groups":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.sendGroupOverview(ctx, req)
	case "subscribers":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.sendSubscriberList(ctx, req)
	case "assign":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdAssign(ctx, req, true)
	case "unassign":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdAssign(ctx, req, false)
	case "remove_subscriber":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdRemoveSubscriber(ctx, req)
	case "notify_group":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		if len(req.Args) < 2 {
			return r.reply(ctx, req, "Usage: /notify_group <group> <text>")
		}
		return r.notifyGroup(ctx, req, req.Args[0], strings.Join(req.Args[1:], " "))
	case "notify_all":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		if len(req.Args) < 1 {
			return r.reply(ctx, req, "Usage: /notify_all <text>")
		}
		return r.notifyAll(ctx, req, strings.Join(req.Args, " "))
	case "export_report":
		if !r.requireAdmin(ctx, req) {
			return nil
		}
		return r.cmdExportReport(ctx, req)
	default:
		return nil
	}
}

func (r *Router) requireAdmin(ctx context.Context, req *Request) bool {
	if r.isAdmin(req.FromID) {
		return true
	}
	_ = r.reply(ctx, req, "Not authorized.")
	return false
}

func (r *Router) cmdStart(ctx context.Context, req *Request) error {
	secret := r.secretToken()
	if len(req.Args) == 1 && req.Args[0] == secret {
		if err := r.store.AllowUser(ctx, req.FromID); err != nil {
			return err
		}
		return r.reply(ctx, req, "Access granted. Now run /subscribe.")
	}
	return r.reply(ctx, req, "Subscribing works only through the invite link:\n"+r.inviteLink())
}

func (r *Router) inviteLink() string {
	return fmt.Sprintf("https://t.me/%s?start=%s", r.adapter.BotName(), r.secretToken())
}

func (r *Router) cmdSubscribe(ctx context.Context, req *Request) error {
	allowed, err := r.store.IsAllowed(ctx, req.FromID)
	if err != nil {
		return err
	}
	if !allowed {
		return r.reply(ctx, req, "Subscribing works only through the invite link:\n"+r.inviteLink())
	}
	m := req.Update.Message
	sub := store.Subscriber{UserID: req.FromID, FirstName: m.FromFirstName, LastName: m.FromLastName}
	if err := r.store.AddSubscriber(ctx, sub); err != nil {
		return err
	}
	return r.reply(ctx, req, strings.TrimSpace(fmt.Sprintf("You are subscribed, %s %s!", sub.FirstName, sub.LastName)))
}

func (r *Router) cmdAddGroup(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return r.reply(ctx, req, "Usage: /add_group <group>")
	}
	return r.createGroup(ctx, req, req.Args[0])
}

func (r *Router) cmdDeleteGroup(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return r.reply(ctx, req, "Usage: /delete_group <group>")
	}
	return r.deleteGroup(ctx, req, req.Args[0])
}

func (r *Router) createGroup(ctx context.Context, req *Request, name string) error {
	if err := r.store.CreateGroup(ctx, name); err != nil {
		if errors.Is(err, store.ErrEmptyGroupName) {
			return r.reply(ctx, req, "Group name cannot be empty.")
		}
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf("Group %q created.", name))
}

func (r *Router) deleteGroup(ctx context.Context, req *Request, name string) error {
	if err := r.store.DeleteGroup(ctx, name); err != nil {
		if errors.Is(err, store.ErrEmptyGroupName) {
			return r.reply(ctx, req, "Group name cannot be empty.")
		}
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf("Group %q deleted.", name))
}

func (r *Router) cmdAssign(ctx context.Context, req *Request, add bool) error {
	usage := "Usage: /assign <user_id> <group>"
	if !add {
		usage = "Usage: /unassign <user_id> <group>"
	}
	if len(req.Args) != 2 {
		return r.reply(ctx, req, usage)
	}
	uid, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return r.reply(ctx, req, usage)
	}
	return r.assign(ctx, req, uid, req.Args[1], add)
}

func (r *Router) assign(ctx context.Context, req *Request, uid int64, group string, add bool) error {
	var err error
	if add {
		err = r.store.AssignToGroup(ctx, uid, group)
	} else {
		err = r.store.RemoveFromGroup(ctx, uid, group)
	}
	if err != nil {
		if errors.Is(err, store.ErrEmptyGroupName) {
			return r.reply(ctx, req, "Group name cannot be empty.")
		}
		return err
	}
	return r.reply(ctx, req, "Done.")
}

func (r *Router) cmdRemoveSubscriber(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return r.reply(ctx, req, "Usage: /remove_subscriber <user_id>")
	}
	uid, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return r.reply(ctx, req, "Usage: /remove_subscriber <user_id>")
	}
	if err := r.store.RemoveSubscriber(ctx, uid); err != nil {
		return err
	}
	return r.reply(ctx, req, "Subscriber removed.")
}

func (r *Router) notifyGroup(ctx context.Context, req *Request, group, text string) error {
	mid, err := r.notify.SendToGroup(ctx, group, text)
	if err != nil {
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf("Sent. Message id %d (use /export_report %d).", mid, mid))
}

func (r *Router) notifyAll(ctx context.Context, req *Request, text string) error {
	if err := r.notify.SendToAll(ctx, text); err != nil {
		return err
	}
	return r.reply(ctx, req, "Sent to all subscribers (untracked).")
}

func (r *Router) cmdExportReport(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return r.reply(ctx, req, "Usage: /export_report <message_id>")
	}
	mid, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return r.reply(ctx, req, "Usage: /export_report <message_id>")
	}

	rows, err := r.notify.Report(ctx, mid)
	if err != nil {
		if errors.Is(err, notify.ErrUnknownMessage) {
			return r.reply(ctx, req, fmt.Sprintf("No message with id %d.", mid))
		}
		return err
	}

	path, err := report.ExportFile(r.reportDir, mid, rows)
	if err != nil {
		return err
	}
	return r.adapter.SendDocument(ctx, req.Chat, path, fmt.Sprintf("report_%d.csv", mid))
}

func (r *Router) handleAckCallback(ctx context.Context, req *Request, token string) error {
	_, err := r.notify.HandleAck(ctx, token, req.FromID)
	if err != nil {
		if errors.Is(err, notify.ErrMalformedToken) {
			return r.adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Not understood.")
		}
		return err
	}
	// Same answer for first-time and duplicate taps: acknowledging is
	// idempotent from the user's point of view.
	return r.adapter.AnswerCallback(ctx, req.Update.Callback.ID, "Marked as read.")
}

func (r *Router) handleContact(ctx context.Context, req *Request) error {
	if !r.isAdmin(req.FromID) {
		return nil
	}
	ct := req.Update.Contact
	if ct.UserID == 0 {
		_, err := r.adapter.SendText(ctx, req.Chat, "Contact has no Telegram ID.",
			&kit.SendOptions{ReplyMarkupAdapter: tgui.RemoveKeyboard()})
		return err
	}
	if err := r.store.AllowUser(ctx, ct.UserID); err != nil {
		return err
	}
	sub := store.Subscriber{UserID: ct.UserID, FirstName: ct.FirstName, LastName: ct.LastName}
	if err := r.store.AddSubscriber(ctx, sub); err != nil {
		return err
	}
	_, err := r.adapter.SendText(ctx, req.Chat,
		strings.TrimSpace(fmt.Sprintf("Imported: %s %s", ct.FirstName, ct.LastName)),
		&kit.SendOptions{ReplyMarkupAdapter: tgui.RemoveKeyboard()})
	return err
}
