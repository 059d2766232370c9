package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	kit "heraldbot/internal/transport"
	"heraldbot/pkg/logx"
	"heraldbot/pkg/tgui"
)

func menuData(action string) string { return tgui.Data("menu", action, "") }

func adminMenu() any {
	return tgui.NewInline().
		Row(
			tgui.Btn("Subscribers", menuData("list_subs")),
			tgui.Btn("Groups", menuData("list_groups")),
		).
		Row(
			tgui.Btn("Assign", menuData("assign")),
			tgui.Btn("Unassign", menuData("unassign")),
		).
		Row(
			tgui.Btn("New group", menuData("create_group")),
			tgui.Btn("Delete group", menuData("delete_group")),
		).
		Row(
			tgui.Btn("Notify group", menuData("notify_group")),
			tgui.Btn("Notify all", menuData("notify_all")),
		).
		Row(
			tgui.Btn("Import contact", menuData("import_contact")),
		).
		Markup()
}

func (r *Router) sendMenu(ctx context.Context, req *Request) error {
	return r.replyHTML(ctx, req, tgui.B("Admin menu").String(), adminMenu())
}

func (r *Router) sendSubscriberList(ctx context.Context, req *Request) error {
	subs, err := r.store.Subscribers(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return r.reply(ctx, req, "No subscribers yet.")
	}
	var b strings.Builder
	b.WriteString(tgui.B("Subscribers").String())
	for _, s := range subs {
		name := strings.TrimSpace(s.FirstName + " " + s.LastName)
		fmt.Fprintf(&b, "\n%s %s", tgui.Code(strconv.FormatInt(s.UserID, 10)), tgui.Esc(name))
	}
	return r.replyHTML(ctx, req, b.String(), nil)
}

func (r *Router) sendGroupOverview(ctx context.Context, req *Request) error {
	groups, err := r.store.Groups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return r.reply(ctx, req, "No groups yet.")
	}
	var b strings.Builder
	b.WriteString(tgui.B("Groups").String())
	for _, g := range groups {
		ids, err := r.store.GroupMemberIDs(ctx, g)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\n%s (%d members)", tgui.Esc(g), len(ids))
	}
	return r.replyHTML(ctx, req, b.String(), nil)
}

func (r *Router) handleMenuCallback(ctx context.Context, req *Request, action string) error {
	cbID := req.Update.Callback.ID
	if !r.isAdmin(req.FromID) {
		return r.adapter.AnswerCallback(ctx, cbID, "Not authorized.")
	}

	prompt := func(kind pendingKind, text string) error {
		r.pending.Set(req.FromID, kind)
		if err := r.adapter.AnswerCallback(ctx, cbID, ""); err != nil {
			req.Logger.Debug("callback answer failed", logx.Err(err))
		}
		return r.reply(ctx, req, text)
	}

	switch action {
	case "list_subs":
		if err := r.adapter.AnswerCallback(ctx, cbID, ""); err != nil {
			req.Logger.Debug("callback answer failed", logx.Err(err))
		}
		return r.sendSubscriberList(ctx, req)
	case "list_groups":
		if err := r.adapter.AnswerCallback(ctx, cbID, ""); err != nil {
			req.Logger.Debug("callback answer failed", logx.Err(err))
		}
		return r.sendGroupOverview(ctx, req)
	case "assign":
		return prompt(pendingAssign, "Send: <user_id> <group>")
	case "unassign":
		return prompt(pendingUnassign, "Send: <user_id> <group>")
	case "create_group":
		return prompt(pendingCreateGroup, "Send the new group name.")
	case "delete_group":
		return prompt(pendingDeleteGroup, "Send the group name to delete.")
	case "notify_all":
		return prompt(pendingNotifyAll, "Send the notification text for all subscribers.")
	case "notify_group":
		return prompt(pendingNotifyGroup, "Send: <group> <text>")
	case "import_contact":
		if err := r.adapter.AnswerCallback(ctx, cbID, ""); err != nil {
			req.Logger.Debug("callback answer failed", logx.Err(err))
		}
		_, err := r.adapter.SendText(ctx, req.Chat, "Share the contact to import.",
			&kit.SendOptions{ReplyMarkupAdapter: tgui.ContactKeyboard("Share contact")})
		return err
	default:
		return r.adapter.AnswerCallback(ctx, cbID, "Unknown action.")
	}
}

// runPending consumes the free-text answer to a menu prompt. The pending
// entry was already removed by Take, so a malformed answer requires going
// through the menu again.
func (r *Router) runPending(ctx context.Context, req *Request, kind pendingKind, text string) error {
	if !r.isAdmin(req.FromID) {
		return nil
	}
	switch kind {
	case pendingAssign, pendingUnassign:
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return r.reply(ctx, req, "Expected: <user_id> <group>")
		}
		uid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return r.reply(ctx, req, "Expected: <user_id> <group>")
		}
		return r.assign(ctx, req, uid, fields[1], kind == pendingAssign)
	case pendingCreateGroup:
		return r.createGroup(ctx, req, strings.TrimSpace(text))
	case pendingDeleteGroup:
		return r.deleteGroup(ctx, req, strings.TrimSpace(text))
	case pendingNotifyAll:
		return r.notifyAll(ctx, req, text)
	case pendingNotifyGroup:
		group, body, ok := strings.Cut(text, " ")
		if !ok || strings.TrimSpace(body) == "" {
			return r.reply(ctx, req, "Expected: <group> <text>")
		}
		return r.notifyGroup(ctx, req, group, strings.TrimSpace(body))
	}
	return nil
}
