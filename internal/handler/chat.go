package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"twitch-economy-bot/internal/command"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/service"
)

const topListSize = 5

// ChatHandler handles the text-category commands and the chat built-ins.
type ChatHandler struct {
	coinName string
	accounts Accounts
	members  Members
	out      Responder
	now      func() time.Time
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(coinName string, accounts Accounts, members Members, out Responder) *ChatHandler {
	return &ChatHandler{
		coinName: coinName,
		accounts: accounts,
		members:  members,
		out:      out,
		now:      time.Now,
	}
}

// Register binds the chat built-ins and the generic text-category handler.
func (h *ChatHandler) Register(reg *command.Registry) error {
	builtins := []struct {
		cmd     *model.Command
		handler command.Handler
	}{
		{&model.Command{Name: "ping", Description: "Pings the bot.", Usage: "!ping"}, h.Ping},
		{&model.Command{Name: "shoutout", Description: "Shoutouts a user.", Usage: "!so <user>", Aliases: []string{"so"}}, h.Shoutout},
		{&model.Command{Name: "followage", Description: "How long a user has been around.", Usage: "!followage"}, h.Followage},
		{&model.Command{Name: "balance", Description: "Shows your coin balance.", Usage: "!balance", Aliases: []string{"coins"}}, h.Balance},
		{&model.Command{Name: "top", Description: "Shows the richest chatters.", Usage: "!top"}, h.Top},
		{&model.Command{Name: "topchatter", Description: "Shows the chattiest user.", Usage: "!topchatter"}, h.TopChatter},
	}
	for _, b := range builtins {
		if err := reg.RegisterBuiltin(b.cmd, b.handler); err != nil {
			return err
		}
	}
	reg.RegisterHandler(model.CategoryText, h.Text)
	return nil
}

// Text replies with the command payload, substituting the caller for every
// {user} placeholder. A priced command charges the caller first.
func (h *ChatHandler) Text(ctx context.Context, inv *command.Invocation) error {
	if inv.Command.Cost > 0 {
		if _, err := h.accounts.Spend(ctx, inv.User, inv.Command.Cost); err != nil {
			if errors.Is(err, service.ErrInsufficientFunds) {
				h.out.Say(fmt.Sprintf("%s does not have enough coins.", inv.User))
				return nil
			}
			return err
		}
	}
	h.out.Say(strings.ReplaceAll(inv.Command.Payload, "{user}", inv.User))
	return nil
}

// Ping confirms the bot is alive.
func (h *ChatHandler) Ping(ctx context.Context, inv *command.Invocation) error {
	h.out.Say("Pong!")
	return nil
}

// Shoutout plugs another streamer's channel.
func (h *ChatHandler) Shoutout(ctx context.Context, inv *command.Invocation) error {
	if len(inv.Args) != 1 {
		h.out.Say("Usage: !so <user>")
		return nil
	}
	target := strings.ToLower(strings.TrimPrefix(inv.Args[0], "@"))
	h.out.Say(fmt.Sprintf(
		"📢 Please give a look to our Doggo >>> %s <<<, Take a look at his twitch channel (twitch.tv/%s)",
		target, target,
	))
	return nil
}

// Followage reports how long the caller has been part of the channel, from
// the first time the bot saw them.
func (h *ChatHandler) Followage(ctx context.Context, inv *command.Invocation) error {
	if len(inv.Args) != 0 {
		h.out.Say("Usage: !followage")
		return nil
	}
	user := inv.User
	if !h.members.IsMember(user) {
		h.out.Say(fmt.Sprintf("%s is not following the channel.", user))
		return nil
	}
	record, err := h.accounts.EnsureUser(ctx, user)
	if err != nil {
		return err
	}
	h.out.Say(fmt.Sprintf("%s has been following the channel for %s", user, humanizeSince(record.CreatedAt, h.now())))
	return nil
}

// Balance reports the caller's coin balance.
func (h *ChatHandler) Balance(ctx context.Context, inv *command.Invocation) error {
	balance, err := h.accounts.Balance(ctx, inv.User)
	if err != nil {
		return err
	}
	h.out.Say(fmt.Sprintf("%s has %d %s.", inv.User, balance, h.coinName))
	return nil
}

// Top lists the richest chatters.
func (h *ChatHandler) Top(ctx context.Context, inv *command.Invocation) error {
	users, err := h.accounts.Top(ctx, topListSize)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		h.out.Say("Nobody has any coins yet.")
		return nil
	}
	entries := make([]string, 0, len(users))
	for i, u := range users {
		entries = append(entries, fmt.Sprintf("%d. %s (%d)", i+1, u.Username, u.Balance))
	}
	h.out.Say(fmt.Sprintf("Top %s holders: %s", h.coinName, strings.Join(entries, ", ")))
	return nil
}

// TopChatter names the user with the most messages.
func (h *ChatHandler) TopChatter(ctx context.Context, inv *command.Invocation) error {
	name, err := h.accounts.TopChatter(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		h.out.Say("Nobody has said anything yet.")
		return nil
	}
	h.out.Say(fmt.Sprintf("The chattiest user is %s.", name))
	return nil
}

// humanizeSince renders an age as days or hours, matching chat register.
func humanizeSince(since, now time.Time) string {
	d := now.Sub(since)
	if days := int(d.Hours()) / 24; days >= 1 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
