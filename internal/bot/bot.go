// Package bot runs the Twitch IRC connection and feeds chat into the
// command registry.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/config"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/telemetry"
)

const (
	dispatchTimeout = 10 * time.Second
	syncInterval    = 5 * time.Minute
)

// Accounts is the slice of the account service the bot uses directly.
type Accounts interface {
	EnsureUser(ctx context.Context, username string) (*model.User, error)
	RecordMessage(ctx context.Context, username string) error
	SyncMembers(ctx context.Context, members []string) error
}

// Dispatcher resolves a chat line to a command handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, user, message string) error
}

// Bot is the IRC transport. It tracks channel membership from join and
// part events and relays every chat line to the dispatcher.
type Bot struct {
	client     *twitch.Client
	channel    string
	botUser    string
	accounts   Accounts
	dispatcher Dispatcher

	mu      sync.RWMutex
	members map[string]struct{}
}

// New creates a connected-but-not-running Bot.
func New(cfg *config.Config, accounts Accounts, dispatcher Dispatcher) *Bot {
	client := twitch.NewClient(cfg.Twitch.BotUsername, cfg.Twitch.OAuthToken)
	client.Capabilities = []string{
		twitch.TagsCapability,
		twitch.CommandsCapability,
		twitch.MembershipCapability,
	}

	b := &Bot{
		client:     client,
		channel:    strings.ToLower(cfg.Channel.Name),
		botUser:    strings.ToLower(cfg.Twitch.BotUsername),
		accounts:   accounts,
		dispatcher: dispatcher,
		members:    make(map[string]struct{}),
	}

	client.OnConnect(func() {
		telemetry.SetConnected(true)
		log.Info().Str("channel", b.channel).Msg("connected to chat")
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		go b.handleMessage(msg)
	})
	client.OnUserJoinMessage(func(msg twitch.UserJoinMessage) {
		b.addMember(msg.User)
	})
	client.OnUserPartMessage(func(msg twitch.UserPartMessage) {
		b.removeMember(msg.User)
	})

	return b
}

// Run joins the channel and blocks until the context is cancelled or the
// connection fails.
func (b *Bot) Run(ctx context.Context) error {
	b.client.Join(b.channel)

	go b.syncLoop(ctx)
	go func() {
		<-ctx.Done()
		b.client.Disconnect()
	}()

	err := b.client.Connect()
	telemetry.SetConnected(false)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Say sends a message to the channel.
func (b *Bot) Say(text string) {
	b.client.Say(b.channel, text)
}

// IsMember reports whether the user is currently in the channel.
func (b *Bot) IsMember(username string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.members[strings.ToLower(username)]
	return ok
}

// Members returns a snapshot of the current channel members.
func (b *Bot) Members() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	members := make([]string, 0, len(b.members))
	for m := range b.members {
		members = append(members, m)
	}
	return members
}

func (b *Bot) addMember(username string) {
	username = strings.ToLower(username)
	if username == b.botUser {
		return
	}
	b.mu.Lock()
	b.members[username] = struct{}{}
	b.mu.Unlock()
}

func (b *Bot) removeMember(username string) {
	b.mu.Lock()
	delete(b.members, strings.ToLower(username))
	b.mu.Unlock()
}

// handleMessage records the chatter and relays the line to the dispatcher.
// Chatting counts as presence, join events can lag behind.
func (b *Bot) handleMessage(msg twitch.PrivateMessage) {
	if telemetry.MessagesSeen != nil {
		telemetry.MessagesSeen.Inc()
	}

	username := strings.ToLower(msg.User.Name)
	if username == "" || username == b.botUser {
		return
	}
	b.addMember(username)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if _, err := b.accounts.EnsureUser(ctx, username); err != nil {
		log.Error().Err(err).Str("user", username).Msg("user not ensured")
		return
	}
	if err := b.accounts.RecordMessage(ctx, username); err != nil {
		log.Warn().Err(err).Str("user", username).Msg("message not counted")
	}

	if err := b.dispatcher.Dispatch(ctx, username, msg.Message); err != nil {
		log.Warn().Err(err).Str("user", username).Msg("command failed")
	}
}

// syncLoop pushes the membership snapshot to the account service so the
// follower flags track who is actually in the channel.
func (b *Bot) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
			if err := b.accounts.SyncMembers(syncCtx, b.Members()); err != nil {
				log.Warn().Err(err).Msg("membership sync failed")
			}
			cancel()
		}
	}
}
