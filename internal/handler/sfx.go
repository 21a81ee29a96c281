package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/command"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/service"
	"twitch-economy-bot/internal/sfx"
	"twitch-economy-bot/internal/telemetry"
)

// SfxSource resolves sound-effect events and their stored assets.
type SfxSource interface {
	GetEventByName(ctx context.Context, name string) (*model.SfxEvent, error)
	GetAsset(ctx context.Context, contentHash string) (*model.SfxAsset, error)
}

// SoundBoard starts asynchronous playback on a free channel.
type SoundBoard interface {
	Play(ctx context.Context, event *model.SfxEvent, filePath string) (*sfx.Playback, error)
}

// SfxHandler handles the sfx-category commands.
type SfxHandler struct {
	accounts Accounts
	members  Members
	out      Responder
	source   SfxSource
	board    SoundBoard
	now      func() time.Time
}

// NewSfxHandler creates an SfxHandler.
func NewSfxHandler(accounts Accounts, members Members, out Responder, source SfxSource, board SoundBoard) *SfxHandler {
	return &SfxHandler{
		accounts: accounts,
		members:  members,
		out:      out,
		source:   source,
		board:    board,
		now:      time.Now,
	}
}

// Register binds the generic sfx-category handler. Sfx commands are always
// dynamic rows, the payload names the sound event, falling back to the
// command name itself.
func (h *SfxHandler) Register(reg *command.Registry) {
	reg.RegisterHandler(model.CategorySfx, h.Trigger)
}

// Trigger charges the event cost and queues the sound on a free channel.
func (h *SfxHandler) Trigger(ctx context.Context, inv *command.Invocation) error {
	user := inv.User

	if !h.members.IsMember(user) {
		h.out.Say(fmt.Sprintf("%s is not following the channel.", user))
		return nil
	}

	record, err := h.accounts.EnsureUser(ctx, user)
	if err != nil {
		return err
	}
	now := h.now()
	if record.BanUntil > now.Unix() {
		return nil
	}
	if left := lockRemaining(record, model.FeatureSfx, now); left > 0 {
		h.out.Say(fmt.Sprintf("%s must wait %ds before playing another sound.", user, left))
		return nil
	}

	name := inv.Command.Payload
	if name == "" {
		name = inv.Command.Name
	}
	event, err := h.source.GetEventByName(ctx, name)
	if err != nil {
		return err
	}

	if event.Cost > 0 {
		if _, err := h.accounts.Spend(ctx, user, event.Cost); err != nil {
			if errors.Is(err, service.ErrInsufficientFunds) {
				h.out.Say(fmt.Sprintf("%s does not have enough coins.", user))
				return nil
			}
			return err
		}
	}

	asset, err := h.source.GetAsset(ctx, event.AssetHash)
	if err != nil {
		return err
	}

	playback, err := h.board.Play(ctx, event, asset.FilePath)
	if err != nil {
		return err
	}
	log.Debug().Str("request", playback.ID.String()).Str("event", event.Name).Int("channel", playback.Channel).Msg("sfx queued")
	if telemetry.SfxPlaybacks != nil {
		telemetry.SfxPlaybacks.Inc()
	}

	if event.CooldownSeconds > 0 {
		if err := h.accounts.StartCooldown(ctx, user, model.FeatureSfx, event.CooldownSeconds); err != nil {
			log.Warn().Err(err).Str("user", user).Msg("sfx cooldown not armed")
		}
	}
	return nil
}
