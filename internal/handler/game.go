package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/command"
	"twitch-economy-bot/internal/config"
	"twitch-economy-bot/internal/game/roll"
	"twitch-economy-bot/internal/game/rpg"
	"twitch-economy-bot/internal/game/slots"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/repository"
	"twitch-economy-bot/internal/service"
	"twitch-economy-bot/internal/telemetry"
)

// GamblingConfig reads the live game configuration rows.
type GamblingConfig interface {
	GetSlots(ctx context.Context) (*model.SlotsConfig, error)
	GetRoll(ctx context.Context) (*model.RollConfig, error)
}

// RpgSource resolves adventure profiles and draws their events.
type RpgSource interface {
	GetProfileByName(ctx context.Context, name string) (*model.RpgProfile, error)
	DrawEvent(ctx context.Context, rpgID int64, eventType string) (*model.RpgEvent, error)
}

// GameHandler handles the gambling and adventure commands.
type GameHandler struct {
	cfg      config.GamesConfig
	coinName string
	accounts Accounts
	members  Members
	out      Responder
	gambling GamblingConfig
	rpgStore RpgSource
	slots    *slots.Machine
	roll     *roll.Game
	rpg      *rpg.Engine
	now      func() time.Time
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(
	cfg config.GamesConfig,
	coinName string,
	accounts Accounts,
	members Members,
	out Responder,
	gambling GamblingConfig,
	rpgStore RpgSource,
	slotsGame *slots.Machine,
	rollGame *roll.Game,
	rpgEngine *rpg.Engine,
) *GameHandler {
	return &GameHandler{
		cfg:      cfg,
		coinName: coinName,
		accounts: accounts,
		members:  members,
		out:      out,
		gambling: gambling,
		rpgStore: rpgStore,
		slots:    slotsGame,
		roll:     rollGame,
		rpg:      rpgEngine,
		now:      time.Now,
	}
}

// Register binds the game built-ins and the generic game-category handler.
// Dynamic game commands carry the game name in their payload so admins can
// publish extra entry points for the same games.
func (h *GameHandler) Register(reg *command.Registry) error {
	if err := reg.RegisterBuiltin(&model.Command{
		Name:        "gamble",
		Description: "Roll 0-100 against your bet.",
		Usage:       "!gamble <amount>",
	}, h.Gamble); err != nil {
		return err
	}
	if err := reg.RegisterBuiltin(&model.Command{
		Name:        "slots",
		Description: "Spin the slot machine.",
		Usage:       "!slots",
	}, h.Slots); err != nil {
		return err
	}
	if err := reg.RegisterBuiltin(&model.Command{
		Name:        "rpg",
		Description: "Go on an adventure.",
		Usage:       "!rpg [profile]",
		Aliases:     []string{"adventure"},
	}, h.Rpg); err != nil {
		return err
	}
	reg.RegisterHandler(model.CategoryGame, h.dispatchGame)
	return nil
}

func (h *GameHandler) dispatchGame(ctx context.Context, inv *command.Invocation) error {
	switch inv.Command.Payload {
	case "gamble", "roll":
		return h.Gamble(ctx, inv)
	case "slots":
		return h.Slots(ctx, inv)
	case "rpg":
		return h.Rpg(ctx, inv)
	}
	return fmt.Errorf("unknown game payload %q", inv.Command.Payload)
}

// eligible runs the ban and cooldown gate shared by all games. It replies
// on cooldown, stays silent for banned users, and reports whether the
// handler may continue.
func (h *GameHandler) eligible(ctx context.Context, username, feature string) (bool, error) {
	user, err := h.accounts.EnsureUser(ctx, username)
	if err != nil {
		return false, err
	}
	now := h.now()
	if user.BanUntil > now.Unix() {
		return false, nil
	}
	if left := lockRemaining(user, feature, now); left > 0 {
		h.out.Say(fmt.Sprintf("%s must wait %ds before playing again.", username, left))
		return false, nil
	}
	return true, nil
}

// Gamble is the dice roll game. Value 0 is a critical failure, 100 a
// critical success, 1-49 loses the bet, 50 is a push, 51-99 doubles it.
func (h *GameHandler) Gamble(ctx context.Context, inv *command.Invocation) error {
	user := inv.User

	if len(inv.Args) != 1 || !isDigits(inv.Args[0]) {
		h.out.Say("Usage: !gamble <amount>")
		return nil
	}
	amount := parseDigits(inv.Args[0])
	if amount < 1 {
		h.out.Say("Usage: !gamble <amount>")
		return nil
	}

	if !h.members.IsMember(user) {
		h.out.Say(fmt.Sprintf("%s is not following the channel.", user))
		return nil
	}
	ok, err := h.eligible(ctx, user, model.FeatureGamble)
	if err != nil || !ok {
		return err
	}

	cfg, err := h.gambling.GetRoll(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	balance, err := h.accounts.Balance(ctx, user)
	if err != nil {
		return err
	}
	if balance < amount {
		h.out.Say(fmt.Sprintf("%s does not have enough coins.", user))
		return nil
	}
	if amount > cfg.MaxBet {
		h.out.Say(fmt.Sprintf("%s cannot bet more than %d coins.", user, cfg.MaxBet))
		return nil
	}
	if amount < cfg.MinBet {
		h.out.Say(fmt.Sprintf("%s cannot bet less than %d coins.", user, cfg.MinBet))
		return nil
	}

	result, err := h.roll.Play(cfg, amount)
	if err != nil {
		return err
	}
	if result.Delta != 0 {
		if _, err := h.accounts.Adjust(ctx, user, result.Delta); err != nil {
			return err
		}
	}

	switch result.Kind {
	case roll.CriticalFailure:
		h.out.Say(fmt.Sprintf("%s rolled an awful %d and lost %d %s!", user, result.Value, -result.Delta, h.coinName))
		telemetry.RecordRound("roll", "critical_failure")
	case roll.CriticalSuccess:
		h.out.Say(fmt.Sprintf("%s rolled a perfect %d and won %d %s!", user, result.Value, result.Delta, h.coinName))
		telemetry.RecordRound("roll", "critical_success")
	case roll.Loss:
		h.out.Say(fmt.Sprintf("%s rolled a %d and lost %d %s.", user, result.Value, -result.Delta, h.coinName))
		telemetry.RecordRound("roll", "loss")
	case roll.Push:
		h.out.Say(fmt.Sprintf("%s rolled a %d and nothing happened.", user, result.Value))
		telemetry.RecordRound("roll", "push")
	case roll.Win:
		h.out.Say(fmt.Sprintf("%s rolled a %d and won %d %s!", user, result.Value, result.Delta, h.coinName))
		telemetry.RecordRound("roll", "win")
	}

	h.startCooldown(ctx, user, model.FeatureGamble, h.cfg.GambleCooldownSeconds)
	return nil
}

// Slots spins the slot machine for the fixed configured cost.
func (h *GameHandler) Slots(ctx context.Context, inv *command.Invocation) error {
	user := inv.User

	if !h.members.IsMember(user) {
		h.out.Say(fmt.Sprintf("%s is not following the channel.", user))
		return nil
	}
	ok, err := h.eligible(ctx, user, model.FeatureSlots)
	if err != nil || !ok {
		return err
	}

	cfg, err := h.gambling.GetSlots(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	balance, err := h.accounts.Balance(ctx, user)
	if err != nil {
		return err
	}
	if balance < cfg.Cost {
		h.out.Say(fmt.Sprintf("%s does not have enough coins.", user))
		return nil
	}

	result, err := h.slots.Spin(cfg)
	if err != nil {
		return err
	}
	reels := strings.Join(result.Reels[:], " ")

	if result.Win {
		if _, err := h.accounts.Adjust(ctx, user, result.Reward); err != nil {
			return err
		}
		h.out.Say(fmt.Sprintf("%s | %s won %d %s!", reels, user, result.Reward, h.coinName))
		if result.Reels[0] == slots.SymbolHeart {
			telemetry.RecordRound("slots", "jackpot")
		} else {
			telemetry.RecordRound("slots", "win")
		}
	} else {
		if _, err := h.accounts.Adjust(ctx, user, -cfg.Cost); err != nil {
			return err
		}
		h.out.Say(fmt.Sprintf("%s | %s lost %d %s!", reels, user, cfg.Cost, h.coinName))
		telemetry.RecordRound("slots", "loss")
	}

	h.startCooldown(ctx, user, model.FeatureSlots, h.cfg.SlotsCooldownSeconds)
	return nil
}

// Rpg charges the adventure cost, draws one event from the profile and pays
// out its outcome. The profile's own timer sets the per-user cooldown.
func (h *GameHandler) Rpg(ctx context.Context, inv *command.Invocation) error {
	user := inv.User

	name := "default"
	if len(inv.Args) > 0 {
		name = inv.Args[0]
	}

	if !h.members.IsMember(user) {
		h.out.Say(fmt.Sprintf("%s is not following the channel.", user))
		return nil
	}
	ok, err := h.eligible(ctx, user, model.FeatureRpg)
	if err != nil || !ok {
		return err
	}

	profile, err := h.rpgStore.GetProfileByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			h.out.Say(fmt.Sprintf("There is no adventure called %s.", name))
			return nil
		}
		return err
	}

	if _, err := h.accounts.Spend(ctx, user, profile.Cost); err != nil {
		if errors.Is(err, service.ErrInsufficientFunds) {
			h.out.Say(fmt.Sprintf("%s does not have enough coins.", user))
			return nil
		}
		return err
	}

	eventType := h.rpg.PickType(profile)
	event, err := h.rpgStore.DrawEvent(ctx, profile.ID, eventType)
	if err != nil {
		if errors.Is(err, repository.ErrNoEvents) {
			// refund, the adventure has no content for this draw
			if _, err := h.accounts.Adjust(ctx, user, profile.Cost); err != nil {
				return err
			}
			h.out.Say(fmt.Sprintf("The %s adventure has nothing left to tell.", name))
			return nil
		}
		return err
	}

	payout := rpg.Payout(profile, event)
	if payout != 0 {
		if _, err := h.accounts.Adjust(ctx, user, payout); err != nil {
			return err
		}
	}

	story := rpg.Narrate(event, user)
	switch {
	case payout > 0:
		h.out.Say(fmt.Sprintf("%s %s won %d %s!", story, user, payout, h.coinName))
	case payout < 0:
		h.out.Say(fmt.Sprintf("%s %s lost %d %s!", story, user, -payout, h.coinName))
	default:
		h.out.Say(story)
	}
	telemetry.RecordRound("rpg", strings.ToLower(event.Outcome))

	timer := profile.TimerSeconds
	if timer <= 0 {
		timer = h.cfg.RpgCooldownSeconds
	}
	h.startCooldown(ctx, user, model.FeatureRpg, timer)
	return nil
}

// startCooldown arms the feature lock and only logs on failure, an armed
// cooldown is advisory and never worth failing the round over.
func (h *GameHandler) startCooldown(ctx context.Context, user, feature string, seconds int) {
	if seconds <= 0 {
		return
	}
	if err := h.accounts.StartCooldown(ctx, user, feature, seconds); err != nil {
		log.Warn().Err(err).Str("user", user).Str("feature", feature).Msg("cooldown not armed")
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseDigits converts an already validated digit string, saturating at the
// int64 maximum for absurd inputs.
func parseDigits(s string) int64 {
	var n int64
	for _, c := range s {
		if n > (1<<63-1-int64(c-'0'))/10 {
			return 1<<63 - 1
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
