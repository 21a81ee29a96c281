// Package rpg implements the text adventure chat game. A profile configures
// the economy knobs and how often each event type comes up; the narrative
// rows themselves live in the rpg_event table.
package rpg

import (
	"errors"
	"strings"

	"twitch-economy-bot/internal/game"
	"twitch-economy-bot/internal/model"
)

// ErrRatioSum is returned when a profile's five event ratios do not sum to
// exactly 100.
var ErrRatioSum = errors.New("ratios must be equal to 100")

// Engine picks event types and resolves payouts for adventure plays.
type Engine struct {
	rng game.Rand
}

// New creates an engine drawing from the given randomness source.
func New(rng game.Rand) *Engine {
	return &Engine{rng: rng}
}

// ValidateRatios checks the save-time ratio invariant.
func ValidateRatios(p *model.RpgProfile) error {
	if p.RatioSum() != 100 {
		return ErrRatioSum
	}
	return nil
}

// PickType draws an event type weighted by the profile's ratios. The caller
// must have validated the ratios; with a sum of 100 every draw lands in a
// bucket.
func (e *Engine) PickType(p *model.RpgProfile) string {
	n := e.rng.Intn(100)
	for _, bucket := range []struct {
		eventType string
		ratio     int
	}{
		{model.EventNormal, p.RatioNormal},
		{model.EventTreasure, p.RatioTreasure},
		{model.EventMonster, p.RatioMonster},
		{model.EventTrap, p.RatioTrap},
		{model.EventBoss, p.RatioBoss},
	} {
		if n < bucket.ratio {
			return bucket.eventType
		}
		n -= bucket.ratio
	}
	return model.EventBoss
}

// Payout maps a drawn event to the signed balance change. Boss events scale
// with the profile cost through the bonus and malus multipliers; everything
// else wins the flat bonus or loses the entry cost. Ties change nothing.
func Payout(p *model.RpgProfile, event *model.RpgEvent) int64 {
	switch event.Outcome {
	case model.OutcomeWin:
		if event.Type == model.EventBoss {
			return int64(p.BossBonus * float64(p.Cost))
		}
		return p.WinBonus
	case model.OutcomeLoss:
		if event.Type == model.EventBoss {
			return -int64(p.BossMalus * float64(p.Cost))
		}
		return -p.Cost
	default:
		return 0
	}
}

// Narrate substitutes the player into an event message.
func Narrate(event *model.RpgEvent, username string) string {
	return strings.ReplaceAll(event.Message, "{user}", username)
}

// DefaultProfile returns the stock adventure configuration.
func DefaultProfile(name string) *model.RpgProfile {
	return &model.RpgProfile{
		Name:         name,
		Cost:         1000,
		WinRate:      50,
		WinBonus:     100,
		BossBonus:    7.777,
		BossMalus:    6.66,
		TimerSeconds: 60,
		RatioNormal:  20, RatioTreasure: 5, RatioMonster: 60, RatioTrap: 5, RatioBoss: 10,
	}
}

// DefaultEvents returns the stock adventure narrative set for a profile.
func DefaultEvents(rpgID int64) []*model.RpgEvent {
	seed := []struct {
		message   string
		eventType string
		outcome   string
	}{
		{"You stumble upon a hidden chest.", model.EventTreasure, model.OutcomeWin},
		{"A group of goblins ambushes {user}.", model.EventMonster, model.OutcomeLoss},
		{"You decipher an ancient script.", model.EventNormal, model.OutcomeWin},
		{"A massive dragon confronts {user}.", model.EventBoss, model.OutcomeLoss},
		{"You trigger a hidden trap.", model.EventTrap, model.OutcomeLoss},
		{"You discover a pile of gold coins.", model.EventTreasure, model.OutcomeWin},
		{"A bandit attacks {user} unexpectedly.", model.EventMonster, model.OutcomeTie},
		{"You uncover a magical amulet.", model.EventTreasure, model.OutcomeWin},
		{"A terrifying demon blocks {user}'s path.", model.EventBoss, model.OutcomeLoss},
		{"You solve a complex puzzle.", model.EventNormal, model.OutcomeWin},
		{"A hidden snare traps {user}.", model.EventTrap, model.OutcomeLoss},
		{"You find a chest filled with gems.", model.EventTreasure, model.OutcomeWin},
		{"A pack of wolves surrounds {user}.", model.EventMonster, model.OutcomeTie},
		{"You acquire a legendary sword.", model.EventTreasure, model.OutcomeWin},
		{"A mighty ogre challenges {user} to a duel.", model.EventBoss, model.OutcomeLoss},
		{"You discover a hidden passage.", model.EventNormal, model.OutcomeWin},
		{"A pit trap catches {user} off guard.", model.EventTrap, model.OutcomeLoss},
		{"You unearth a trove of ancient artifacts.", model.EventTreasure, model.OutcomeWin},
		{"A horde of orcs ambushes {user}.", model.EventMonster, model.OutcomeLoss},
		{"You decipher an old map.", model.EventNormal, model.OutcomeWin},
		{"A poison dart narrowly misses {user}.", model.EventTrap, model.OutcomeWin},
		{"You find a chest filled with rare treasures.", model.EventTreasure, model.OutcomeWin},
		{"A fearsome troll blocks {user}'s way.", model.EventBoss, model.OutcomeLoss},
		{"You stumble upon an abandoned campsite.", model.EventNormal, model.OutcomeWin},
		{"A falling boulder narrowly misses {user}.", model.EventTrap, model.OutcomeWin},
		{"You unearth a valuable gemstone.", model.EventTreasure, model.OutcomeWin},
		{"A pack of wild boars charges at {user}.", model.EventMonster, model.OutcomeTie},
		{"You decipher an ancient inscription.", model.EventNormal, model.OutcomeWin},
		{"A swinging pendulum narrowly misses {user}.", model.EventTrap, model.OutcomeWin},
		{"You discover a chest filled with precious jewels.", model.EventTreasure, model.OutcomeWin},
		{"A powerful sorcerer appears before {user}.", model.EventBoss, model.OutcomeLoss},
		{"You uncover a hidden stash of gold.", model.EventTreasure, model.OutcomeWin},
		{"A swarm of spiders descends upon {user}.", model.EventMonster, model.OutcomeLoss},
		{"You navigate through a dark maze.", model.EventNormal, model.OutcomeWin},
		{"A trapdoor opens beneath {user}.", model.EventTrap, model.OutcomeLoss},
		{"You unearth a legendary artifact.", model.EventTreasure, model.OutcomeWin},
		{"A ferocious bear confronts {user}.", model.EventMonster, model.OutcomeTie},
		{"You solve a challenging riddle.", model.EventNormal, model.OutcomeWin},
		{"A dart trap narrowly misses {user}.", model.EventTrap, model.OutcomeWin},
		{"You discover a chest of ancient relics.", model.EventTreasure, model.OutcomeWin},
		{"A menacing minotaur stands in {user}'s way.", model.EventBoss, model.OutcomeLoss},
		{"You find a hidden cave entrance.", model.EventNormal, model.OutcomeWin},
		{"A pressure plate triggers beneath {user}.", model.EventTrap, model.OutcomeLoss},
		{"You uncover a chest of enchanted treasures.", model.EventTreasure, model.OutcomeWin},
		{"A pack of hungry wolves surrounds {user}.", model.EventMonster, model.OutcomeTie},
		{"You decipher a cryptic message.", model.EventNormal, model.OutcomeWin},
		{"A hidden arrow narrowly misses {user}.", model.EventTrap, model.OutcomeWin},
		{"You unearth a chest of magical artifacts.", model.EventTreasure, model.OutcomeWin},
		{"A fearsome wyvern swoops down upon {user}.", model.EventBoss, model.OutcomeLoss},
		{"You come across a tranquil village.", model.EventNormal, model.OutcomeWin},
	}

	events := make([]*model.RpgEvent, len(seed))
	for i, s := range seed {
		events[i] = &model.RpgEvent{
			RpgID:   rpgID,
			Message: s.message,
			Type:    s.eventType,
			Outcome: s.outcome,
		}
	}
	return events
}
