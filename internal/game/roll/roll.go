// Package roll implements the 0-100 dice roll chat game.
package roll

import (
	"errors"

	"twitch-economy-bot/internal/game"
	"twitch-economy-bot/internal/model"
)

// Errors for the roll game.
var (
	ErrDisabled        = errors.New("roll is disabled")
	ErrBetBelowMinimum = errors.New("bet below minimum")
	ErrBetAboveMaximum = errors.New("bet above maximum")
)

// Kind classifies a roll outcome.
type Kind int

const (
	CriticalFailure Kind = iota
	Loss
	Push
	Win
	CriticalSuccess
)

// Result is the outcome of one roll. Delta is the signed balance change,
// bet included.
type Result struct {
	Value int
	Kind  Kind
	Delta int64
}

// Game is the dice roll game.
type Game struct {
	rng game.Rand
}

// New creates a roll game drawing from the given randomness source.
func New(rng game.Rand) *Game {
	return &Game{rng: rng}
}

// ValidateBet checks the bet against the configured bounds.
func (g *Game) ValidateBet(cfg *model.RollConfig, bet int64) error {
	if !cfg.Enabled {
		return ErrDisabled
	}
	if bet < cfg.MinBet {
		return ErrBetBelowMinimum
	}
	if bet > cfg.MaxBet {
		return ErrBetAboveMaximum
	}
	return nil
}

// Play rolls a value in [0, 100] and resolves it against the bet.
func (g *Game) Play(cfg *model.RollConfig, bet int64) (*Result, error) {
	if err := g.ValidateBet(cfg, bet); err != nil {
		return nil, err
	}
	return Resolve(cfg, g.rng.Intn(101), bet), nil
}

// Resolve maps a roll value to its payout: 0 loses bet times the critical
// failure multiplier, 100 wins bet times the critical success multiplier,
// 1-49 loses the bet, 50 is a push, 51-99 wins double the bet. The critical
// multiplier products are truncated toward zero.
func Resolve(cfg *model.RollConfig, value int, bet int64) *Result {
	result := &Result{Value: value}
	switch {
	case value == 0:
		result.Kind = CriticalFailure
		result.Delta = -int64(cfg.CritFailureMult * float64(bet))
	case value == 100:
		result.Kind = CriticalSuccess
		result.Delta = int64(cfg.CritSuccessMult * float64(bet))
	case value < 50:
		result.Kind = Loss
		result.Delta = -bet
	case value == 50:
		result.Kind = Push
		result.Delta = 0
	default:
		result.Kind = Win
		result.Delta = 2 * bet
	}
	return result
}
