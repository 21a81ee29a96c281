// Package slots implements the slot machine chat game.
package slots

import (
	"errors"

	"twitch-economy-bot/internal/game"
	"twitch-economy-bot/internal/model"
)

// Reel symbols. Heart is the jackpot symbol.
const (
	SymbolMushroom = "🍄"
	SymbolCoin     = "🪙"
	SymbolLeaf     = "🍀"
	SymbolDiamond  = "💎"
	SymbolHeart    = "💛"
)

// Symbols lists the reel symbols in draw order.
var Symbols = []string{SymbolMushroom, SymbolCoin, SymbolLeaf, SymbolDiamond, SymbolHeart}

// ErrDisabled is returned when the slot machine is switched off.
var ErrDisabled = errors.New("slots are disabled")

// Result is the outcome of one spin. Reward is the gross winnings; the
// machine cost is charged separately by the caller.
type Result struct {
	Reels  [3]string
	Win    bool
	Reward int64
}

// Machine is the slot machine. One instance serves all users; per-spin
// state lives entirely in Result.
type Machine struct {
	rng game.Rand
}

// New creates a slot machine drawing from the given randomness source.
func New(rng game.Rand) *Machine {
	return &Machine{rng: rng}
}

func (m *Machine) draw() [3]string {
	var reels [3]string
	for i := range reels {
		reels[i] = Symbols[m.rng.Intn(len(Symbols))]
	}
	return reels
}

// Spin runs one spin under the given configuration. A negative success rate
// disables the forced-match mechanism and returns the raw draw. Otherwise,
// when the success rate beats a uniform 0-100 check, the reels are redrawn
// until all three match.
func (m *Machine) Spin(cfg *model.SlotsConfig) (*Result, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	reels := m.draw()

	if cfg.SuccessRate >= 0 && cfg.SuccessRate >= m.rng.Intn(101) {
		for !(reels[0] == reels[1] && reels[1] == reels[2]) {
			reels = m.draw()
		}
	}

	result := &Result{Reels: reels}
	if reels[0] == reels[1] && reels[1] == reels[2] {
		result.Win = true
		switch reels[0] {
		case SymbolMushroom:
			result.Reward = int64(cfg.RewardMushroom * float64(cfg.Cost))
		case SymbolCoin:
			result.Reward = int64(cfg.RewardCoin * float64(cfg.Cost))
		case SymbolLeaf:
			result.Reward = int64(cfg.RewardLeaf * float64(cfg.Cost))
		case SymbolDiamond:
			result.Reward = int64(cfg.RewardDiamond * float64(cfg.Cost))
		case SymbolHeart:
			result.Reward = cfg.Jackpot
		}
	}

	return result, nil
}
