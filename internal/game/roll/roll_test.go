package roll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"twitch-economy-bot/internal/model"
)

type fixedRand struct{ value int }

func (r fixedRand) Intn(n int) int { return r.value % n }

func testConfig() *model.RollConfig {
	return &model.RollConfig{
		Enabled:         true,
		MinBet:          100,
		MaxBet:          777777,
		CritSuccessMult: 7.777,
		CritFailureMult: 6.66,
	}
}

func TestGame_ValidateBet(t *testing.T) {
	g := New(fixedRand{})
	cfg := testConfig()

	assert.NoError(t, g.ValidateBet(cfg, 100))
	assert.NoError(t, g.ValidateBet(cfg, 777777))
	assert.ErrorIs(t, g.ValidateBet(cfg, 99), ErrBetBelowMinimum)
	assert.ErrorIs(t, g.ValidateBet(cfg, 777778), ErrBetAboveMaximum)

	cfg.Enabled = false
	assert.ErrorIs(t, g.ValidateBet(cfg, 100), ErrDisabled)
}

func TestResolve(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name  string
		value int
		bet   int64
		kind  Kind
		delta int64
	}{
		{"critical failure", 0, 1000, CriticalFailure, -6660},
		{"low loss", 1, 1000, Loss, -1000},
		{"boundary loss", 49, 1000, Loss, -1000},
		{"push", 50, 1000, Push, 0},
		{"boundary win", 51, 1000, Win, 2000},
		{"high win", 99, 1000, Win, 2000},
		{"critical success", 100, 1000, CriticalSuccess, 7777},
		{"critical success truncates", 100, 101, CriticalSuccess, 785}, // 7.777*101 = 785.477
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Resolve(cfg, tt.value, tt.bet)
			assert.Equal(t, tt.kind, result.Kind)
			assert.Equal(t, tt.delta, result.Delta)
			assert.Equal(t, tt.value, result.Value)
		})
	}
}

func TestGame_Play(t *testing.T) {
	g := New(fixedRand{value: 100})

	result, err := g.Play(testConfig(), 1000)
	require.NoError(t, err)
	assert.Equal(t, CriticalSuccess, result.Kind)
	assert.Equal(t, int64(7777), result.Delta)

	_, err = g.Play(testConfig(), 1)
	assert.ErrorIs(t, err, ErrBetBelowMinimum)
}

func TestResolve_DeltaBounds(t *testing.T) {
	cfg := testConfig()

	rapid.Check(t, func(t *rapid.T) {
		value := rapid.IntRange(0, 100).Draw(t, "value")
		bet := rapid.Int64Range(cfg.MinBet, cfg.MaxBet).Draw(t, "bet")

		result := Resolve(cfg, value, bet)

		// Payouts never exceed the configured multipliers in either
		// direction.
		assert.LessOrEqual(t, result.Delta, int64(cfg.CritSuccessMult*float64(bet)))
		assert.GreaterOrEqual(t, result.Delta, -int64(cfg.CritFailureMult*float64(bet)))

		switch result.Kind {
		case Push:
			assert.Zero(t, result.Delta)
		case Loss, CriticalFailure:
			assert.Negative(t, result.Delta)
		default:
			assert.Positive(t, result.Delta)
		}
	})
}
