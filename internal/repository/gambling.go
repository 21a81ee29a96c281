package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"twitch-economy-bot/internal/model"
)

// GamblingRepository persists the single-row slots and roll game configs.
type GamblingRepository struct {
	pool *pgxpool.Pool
}

// NewGamblingRepository creates a new GamblingRepository instance.
func NewGamblingRepository(pool *pgxpool.Pool) *GamblingRepository {
	return &GamblingRepository{pool: pool}
}

// GetSlots returns the current slots configuration.
func (r *GamblingRepository) GetSlots(ctx context.Context) (*model.SlotsConfig, error) {
	const query = `
		SELECT cost, enabled, rng_bias, success_rate,
		       reward_mushroom, reward_coin, reward_leaf, reward_diamond, jackpot
		FROM slots WHERE id = 1
	`

	var cfg model.SlotsConfig
	err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.Cost,
		&cfg.Enabled,
		&cfg.RngBias,
		&cfg.SuccessRate,
		&cfg.RewardMushroom,
		&cfg.RewardCoin,
		&cfg.RewardLeaf,
		&cfg.RewardDiamond,
		&cfg.Jackpot,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots config: %w", err)
	}
	return &cfg, nil
}

// UpdateSlots replaces the slots configuration.
func (r *GamblingRepository) UpdateSlots(ctx context.Context, cfg *model.SlotsConfig) error {
	const query = `
		UPDATE slots
		SET cost = $1, enabled = $2, rng_bias = $3, success_rate = $4,
		    reward_mushroom = $5, reward_coin = $6, reward_leaf = $7,
		    reward_diamond = $8, jackpot = $9
		WHERE id = 1
	`

	_, err := r.pool.Exec(ctx, query,
		cfg.Cost, cfg.Enabled, cfg.RngBias, cfg.SuccessRate,
		cfg.RewardMushroom, cfg.RewardCoin, cfg.RewardLeaf,
		cfg.RewardDiamond, cfg.Jackpot)
	if err != nil {
		return fmt.Errorf("failed to update slots config: %w", err)
	}
	return nil
}

// GetRoll returns the current roll configuration.
func (r *GamblingRepository) GetRoll(ctx context.Context) (*model.RollConfig, error) {
	const query = `
		SELECT enabled, min_bet, max_bet, crit_success_mult, crit_failure_mult
		FROM roll WHERE id = 1
	`

	var cfg model.RollConfig
	err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.Enabled,
		&cfg.MinBet,
		&cfg.MaxBet,
		&cfg.CritSuccessMult,
		&cfg.CritFailureMult,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roll config: %w", err)
	}
	return &cfg, nil
}

// UpdateRoll replaces the roll configuration.
func (r *GamblingRepository) UpdateRoll(ctx context.Context, cfg *model.RollConfig) error {
	const query = `
		UPDATE roll
		SET enabled = $1, min_bet = $2, max_bet = $3,
		    crit_success_mult = $4, crit_failure_mult = $5
		WHERE id = 1
	`

	_, err := r.pool.Exec(ctx, query,
		cfg.Enabled, cfg.MinBet, cfg.MaxBet,
		cfg.CritSuccessMult, cfg.CritFailureMult)
	if err != nil {
		return fmt.Errorf("failed to update roll config: %w", err)
	}
	return nil
}
