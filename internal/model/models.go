// Package model defines the data models for the Twitch economy bot.
package model

import "time"

// Command represents one row of the cmd table. The live dispatch table in
// internal/command is a rebuildable cache of the rows with Enabled set.
type Command struct {
	Name        string   `db:"name"`
	Description string   `db:"description"`
	Usage       string   `db:"usage"`
	Used        int64    `db:"used"`
	Cost        int64    `db:"cost"`
	Enabled     bool     `db:"enabled"`
	Aliases     []string `db:"aliases"`
	Category    string   `db:"category"`
	Dynamic     bool     `db:"dynamic"`
	Payload     string   `db:"payload"`
}

// Command categories. Dynamic commands resolve through one generic handler
// that branches on the category; built-in categories bind Go handlers.
const (
	CategoryText    = "text"
	CategorySfx     = "sfx"
	CategoryGame    = "game"
	CategoryBuiltin = "builtin"
)

// User represents a chatter in the users table. Users are created lazily on
// their first observed message or on a channel-membership sync.
type User struct {
	Username     string `db:"username"`
	Balance      int64  `db:"balance"`
	MessageCount int64  `db:"message_count"`
	IsBot        bool   `db:"is_bot"`
	IsFollower   bool   `db:"is_follower"`
	IsSubscriber bool   `db:"is_subscriber"`
	IsMod        bool   `db:"is_mod"`

	// Per-feature lock timestamps, unix seconds. Zero means unlocked.
	GambleLockedUntil int64 `db:"gamble_locked_until"`
	RollLockedUntil   int64 `db:"roll_locked_until"`
	RpgLockedUntil    int64 `db:"rpg_locked_until"`
	SfxLockedUntil    int64 `db:"sfx_locked_until"`
	SlotsLockedUntil  int64 `db:"slots_locked_until"`

	BanUntil     int64 `db:"ban_until"`
	WarningCount int   `db:"warning_count"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Feature names used for the per-user cooldown locks.
const (
	FeatureGamble = "gamble"
	FeatureRoll   = "roll"
	FeatureRpg    = "rpg"
	FeatureSfx    = "sfx"
	FeatureSlots  = "slots"
)

// SlotsConfig is the singleton slots table row for the channel.
type SlotsConfig struct {
	Cost           int64   `db:"cost"`
	Enabled        bool    `db:"enabled"`
	RngBias        int     `db:"rng_bias"`
	SuccessRate    int     `db:"success_rate"`
	RewardMushroom float64 `db:"reward_mushroom"`
	RewardCoin     float64 `db:"reward_coin"`
	RewardLeaf     float64 `db:"reward_leaf"`
	RewardDiamond  float64 `db:"reward_diamond"`
	Jackpot        int64   `db:"jackpot"`
}

// RollConfig is the singleton roll table row for the channel.
type RollConfig struct {
	Enabled         bool    `db:"enabled"`
	MinBet          int64   `db:"min_bet"`
	MaxBet          int64   `db:"max_bet"`
	CritSuccessMult float64 `db:"crit_success_mult"`
	CritFailureMult float64 `db:"crit_failure_mult"`
}

// RpgProfile is one configured adventure in the rpg table. The five event
// ratios must sum to exactly 100; updates violating that are rejected.
type RpgProfile struct {
	ID           int64   `db:"id"`
	Name         string  `db:"name"`
	Cost         int64   `db:"cost"`
	WinRate      int     `db:"win_rate"`
	WinBonus     int64   `db:"win_bonus"`
	BossBonus    float64 `db:"boss_bonus"`
	BossMalus    float64 `db:"boss_malus"`
	TimerSeconds int     `db:"timer_seconds"`

	RatioNormal   int `db:"ratio_normal"`
	RatioTreasure int `db:"ratio_treasure"`
	RatioMonster  int `db:"ratio_monster"`
	RatioTrap     int `db:"ratio_trap"`
	RatioBoss     int `db:"ratio_boss"`
}

// RatioSum returns the sum of the five event ratios.
func (p *RpgProfile) RatioSum() int {
	return p.RatioNormal + p.RatioTreasure + p.RatioMonster + p.RatioTrap + p.RatioBoss
}

// RpgEvent is one narrative event row owned by an RpgProfile. Deleting the
// profile cascades to its events.
type RpgEvent struct {
	ID      int64  `db:"id"`
	RpgID   int64  `db:"rpg_id"`
	Message string `db:"message"`
	Type    string `db:"type"`
	Outcome string `db:"outcome"`
}

// RPG event types.
const (
	EventNormal   = "Normal"
	EventTreasure = "Treasure"
	EventMonster  = "Monster"
	EventTrap     = "Trap"
	EventBoss     = "Boss"
)

// RPG event outcomes.
const (
	OutcomeWin  = "Win"
	OutcomeLoss = "Loss"
	OutcomeTie  = "Tie"
)

// EventTypes returns the valid event types in display order.
func EventTypes() []string {
	return []string{EventNormal, EventTreasure, EventMonster, EventTrap, EventBoss}
}

// Outcomes returns the valid event outcomes.
func Outcomes() []string {
	return []string{OutcomeWin, OutcomeLoss, OutcomeTie}
}

// SfxAsset is one deduplicated audio file in the sfx table. ContentHash is
// the hex sha256 of the file bytes and doubles as the primary key.
type SfxAsset struct {
	ContentHash string `db:"content_hash"`
	FilePath    string `db:"file_path"`
}

// SfxGroup is a named collection of sound-effect events.
type SfxGroup struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Enabled     bool   `db:"enabled"`
}

// SfxEvent binds an asset to a chat-invocable sound effect.
type SfxEvent struct {
	ID              int64  `db:"id"`
	GroupID         int64  `db:"group_id"`
	AssetHash       string `db:"asset_hash"`
	Name            string `db:"name"`
	Volume          int    `db:"volume"`
	Cost            int64  `db:"cost"`
	CooldownSeconds int    `db:"cooldown_seconds"`
	OutputDevice    string `db:"output_device"`
}
