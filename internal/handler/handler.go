// Package handler provides the chat command handlers.
package handler

import (
	"context"
	"time"

	"twitch-economy-bot/internal/model"
)

// Responder sends a message to the channel the command came from.
type Responder interface {
	Say(text string)
}

// Members reports current channel membership. The bot keeps the set from
// IRC join/part events.
type Members interface {
	IsMember(username string) bool
}

// Accounts is the slice of the account service the handlers use.
type Accounts interface {
	EnsureUser(ctx context.Context, username string) (*model.User, error)
	Balance(ctx context.Context, username string) (int64, error)
	Adjust(ctx context.Context, username string, delta int64) (int64, error)
	Spend(ctx context.Context, username string, amount int64) (int64, error)
	StartCooldown(ctx context.Context, username, feature string, seconds int) error
	Top(ctx context.Context, limit int) ([]*model.User, error)
	TopChatter(ctx context.Context) (string, error)
}

// lockRemaining returns the seconds left on a user's feature lock, zero if
// the feature is unlocked or unknown.
func lockRemaining(u *model.User, feature string, now time.Time) int64 {
	var until int64
	switch feature {
	case model.FeatureGamble:
		until = u.GambleLockedUntil
	case model.FeatureRoll:
		until = u.RollLockedUntil
	case model.FeatureRpg:
		until = u.RpgLockedUntil
	case model.FeatureSfx:
		until = u.SfxLockedUntil
	case model.FeatureSlots:
		until = u.SlotsLockedUntil
	}
	if left := until - now.Unix(); left > 0 {
		return left
	}
	return 0
}
