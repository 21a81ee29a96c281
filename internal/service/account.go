// Package service implements the business logic between the chat handlers
// and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/pkg/lock"
	"twitch-economy-bot/internal/repository"
)

// Errors for account operations.
var (
	ErrBanned            = errors.New("user is banned")
	ErrOnCooldown        = errors.New("feature is on cooldown")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// lockTimeout bounds how long a flow waits on another holder of the same
// user's mutex.
const lockTimeout = 5 * time.Second

// AccountService owns user lifecycle, the coin ledger and the per-feature
// cooldown locks.
type AccountService struct {
	users         *repository.UserRepository
	locks         *lock.UserLock
	startingCoins int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users *repository.UserRepository, locks *lock.UserLock, startingCoins int64) *AccountService {
	return &AccountService{
		users:         users,
		locks:         locks,
		startingCoins: startingCoins,
	}
}

// EnsureUser returns the user, creating it with the starting balance on
// first sight.
func (s *AccountService) EnsureUser(ctx context.Context, username string) (*model.User, error) {
	user, created, err := s.users.GetOrCreate(ctx, username, s.startingCoins)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Str("user", username).Int64("balance", user.Balance).Msg("user created")
	}
	return user, nil
}

// RecordMessage bumps the user's message counter, creating the user first if
// needed.
func (s *AccountService) RecordMessage(ctx context.Context, username string) error {
	if _, err := s.EnsureUser(ctx, username); err != nil {
		return err
	}
	return s.users.IncrementMessageCount(ctx, username)
}

// Adjust applies a signed balance change and returns the new balance. The
// update is a single atomic statement; balances may go negative.
func (s *AccountService) Adjust(ctx context.Context, username string, delta int64) (int64, error) {
	balance, err := s.users.AdjustBalance(ctx, username, delta)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("user", username).Int64("delta", delta).Int64("balance", balance).Msg("balance adjusted")
	return balance, nil
}

// Balance returns the user's current balance.
func (s *AccountService) Balance(ctx context.Context, username string) (int64, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Spend atomically checks and charges an amount. The check and the charge
// run under the user's keyed mutex so two concurrent spends cannot both pass
// on the same funds.
func (s *AccountService) Spend(ctx context.Context, username string, amount int64) (int64, error) {
	var balance int64
	err := s.locks.WithLockContext(ctx, username, lockTimeout, func() error {
		user, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.Balance < amount {
			return ErrInsufficientFunds
		}
		balance, err = s.users.AdjustBalance(ctx, username, -amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// WithUserLock serializes a multi-statement flow on the user's keyed mutex.
func (s *AccountService) WithUserLock(ctx context.Context, username string, fn func() error) error {
	return s.locks.WithLockContext(ctx, username, lockTimeout, fn)
}

// Eligible reports whether a user may play a feature right now. Checks the
// ban first, then the feature's cooldown lock.
func Eligible(user *model.User, feature string, now time.Time) error {
	unix := now.Unix()
	if user.BanUntil > unix {
		return fmt.Errorf("%w until %d", ErrBanned, user.BanUntil)
	}

	var until int64
	switch feature {
	case model.FeatureGamble:
		until = user.GambleLockedUntil
	case model.FeatureRoll:
		until = user.RollLockedUntil
	case model.FeatureRpg:
		until = user.RpgLockedUntil
	case model.FeatureSfx:
		until = user.SfxLockedUntil
	case model.FeatureSlots:
		until = user.SlotsLockedUntil
	default:
		return fmt.Errorf("unknown feature %q", feature)
	}
	if until > unix {
		return fmt.Errorf("%w: %ds remaining", ErrOnCooldown, until-unix)
	}
	return nil
}

// StartCooldown locks a feature for the user for the given duration. Zero or
// negative seconds clear the lock.
func (s *AccountService) StartCooldown(ctx context.Context, username, feature string, seconds int) error {
	var until int64
	if seconds > 0 {
		until = time.Now().Add(time.Duration(seconds) * time.Second).Unix()
	}
	return s.users.SetFeatureLock(ctx, username, feature, until)
}

// SyncMembers reconciles follower flags against the current channel member
// list: present members are created if unknown and flagged as followers,
// everyone else loses the flag.
func (s *AccountService) SyncMembers(ctx context.Context, members []string) error {
	present := make(map[string]bool, len(members))
	for _, member := range members {
		present[member] = true
		user, err := s.EnsureUser(ctx, member)
		if err != nil {
			return err
		}
		if !user.IsFollower {
			if err := s.users.SetFlag(ctx, member, "is_follower", true); err != nil {
				return err
			}
		}
	}

	known, err := s.users.GetFollowers(ctx)
	if err != nil {
		return err
	}
	for _, user := range known {
		if !present[user.Username] {
			if err := s.users.SetFlag(ctx, user.Username, "is_follower", false); err != nil {
				return err
			}
		}
	}
	return nil
}

// Top returns the richest users.
func (s *AccountService) Top(ctx context.Context, limit int) ([]*model.User, error) {
	return s.users.GetTopUsers(ctx, limit)
}

// TopChatter returns the most active chatter's username.
func (s *AccountService) TopChatter(ctx context.Context) (string, error) {
	return s.users.GetTopChatter(ctx)
}
