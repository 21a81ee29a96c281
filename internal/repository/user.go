// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twitch-economy-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// userColumns is the scan order shared by every users query.
const userColumns = `username, balance, message_count, is_bot, is_follower, is_subscriber, is_mod,
	gamble_locked_until, roll_locked_until, rpg_locked_until, sfx_locked_until, slots_locked_until,
	ban_until, warning_count, created_at, updated_at`

// featureLockColumns maps a feature name to its lock column. Queries
// interpolate from this map only, never from caller input.
var featureLockColumns = map[string]string{
	model.FeatureGamble: "gamble_locked_until",
	model.FeatureRoll:   "roll_locked_until",
	model.FeatureRpg:    "rpg_locked_until",
	model.FeatureSfx:    "sfx_locked_until",
	model.FeatureSlots:  "slots_locked_until",
}

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.Username,
		&user.Balance,
		&user.MessageCount,
		&user.IsBot,
		&user.IsFollower,
		&user.IsSubscriber,
		&user.IsMod,
		&user.GambleLockedUntil,
		&user.RollLockedUntil,
		&user.RpgLockedUntil,
		&user.SfxLockedUntil,
		&user.SlotsLockedUntil,
		&user.BanUntil,
		&user.WarningCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with the given starting balance.
func (r *UserRepository) Create(ctx context.Context, username string, startingBalance int64) (*model.User, error) {
	query := `
		INSERT INTO users (username, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, username, startingBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating one if it doesn't exist.
// Returns the user and whether it was newly created.
func (r *UserRepository) GetOrCreate(ctx context.Context, username string, startingBalance int64) (*model.User, bool, error) {
	user, err := r.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, username, startingBalance)
	if err != nil {
		// Handle race condition: another goroutine might have created the user
		user, err = r.GetByUsername(ctx, username)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// AdjustBalance adds delta (which may be negative) to a user's balance in a
// single UPDATE and returns the new balance. There is no floor; balances may
// go negative.
func (r *UserRepository) AdjustBalance(ctx context.Context, username string, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE username = $1
		RETURNING balance
	`

	var balance int64
	err := r.pool.QueryRow(ctx, query, username, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return balance, nil
}

// SetBalance sets a user's balance to an exact value.
// Used primarily for admin operations.
func (r *UserRepository) SetBalance(ctx context.Context, username string, balance int64) error {
	const query = `UPDATE users SET balance = $2, updated_at = NOW() WHERE username = $1`

	result, err := r.pool.Exec(ctx, query, username, balance)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementMessageCount adds one to a user's message counter.
func (r *UserRepository) IncrementMessageCount(ctx context.Context, username string) error {
	const query = `
		UPDATE users
		SET message_count = message_count + 1, updated_at = NOW()
		WHERE username = $1
	`

	result, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetFlag updates one of the boolean role flags (is_bot, is_follower,
// is_subscriber, is_mod).
func (r *UserRepository) SetFlag(ctx context.Context, username, column string, value bool) error {
	switch column {
	case "is_bot", "is_follower", "is_subscriber", "is_mod":
	default:
		return fmt.Errorf("unknown user flag %q", column)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = NOW() WHERE username = $1`, column)
	result, err := r.pool.Exec(ctx, query, username, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetFeatureLock sets a user's per-feature cooldown lock to the given unix
// timestamp. Zero clears the lock.
func (r *UserRepository) SetFeatureLock(ctx context.Context, username, feature string, until int64) error {
	column, ok := featureLockColumns[feature]
	if !ok {
		return fmt.Errorf("unknown feature %q", feature)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = NOW() WHERE username = $1`, column)
	result, err := r.pool.Exec(ctx, query, username, until)
	if err != nil {
		return fmt.Errorf("failed to set %s lock: %w", feature, err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBan sets a user's ban expiry, unix seconds. Zero lifts the ban.
func (r *UserRepository) SetBan(ctx context.Context, username string, until int64) error {
	const query = `UPDATE users SET ban_until = $2, updated_at = NOW() WHERE username = $1`

	result, err := r.pool.Exec(ctx, query, username, until)
	if err != nil {
		return fmt.Errorf("failed to set ban: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddWarning increments a user's warning counter and returns the new count.
func (r *UserRepository) AddWarning(ctx context.Context, username string) (int, error) {
	const query = `
		UPDATE users
		SET warning_count = warning_count + 1, updated_at = NOW()
		WHERE username = $1
		RETURNING warning_count
	`

	var count int
	err := r.pool.QueryRow(ctx, query, username).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to add warning: %w", err)
	}
	return count, nil
}

// Delete removes a user. Explicit admin action only; users are never
// hard-deleted by the bot itself.
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	const query = `DELETE FROM users WHERE username = $1`

	result, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetAllUsernames returns every known username.
func (r *UserRepository) GetAllUsernames(ctx context.Context) ([]string, error) {
	const query = `SELECT username FROM users`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		usernames = append(usernames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usernames: %w", err)
	}
	return usernames, nil
}

func (r *UserRepository) listUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetFollowers returns all users flagged as followers.
func (r *UserRepository) GetFollowers(ctx context.Context) ([]*model.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_follower`)
}

// GetSubscribers returns all users flagged as subscribers.
func (r *UserRepository) GetSubscribers(ctx context.Context) ([]*model.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_subscriber`)
}

// GetWarned returns all users with at least one warning.
func (r *UserRepository) GetWarned(ctx context.Context) ([]*model.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE warning_count > 0`)
}

// GetTopUsers retrieves the top N users by balance.
func (r *UserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY balance DESC LIMIT $1`, limit)
}

// GetTopChatter returns the username with the highest message count, or
// ErrUserNotFound when the table is empty.
func (r *UserRepository) GetTopChatter(ctx context.Context) (string, error) {
	const query = `SELECT username FROM users ORDER BY message_count DESC LIMIT 1`

	var username string
	err := r.pool.QueryRow(ctx, query).Scan(&username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get top chatter: %w", err)
	}
	return username, nil
}
