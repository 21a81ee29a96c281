package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twitch-economy-bot/internal/model"
)

// Errors for RPG operations.
var (
	ErrProfileNotFound = errors.New("rpg profile not found")
	ErrNoEvents        = errors.New("no rpg events of that type")
)

const rpgColumns = `id, name, cost, win_rate, win_bonus, boss_bonus, boss_malus, timer_seconds,
	ratio_normal, ratio_treasure, ratio_monster, ratio_trap, ratio_boss`

// RpgRepository persists adventure profiles and their narrative events.
type RpgRepository struct {
	pool *pgxpool.Pool
}

// NewRpgRepository creates a new RpgRepository instance.
func NewRpgRepository(pool *pgxpool.Pool) *RpgRepository {
	return &RpgRepository{pool: pool}
}

func scanProfile(row pgx.Row) (*model.RpgProfile, error) {
	var p model.RpgProfile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Cost,
		&p.WinRate,
		&p.WinBonus,
		&p.BossBonus,
		&p.BossMalus,
		&p.TimerSeconds,
		&p.RatioNormal,
		&p.RatioTreasure,
		&p.RatioMonster,
		&p.RatioTrap,
		&p.RatioBoss,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile and returns it with its assigned ID.
func (r *RpgRepository) CreateProfile(ctx context.Context, p *model.RpgProfile) (*model.RpgProfile, error) {
	const query = `
		INSERT INTO rpg (name, cost, win_rate, win_bonus, boss_bonus, boss_malus, timer_seconds,
		                 ratio_normal, ratio_treasure, ratio_monster, ratio_trap, ratio_boss)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		p.Name, p.Cost, p.WinRate, p.WinBonus, p.BossBonus, p.BossMalus, p.TimerSeconds,
		p.RatioNormal, p.RatioTreasure, p.RatioMonster, p.RatioTrap, p.RatioBoss,
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpg profile: %w", err)
	}
	return p, nil
}

// UpdateProfile replaces a profile's fields.
func (r *RpgRepository) UpdateProfile(ctx context.Context, p *model.RpgProfile) error {
	const query = `
		UPDATE rpg
		SET name = $2, cost = $3, win_rate = $4, win_bonus = $5,
		    boss_bonus = $6, boss_malus = $7, timer_seconds = $8,
		    ratio_normal = $9, ratio_treasure = $10, ratio_monster = $11,
		    ratio_trap = $12, ratio_boss = $13
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Cost, p.WinRate, p.WinBonus,
		p.BossBonus, p.BossMalus, p.TimerSeconds,
		p.RatioNormal, p.RatioTreasure, p.RatioMonster, p.RatioTrap, p.RatioBoss)
	if err != nil {
		return fmt.Errorf("failed to update rpg profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// DeleteProfile removes a profile. Its events go with it via ON DELETE CASCADE.
func (r *RpgRepository) DeleteProfile(ctx context.Context, id int64) error {
	const query = `DELETE FROM rpg WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete rpg profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func (r *RpgRepository) GetProfile(ctx context.Context, id int64) (*model.RpgProfile, error) {
	query := `SELECT ` + rpgColumns + ` FROM rpg WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get rpg profile: %w", err)
	}
	return p, nil
}

// GetProfileByName retrieves a profile by its unique name.
func (r *RpgRepository) GetProfileByName(ctx context.Context, name string) (*model.RpgProfile, error) {
	query := `SELECT ` + rpgColumns + ` FROM rpg WHERE name = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get rpg profile: %w", err)
	}
	return p, nil
}

// GetAllProfiles returns every adventure profile ordered by ID.
func (r *RpgRepository) GetAllProfiles(ctx context.Context) ([]*model.RpgProfile, error) {
	query := `SELECT ` + rpgColumns + ` FROM rpg ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rpg profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.RpgProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rpg profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rpg profiles: %w", err)
	}
	return profiles, nil
}

// AddEvent inserts a narrative event and returns its assigned ID.
func (r *RpgRepository) AddEvent(ctx context.Context, e *model.RpgEvent) (*model.RpgEvent, error) {
	const query = `
		INSERT INTO rpg_event (rpg_id, message, type, outcome)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query, e.RpgID, e.Message, e.Type, e.Outcome).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add rpg event: %w", err)
	}
	return e, nil
}

// UpdateEvent rewrites a narrative event in place.
func (r *RpgRepository) UpdateEvent(ctx context.Context, e *model.RpgEvent) error {
	const query = `
		UPDATE rpg_event
		SET message = $2, type = $3, outcome = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, e.ID, e.Message, e.Type, e.Outcome)
	if err != nil {
		return fmt.Errorf("failed to update rpg event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoEvents
	}
	return nil
}

// GetEvent fetches a single narrative event by ID.
func (r *RpgRepository) GetEvent(ctx context.Context, id int64) (*model.RpgEvent, error) {
	const query = `
		SELECT id, rpg_id, message, type, outcome
		FROM rpg_event
		WHERE id = $1
	`

	e := &model.RpgEvent{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.RpgID, &e.Message, &e.Type, &e.Outcome)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoEvents
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rpg event: %w", err)
	}
	return e, nil
}

// DeleteEvent removes a single narrative event.
func (r *RpgRepository) DeleteEvent(ctx context.Context, id int64) error {
	const query = `DELETE FROM rpg_event WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete rpg event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoEvents
	}
	return nil
}

// DeleteEventsByType removes every event of one type for a profile and
// returns how many rows went away.
func (r *RpgRepository) DeleteEventsByType(ctx context.Context, rpgID int64, eventType string) (int64, error) {
	const query = `DELETE FROM rpg_event WHERE rpg_id = $1 AND type = $2`

	result, err := r.pool.Exec(ctx, query, rpgID, eventType)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rpg events: %w", err)
	}
	return result.RowsAffected(), nil
}

// DrawEvent picks one event of the given type uniformly at random. Every
// event of the type has equal weight regardless of outcome.
func (r *RpgRepository) DrawEvent(ctx context.Context, rpgID int64, eventType string) (*model.RpgEvent, error) {
	const query = `
		SELECT id, rpg_id, message, type, outcome
		FROM rpg_event
		WHERE rpg_id = $1 AND type = $2
		ORDER BY random()
		LIMIT 1
	`

	var e model.RpgEvent
	err := r.pool.QueryRow(ctx, query, rpgID, eventType).Scan(&e.ID, &e.RpgID, &e.Message, &e.Type, &e.Outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoEvents
		}
		return nil, fmt.Errorf("failed to draw rpg event: %w", err)
	}
	return &e, nil
}

// GetEvents lists a profile's events, optionally filtered by type. An empty
// eventType matches all types.
func (r *RpgRepository) GetEvents(ctx context.Context, rpgID int64, eventType string) ([]*model.RpgEvent, error) {
	query := `SELECT id, rpg_id, message, type, outcome FROM rpg_event WHERE rpg_id = $1`
	args := []any{rpgID}
	if eventType != "" {
		query += ` AND type = $2`
		args = append(args, eventType)
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rpg events: %w", err)
	}
	defer rows.Close()

	var events []*model.RpgEvent
	for rows.Next() {
		var e model.RpgEvent
		if err := rows.Scan(&e.ID, &e.RpgID, &e.Message, &e.Type, &e.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan rpg event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rpg events: %w", err)
	}
	return events, nil
}

// CountEventsByType returns per-type event counts for a profile. Types with
// no events are absent from the map.
func (r *RpgRepository) CountEventsByType(ctx context.Context, rpgID int64) (map[string]int, error) {
	const query = `SELECT type, COUNT(*) FROM rpg_event WHERE rpg_id = $1 GROUP BY type`

	rows, err := r.pool.Query(ctx, query, rpgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rpg events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rpg event count: %w", err)
		}
		counts[eventType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rpg event counts: %w", err)
	}
	return counts, nil
}

// CountEventsByOutcome returns win/loss/tie counts for one event type of a
// profile.
func (r *RpgRepository) CountEventsByOutcome(ctx context.Context, rpgID int64, eventType string) (map[string]int, error) {
	const query = `
		SELECT outcome, COUNT(*)
		FROM rpg_event
		WHERE rpg_id = $1 AND type = $2
		GROUP BY outcome
	`

	rows, err := r.pool.Query(ctx, query, rpgID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to count rpg outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rpg outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rpg outcome counts: %w", err)
	}
	return counts, nil
}
