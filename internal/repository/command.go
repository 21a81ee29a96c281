package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twitch-economy-bot/internal/model"
)

// ErrCommandNotFound is returned when a command does not exist.
var ErrCommandNotFound = errors.New("command not found")

const commandColumns = `name, description, usage, used, cost, enabled, aliases, category, dynamic, payload`

// CommandRepository persists the dynamic command table.
type CommandRepository struct {
	pool *pgxpool.Pool
}

// NewCommandRepository creates a new CommandRepository instance.
func NewCommandRepository(pool *pgxpool.Pool) *CommandRepository {
	return &CommandRepository{pool: pool}
}

func scanCommand(row pgx.Row) (*model.Command, error) {
	var cmd model.Command
	err := row.Scan(
		&cmd.Name,
		&cmd.Description,
		&cmd.Usage,
		&cmd.Used,
		&cmd.Cost,
		&cmd.Enabled,
		&cmd.Aliases,
		&cmd.Category,
		&cmd.Dynamic,
		&cmd.Payload,
	)
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Insert stores a new command row.
func (r *CommandRepository) Insert(ctx context.Context, cmd *model.Command) error {
	const query = `
		INSERT INTO cmd (name, description, usage, used, cost, enabled, aliases, category, dynamic, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		cmd.Name, cmd.Description, cmd.Usage, cmd.Used, cmd.Cost,
		cmd.Enabled, cmd.Aliases, cmd.Category, cmd.Dynamic, cmd.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// Update replaces the stored row for cmd.Name with cmd's fields.
func (r *CommandRepository) Update(ctx context.Context, cmd *model.Command) error {
	const query = `
		UPDATE cmd
		SET description = $2, usage = $3, used = $4, cost = $5,
		    enabled = $6, aliases = $7, category = $8, dynamic = $9, payload = $10
		WHERE name = $1
	`

	result, err := r.pool.Exec(ctx, query,
		cmd.Name, cmd.Description, cmd.Usage, cmd.Used, cmd.Cost,
		cmd.Enabled, cmd.Aliases, cmd.Category, cmd.Dynamic, cmd.Payload)
	if err != nil {
		return fmt.Errorf("failed to update command: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// Delete removes a command by name.
func (r *CommandRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM cmd WHERE name = $1`

	result, err := r.pool.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// GetByName retrieves a single command.
func (r *CommandRepository) GetByName(ctx context.Context, name string) (*model.Command, error) {
	query := `SELECT ` + commandColumns + ` FROM cmd WHERE name = $1`

	cmd, err := scanCommand(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to get command: %w", err)
	}
	return cmd, nil
}

// GetAll returns every stored command ordered by name.
func (r *CommandRepository) GetAll(ctx context.Context) ([]*model.Command, error) {
	query := `SELECT ` + commandColumns + ` FROM cmd ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var commands []*model.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}
	return commands, nil
}

// SetEnabled toggles a command's enabled flag.
func (r *CommandRepository) SetEnabled(ctx context.Context, name string, enabled bool) error {
	const query = `UPDATE cmd SET enabled = $2 WHERE name = $1`

	result, err := r.pool.Exec(ctx, query, name, enabled)
	if err != nil {
		return fmt.Errorf("failed to set command enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// IncrementUsed bumps the usage counter. Best effort; the counter is
// advisory and a failed increment never blocks dispatch.
func (r *CommandRepository) IncrementUsed(ctx context.Context, name string) error {
	const query = `UPDATE cmd SET used = used + 1 WHERE name = $1`

	if _, err := r.pool.Exec(ctx, query, name); err != nil {
		return fmt.Errorf("failed to increment command usage: %w", err)
	}
	return nil
}
