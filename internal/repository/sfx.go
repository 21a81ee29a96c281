package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twitch-economy-bot/internal/model"
)

// Errors for sound-effect operations.
var (
	ErrSfxGroupNotFound = errors.New("sfx group not found")
	ErrSfxEventNotFound = errors.New("sfx event not found")
	ErrSfxAssetNotFound = errors.New("sfx asset not found")
)

// SfxRepository persists sound-effect groups, events and the
// content-addressed asset index.
type SfxRepository struct {
	pool *pgxpool.Pool
}

// NewSfxRepository creates a new SfxRepository instance.
func NewSfxRepository(pool *pgxpool.Pool) *SfxRepository {
	return &SfxRepository{pool: pool}
}

// UpsertAsset records an asset by content hash. Re-ingesting identical bytes
// is a no-op.
func (r *SfxRepository) UpsertAsset(ctx context.Context, asset *model.SfxAsset) error {
	const query = `
		INSERT INTO sfx (content_hash, file_path)
		VALUES ($1, $2)
		ON CONFLICT (content_hash) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, asset.ContentHash, asset.FilePath); err != nil {
		return fmt.Errorf("failed to upsert sfx asset: %w", err)
	}
	return nil
}

// GetAsset resolves a content hash to its stored file path.
func (r *SfxRepository) GetAsset(ctx context.Context, contentHash string) (*model.SfxAsset, error) {
	const query = `SELECT content_hash, file_path FROM sfx WHERE content_hash = $1`

	var asset model.SfxAsset
	err := r.pool.QueryRow(ctx, query, contentHash).Scan(&asset.ContentHash, &asset.FilePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSfxAssetNotFound
		}
		return nil, fmt.Errorf("failed to get sfx asset: %w", err)
	}
	return &asset, nil
}

// GetAllAssets lists every stored asset.
func (r *SfxRepository) GetAllAssets(ctx context.Context) ([]*model.SfxAsset, error) {
	const query = `SELECT content_hash, file_path FROM sfx ORDER BY content_hash`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sfx assets: %w", err)
	}
	defer rows.Close()

	var assets []*model.SfxAsset
	for rows.Next() {
		var asset model.SfxAsset
		if err := rows.Scan(&asset.ContentHash, &asset.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan sfx asset: %w", err)
		}
		assets = append(assets, &asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sfx assets: %w", err)
	}
	return assets, nil
}

// DeleteOrphanAssets removes assets no event references and returns the
// file paths of the removed rows so the caller can unlink them.
func (r *SfxRepository) DeleteOrphanAssets(ctx context.Context) ([]string, error) {
	const query = `
		DELETE FROM sfx
		WHERE content_hash NOT IN (SELECT asset_hash FROM sfx_event)
		RETURNING file_path
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to delete orphan sfx assets: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan orphan asset path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphan assets: %w", err)
	}
	return paths, nil
}

// CreateGroup inserts a group and returns it with its assigned ID.
func (r *SfxRepository) CreateGroup(ctx context.Context, g *model.SfxGroup) (*model.SfxGroup, error) {
	const query = `
		INSERT INTO sfx_groups (name, category, description, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query, g.Name, g.Category, g.Description, g.Enabled).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sfx group: %w", err)
	}
	return g, nil
}

// UpdateGroup replaces a group's fields.
func (r *SfxRepository) UpdateGroup(ctx context.Context, g *model.SfxGroup) error {
	const query = `
		UPDATE sfx_groups
		SET name = $2, category = $3, description = $4, enabled = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, g.ID, g.Name, g.Category, g.Description, g.Enabled)
	if err != nil {
		return fmt.Errorf("failed to update sfx group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSfxGroupNotFound
	}
	return nil
}

// DeleteGroup removes a group. Its events go with it via ON DELETE CASCADE.
func (r *SfxRepository) DeleteGroup(ctx context.Context, id int64) error {
	const query = `DELETE FROM sfx_groups WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete sfx group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSfxGroupNotFound
	}
	return nil
}

// GetGroupByName retrieves a group by its unique name.
func (r *SfxRepository) GetGroupByName(ctx context.Context, name string) (*model.SfxGroup, error) {
	const query = `SELECT id, name, category, description, enabled FROM sfx_groups WHERE name = $1`

	var g model.SfxGroup
	err := r.pool.QueryRow(ctx, query, name).Scan(&g.ID, &g.Name, &g.Category, &g.Description, &g.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSfxGroupNotFound
		}
		return nil, fmt.Errorf("failed to get sfx group: %w", err)
	}
	return &g, nil
}

// GetAllGroups lists every group ordered by ID.
func (r *SfxRepository) GetAllGroups(ctx context.Context) ([]*model.SfxGroup, error) {
	const query = `SELECT id, name, category, description, enabled FROM sfx_groups ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sfx groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.SfxGroup
	for rows.Next() {
		var g model.SfxGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Category, &g.Description, &g.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan sfx group: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sfx groups: %w", err)
	}
	return groups, nil
}

const sfxEventColumns = `id, group_id, asset_hash, name, volume, cost, cooldown_seconds, output_device`

func scanSfxEvent(row pgx.Row) (*model.SfxEvent, error) {
	var e model.SfxEvent
	err := row.Scan(&e.ID, &e.GroupID, &e.AssetHash, &e.Name, &e.Volume, &e.Cost, &e.CooldownSeconds, &e.OutputDevice)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts a sound-effect event and returns it with its ID.
func (r *SfxRepository) CreateEvent(ctx context.Context, e *model.SfxEvent) (*model.SfxEvent, error) {
	const query = `
		INSERT INTO sfx_event (group_id, asset_hash, name, volume, cost, cooldown_seconds, output_device)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		e.GroupID, e.AssetHash, e.Name, e.Volume, e.Cost, e.CooldownSeconds, e.OutputDevice,
	).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sfx event: %w", err)
	}
	return e, nil
}

// UpdateEvent replaces a sound-effect event's fields.
func (r *SfxRepository) UpdateEvent(ctx context.Context, e *model.SfxEvent) error {
	const query = `
		UPDATE sfx_event
		SET group_id = $2, asset_hash = $3, name = $4, volume = $5,
		    cost = $6, cooldown_seconds = $7, output_device = $8
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		e.ID, e.GroupID, e.AssetHash, e.Name, e.Volume, e.Cost, e.CooldownSeconds, e.OutputDevice)
	if err != nil {
		return fmt.Errorf("failed to update sfx event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSfxEventNotFound
	}
	return nil
}

// DeleteEvent removes a sound-effect event.
func (r *SfxRepository) DeleteEvent(ctx context.Context, id int64) error {
	const query = `DELETE FROM sfx_event WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete sfx event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSfxEventNotFound
	}
	return nil
}

// GetEventByName retrieves an event by its unique name.
func (r *SfxRepository) GetEventByName(ctx context.Context, name string) (*model.SfxEvent, error) {
	query := `SELECT ` + sfxEventColumns + ` FROM sfx_event WHERE name = $1`

	e, err := scanSfxEvent(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSfxEventNotFound
		}
		return nil, fmt.Errorf("failed to get sfx event: %w", err)
	}
	return e, nil
}

// GetEventsByGroup lists a group's events ordered by name.
func (r *SfxRepository) GetEventsByGroup(ctx context.Context, groupID int64) ([]*model.SfxEvent, error) {
	query := `SELECT ` + sfxEventColumns + ` FROM sfx_event WHERE group_id = $1 ORDER BY name`

	return r.listEvents(ctx, query, groupID)
}

// GetAllEvents lists every event ordered by name.
func (r *SfxRepository) GetAllEvents(ctx context.Context) ([]*model.SfxEvent, error) {
	query := `SELECT ` + sfxEventColumns + ` FROM sfx_event ORDER BY name`

	return r.listEvents(ctx, query)
}

func (r *SfxRepository) listEvents(ctx context.Context, query string, args ...any) ([]*model.SfxEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sfx events: %w", err)
	}
	defer rows.Close()

	var events []*model.SfxEvent
	for rows.Next() {
		e, err := scanSfxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sfx event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sfx events: %w", err)
	}
	return events, nil
}

// ReplaceAll swaps the entire sound-effect catalog in one transaction:
// groups, events and the asset index are cleared and rebuilt from the given
// snapshot. Used by catalog import.
func (r *SfxRepository) ReplaceAll(ctx context.Context, groups []*model.SfxGroup, events []*model.SfxEvent, assets []*model.SfxAsset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin sfx replace: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM sfx_event`,
		`DELETE FROM sfx_groups`,
		`DELETE FROM sfx`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear sfx tables: %w", err)
		}
	}

	for _, asset := range assets {
		_, err := tx.Exec(ctx,
			`INSERT INTO sfx (content_hash, file_path) VALUES ($1, $2)`,
			asset.ContentHash, asset.FilePath)
		if err != nil {
			return fmt.Errorf("failed to insert sfx asset: %w", err)
		}
	}

	// Old group IDs are not preserved; events follow their group by the
	// snapshot's ordering.
	idMap := make(map[int64]int64, len(groups))
	for _, g := range groups {
		var newID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO sfx_groups (name, category, description, enabled) VALUES ($1, $2, $3, $4) RETURNING id`,
			g.Name, g.Category, g.Description, g.Enabled).Scan(&newID)
		if err != nil {
			return fmt.Errorf("failed to insert sfx group: %w", err)
		}
		idMap[g.ID] = newID
	}

	for _, e := range events {
		groupID, ok := idMap[e.GroupID]
		if !ok {
			return fmt.Errorf("sfx event %q references unknown group %d", e.Name, e.GroupID)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO sfx_event (group_id, asset_hash, name, volume, cost, cooldown_seconds, output_device)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			groupID, e.AssetHash, e.Name, e.Volume, e.Cost, e.CooldownSeconds, e.OutputDevice)
		if err != nil {
			return fmt.Errorf("failed to insert sfx event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sfx replace: %w", err)
	}
	return nil
}
