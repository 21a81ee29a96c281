package sfx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twitch-economy-bot/internal/model"
)

// fakeCatalog is an in-memory Catalog for store tests.
type fakeCatalog struct {
	assets map[string]*model.SfxAsset
	groups []*model.SfxGroup
	events []*model.SfxEvent
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{assets: make(map[string]*model.SfxAsset)}
}

func (c *fakeCatalog) UpsertAsset(_ context.Context, asset *model.SfxAsset) error {
	if _, exists := c.assets[asset.ContentHash]; !exists {
		c.assets[asset.ContentHash] = asset
	}
	return nil
}

func (c *fakeCatalog) GetAsset(_ context.Context, contentHash string) (*model.SfxAsset, error) {
	asset, exists := c.assets[contentHash]
	if !exists {
		return nil, errors.New("not found")
	}
	return asset, nil
}

func (c *fakeCatalog) GetAllAssets(_ context.Context) ([]*model.SfxAsset, error) {
	all := make([]*model.SfxAsset, 0, len(c.assets))
	for _, asset := range c.assets {
		all = append(all, asset)
	}
	return all, nil
}

func (c *fakeCatalog) GetAllGroups(_ context.Context) ([]*model.SfxGroup, error) {
	return c.groups, nil
}

func (c *fakeCatalog) GetAllEvents(_ context.Context) ([]*model.SfxEvent, error) {
	return c.events, nil
}

func (c *fakeCatalog) ReplaceAll(_ context.Context, groups []*model.SfxGroup, events []*model.SfxEvent, assets []*model.SfxAsset) error {
	c.groups = groups
	c.events = events
	c.assets = make(map[string]*model.SfxAsset, len(assets))
	for _, asset := range assets {
		c.assets[asset.ContentHash] = asset
	}
	return nil
}

func TestStore_Ingest(t *testing.T) {
	catalog := newFakeCatalog()
	store, err := NewStore(catalog, t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	asset, err := store.Ingest(ctx, "boom.mp3", []byte("audio-bytes"))
	require.NoError(t, err)
	assert.Len(t, asset.ContentHash, 64)
	assert.Equal(t, ".mp3", filepath.Ext(asset.FilePath))

	data, err := os.ReadFile(asset.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
}

func TestStore_Ingest_DedupsByContent(t *testing.T) {
	catalog := newFakeCatalog()
	store, err := NewStore(catalog, t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.Ingest(ctx, "boom.mp3", []byte("same-bytes"))
	require.NoError(t, err)

	// Same bytes under a different name resolve to the existing asset.
	second, err := store.Ingest(ctx, "copy-of-boom.wav", []byte("same-bytes"))
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Len(t, catalog.assets, 1)

	// Different bytes get their own asset.
	third, err := store.Ingest(ctx, "boom.mp3", []byte("other-bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ContentHash, third.ContentHash)
	assert.Len(t, catalog.assets, 2)
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()

	source := newFakeCatalog()
	sourceStore, err := NewStore(source, t.TempDir())
	require.NoError(t, err)

	asset, err := sourceStore.Ingest(ctx, "airhorn.mp3", []byte("airhorn-bytes"))
	require.NoError(t, err)
	source.groups = []*model.SfxGroup{{ID: 1, Name: "memes", Enabled: true}}
	source.events = []*model.SfxEvent{{
		ID: 1, GroupID: 1, AssetHash: asset.ContentHash,
		Name: "airhorn", Volume: 80, Cost: 100, CooldownSeconds: 30,
	}}

	var archive bytes.Buffer
	require.NoError(t, sourceStore.Export(ctx, &archive))

	target := newFakeCatalog()
	target.groups = []*model.SfxGroup{{ID: 9, Name: "stale", Enabled: true}}
	targetStore, err := NewStore(target, t.TempDir())
	require.NoError(t, err)

	raw := archive.Bytes()
	require.NoError(t, targetStore.Import(ctx, bytes.NewReader(raw), int64(len(raw))))

	// Import is a full replace: the stale group is gone.
	require.Len(t, target.groups, 1)
	assert.Equal(t, "memes", target.groups[0].Name)
	require.Len(t, target.events, 1)
	assert.Equal(t, "airhorn", target.events[0].Name)
	require.Len(t, target.assets, 1)

	restored := target.assets[asset.ContentHash]
	require.NotNil(t, restored)
	data, err := os.ReadFile(restored.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("airhorn-bytes"), data)
}

func TestStore_Import_RejectsGarbage(t *testing.T) {
	store, err := NewStore(newFakeCatalog(), t.TempDir())
	require.NoError(t, err)

	raw := []byte("not a zip archive")
	err = store.Import(context.Background(), bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrBadArchive)
}

func TestStore_Import_RejectsTamperedAsset(t *testing.T) {
	ctx := context.Background()

	source := newFakeCatalog()
	sourceStore, err := NewStore(source, t.TempDir())
	require.NoError(t, err)
	asset, err := sourceStore.Ingest(ctx, "boom.mp3", []byte("original"))
	require.NoError(t, err)

	// Corrupt the file on disk after ingest, then export.
	require.NoError(t, os.WriteFile(asset.FilePath, []byte("tampered"), 0o644))
	var archive bytes.Buffer
	require.NoError(t, sourceStore.Export(ctx, &archive))

	target, err := NewStore(newFakeCatalog(), t.TempDir())
	require.NoError(t, err)
	raw := archive.Bytes()
	err = target.Import(ctx, bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrHashMismatch)
}
