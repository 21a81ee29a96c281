package sfx

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/model"
)

// Errors for catalog operations.
var (
	ErrBadArchive   = errors.New("invalid sfx archive")
	ErrHashMismatch = errors.New("asset bytes do not match recorded hash")
)

const manifestName = "manifest.json"

// Catalog is the persistence boundary the store needs.
type Catalog interface {
	UpsertAsset(ctx context.Context, asset *model.SfxAsset) error
	GetAsset(ctx context.Context, contentHash string) (*model.SfxAsset, error)
	GetAllAssets(ctx context.Context) ([]*model.SfxAsset, error)
	GetAllGroups(ctx context.Context) ([]*model.SfxGroup, error)
	GetAllEvents(ctx context.Context) ([]*model.SfxEvent, error)
	ReplaceAll(ctx context.Context, groups []*model.SfxGroup, events []*model.SfxEvent, assets []*model.SfxAsset) error
}

// Store keeps audio files content-addressed on disk with their index in the
// catalog. Identical bytes are stored once no matter how often or under what
// name they are ingested.
type Store struct {
	catalog  Catalog
	assetDir string
}

// NewStore creates a store writing into assetDir, creating it if missing.
func NewStore(catalog Catalog, assetDir string) (*Store, error) {
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset dir: %w", err)
	}
	return &Store{catalog: catalog, assetDir: assetDir}, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ingest stores audio bytes under their content hash and returns the asset.
// Re-ingesting identical bytes returns the existing asset without touching
// the disk; the original file extension is kept for the player's sake.
func (s *Store) Ingest(ctx context.Context, filename string, data []byte) (*model.SfxAsset, error) {
	hash := hashBytes(data)

	if existing, err := s.catalog.GetAsset(ctx, hash); err == nil {
		return existing, nil
	}

	path := filepath.Join(s.assetDir, hash+filepath.Ext(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}

	asset := &model.SfxAsset{ContentHash: hash, FilePath: path}
	if err := s.catalog.UpsertAsset(ctx, asset); err != nil {
		return nil, err
	}

	log.Info().Str("hash", hash).Str("file", filename).Msg("sfx asset ingested")
	return asset, nil
}

// Prune drops assets no event references and unlinks their files.
type pruner interface {
	DeleteOrphanAssets(ctx context.Context) ([]string, error)
}

// Prune removes unreferenced assets from the catalog and the disk, when the
// catalog supports it.
func (s *Store) Prune(ctx context.Context) (int, error) {
	p, ok := s.catalog.(pruner)
	if !ok {
		return 0, nil
	}
	paths, err := p.DeleteOrphanAssets(ctx)
	if err != nil {
		return 0, err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("orphan asset file not removed")
		}
	}
	return len(paths), nil
}

type manifest struct {
	Groups []*model.SfxGroup `json:"groups"`
	Events []*model.SfxEvent `json:"events"`
	Assets []manifestAsset   `json:"assets"`
}

type manifestAsset struct {
	ContentHash string `json:"content_hash"`
	FileName    string `json:"file_name"`
}

// Export writes the whole catalog as a zip archive: a manifest plus every
// asset file.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	groups, err := s.catalog.GetAllGroups(ctx)
	if err != nil {
		return err
	}
	events, err := s.catalog.GetAllEvents(ctx)
	if err != nil {
		return err
	}
	assets, err := s.catalog.GetAllAssets(ctx)
	if err != nil {
		return err
	}

	m := manifest{Groups: groups, Events: events}
	for _, asset := range assets {
		m.Assets = append(m.Assets, manifestAsset{
			ContentHash: asset.ContentHash,
			FileName:    filepath.Base(asset.FilePath),
		})
	}

	zw := zip.NewWriter(w)
	entry, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	if err := json.NewEncoder(entry).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	for _, asset := range assets {
		data, err := os.ReadFile(asset.FilePath)
		if err != nil {
			return fmt.Errorf("failed to read asset %s: %w", asset.ContentHash, err)
		}
		entry, err := zw.Create("assets/" + filepath.Base(asset.FilePath))
		if err != nil {
			return fmt.Errorf("failed to create asset entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("failed to write asset entry: %w", err)
		}
	}

	return zw.Close()
}

// Import restores a catalog archive, replacing the entire current catalog:
// groups, events and assets are wiped and rebuilt from the manifest, asset
// files are verified against their recorded hashes and written to the asset
// dir.
func (s *Store) Import(ctx context.Context, r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		files[f.Name] = data
	}

	raw, ok := files[manifestName]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrBadArchive, manifestName)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	assets := make([]*model.SfxAsset, 0, len(m.Assets))
	for _, entry := range m.Assets {
		data, ok := files["assets/"+entry.FileName]
		if !ok {
			return fmt.Errorf("%w: missing asset %s", ErrBadArchive, entry.FileName)
		}
		if hashBytes(data) != entry.ContentHash {
			return fmt.Errorf("%w: %s", ErrHashMismatch, entry.FileName)
		}
		path := filepath.Join(s.assetDir, entry.FileName)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write asset: %w", err)
		}
		assets = append(assets, &model.SfxAsset{ContentHash: entry.ContentHash, FilePath: path})
	}

	if err := s.catalog.ReplaceAll(ctx, m.Groups, m.Events, assets); err != nil {
		return err
	}

	log.Info().Int("groups", len(m.Groups)).Int("events", len(m.Events)).
		Int("assets", len(assets)).Msg("sfx catalog imported")
	return nil
}
