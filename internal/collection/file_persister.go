package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

const (
	collectionsFile = "playlists.json"
	legacyFile      = "playlist.json"
)

// FilePersister keeps the collection set as a JSON array under dataDir.
type FilePersister struct {
	dataDir string
	logger  *zap.Logger
}

func NewFilePersister(dataDir string, logger *zap.Logger) *FilePersister {
	return &FilePersister{dataDir: dataDir, logger: logger}
}

func (p *FilePersister) Load() ([]models.PlaylistCollection, error) {
	data, err := os.ReadFile(filepath.Join(p.dataDir, collectionsFile))
	if err == nil {
		var collections []models.PlaylistCollection
		if err := json.Unmarshal(data, &collections); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", collectionsFile, err)
		}
		return collections, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", collectionsFile, err)
	}
	return p.upgradeLegacy()
}

// upgradeLegacy wraps the old flat song list into one public collection and
// rewrites it in the current format.
func (p *FilePersister) upgradeLegacy() ([]models.PlaylistCollection, error) {
	data, err := os.ReadFile(filepath.Join(p.dataDir, legacyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PlaylistCollection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", legacyFile, err)
	}

	var songs []models.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", legacyFile, err)
	}
	if songs == nil {
		songs = []models.Song{}
	}

	ts := time.Now().UnixMilli()
	collections := []models.PlaylistCollection{{
		ID:         uuid.New().String(),
		Name:       DefaultCollectionName,
		Visibility: models.VisibilityPublic,
		Songs:      songs,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}}
	if err := p.Save(collections); err != nil {
		return nil, err
	}

	p.logger.Info("upgraded legacy playlist",
		zap.String("dir", p.dataDir),
		zap.Int("songs", len(songs)))
	return collections, nil
}

// Save replaces the file atomically so a crash never leaves a torn array.
func (p *FilePersister) Save(collections []models.PlaylistCollection) error {
	data, err := json.MarshalIndent(collections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collections: %w", err)
	}
	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(p.dataDir, collectionsFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write collections: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write collections: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(p.dataDir, collectionsFile)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", collectionsFile, err)
	}
	return nil
}
