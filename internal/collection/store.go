package collection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

const DefaultCollectionName = "My Playlist"

var ErrCollectionNotFound = errors.New("collection not found")

// Persister is the durable backing of the store. Save always receives the
// complete collection set.
type Persister interface {
	Load() ([]models.PlaylistCollection, error)
	Save(collections []models.PlaylistCollection) error
}

// Store owns the user's song collections. They outlive any room. Every
// mutation is written through to the persister before the lock is released.
type Store struct {
	mu          sync.Mutex
	collections []models.PlaylistCollection
	persister   Persister
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

func NewStore(persister Persister, logger *zap.Logger) (*Store, error) {
	s := &Store{
		persister: persister,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}

	loaded, err := persister.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	s.collections = loaded
	if s.collections == nil {
		s.collections = []models.PlaylistCollection{}
	}
	return s, nil
}

func (s *Store) CreateCollection(name string, visibility models.Visibility) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(name, visibility, nil)
}

func (s *Store) DeleteCollection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexLocked(id)
	if pos < 0 {
		return false
	}
	s.collections = append(s.collections[:pos], s.collections[pos+1:]...)
	s.persistLocked()
	return true
}

func (s *Store) RenameCollection(id, name string) bool {
	return s.update(id, func(c *models.PlaylistCollection) bool {
		c.Name = name
		return true
	})
}

func (s *Store) SetVisibility(id string, visibility models.Visibility) bool {
	return s.update(id, func(c *models.PlaylistCollection) bool {
		c.Visibility = visibility
		return true
	})
}

func (s *Store) AddToCollection(id string, song models.Song) bool {
	return s.update(id, func(c *models.PlaylistCollection) bool {
		c.Songs = append(c.Songs, song)
		return true
	})
}

func (s *Store) RemoveFromCollection(id, songID string) bool {
	return s.update(id, func(c *models.PlaylistCollection) bool {
		for i, song := range c.Songs {
			if song.ID == songID {
				c.Songs = append(c.Songs[:i], c.Songs[i+1:]...)
				return true
			}
		}
		return false
	})
}

// CopyForQueue returns a new instance of a collection song for the room
// queue. The collection itself is not modified.
func (s *Store) CopyForQueue(id, songID string) (models.Song, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexLocked(id)
	if pos < 0 {
		return models.Song{}, false
	}
	for _, song := range s.collections[pos].Songs {
		if song.ID == songID {
			return s.remintLocked(song), true
		}
	}
	return models.Song{}, false
}

// GetOrCreateDefaultCollection returns the first collection, creating the
// default one when the store is empty.
func (s *Store) GetOrCreateDefaultCollection() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.collections) > 0 {
		return s.collections[0].ID
	}
	return s.createLocked(DefaultCollectionName, models.VisibilityPublic, nil)
}

func (s *Store) ImportCollection(data []byte) (string, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	songs := make([]models.Song, 0, len(env.Collection.Songs))
	for _, song := range env.Collection.Songs {
		songs = append(songs, s.remintLocked(song))
	}
	name := s.uniqueNameLocked(env.Collection.Name)
	return s.createLocked(name, models.ParseVisibility(string(env.Collection.Visibility)), songs), nil
}

func (s *Store) ExportCollection(id string) ([]byte, error) {
	c, ok := s.Get(id)
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return encodeEnvelope(c)
}

// All returns a deep copy of every collection in creation order.
func (s *Store) All() []models.PlaylistCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.PlaylistCollection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Clone())
	}
	return out
}

func (s *Store) Get(id string) (models.PlaylistCollection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexLocked(id)
	if pos < 0 {
		return models.PlaylistCollection{}, false
	}
	return s.collections[pos].Clone(), true
}

func (s *Store) update(id string, fn func(c *models.PlaylistCollection) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexLocked(id)
	if pos < 0 {
		return false
	}
	if !fn(&s.collections[pos]) {
		return false
	}
	s.collections[pos].UpdatedAt = s.now().UnixMilli()
	s.persistLocked()
	return true
}

func (s *Store) createLocked(name string, visibility models.Visibility, songs []models.Song) string {
	if songs == nil {
		songs = []models.Song{}
	}
	ts := s.now().UnixMilli()
	c := models.PlaylistCollection{
		ID:         s.newID(),
		Name:       name,
		Visibility: visibility,
		Songs:      songs,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	s.collections = append(s.collections, c)
	s.persistLocked()
	return c.ID
}

func (s *Store) remintLocked(song models.Song) models.Song {
	song.ID = s.newID()
	song.AddedAt = s.now().UnixMilli()
	return song
}

func (s *Store) uniqueNameLocked(name string) string {
	taken := make(map[string]bool, len(s.collections))
	for _, c := range s.collections {
		taken[c.Name] = true
	}
	if !taken[name] {
		return name
	}

	candidate := name + " (Imported)"
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (Imported %d)", name, n)
	}
	return candidate
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.collections {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked keeps the in-memory change when the write fails. The next
// successful save carries it to disk.
func (s *Store) persistLocked() {
	if err := s.persister.Save(s.collections); err != nil {
		s.logger.Error("failed to persist collections",
			zap.Int("count", len(s.collections)),
			zap.Error(err))
	}
}
