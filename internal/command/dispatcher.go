package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/internal/collection"
	"github.com/karaoke-room-system/internal/room"
	"github.com/karaoke-room-system/internal/youtube"
	"github.com/karaoke-room-system/pkg/models"
)

const defaultAddedBy = "Guest"

var (
	ErrInvalidURL          = errors.New("invalid YouTube URL")
	ErrSongNotFound        = errors.New("song not found")
	ErrReorderFailed       = errors.New("failed to reorder queue")
	ErrSongNotInCollection = errors.New("song not found in collection")
)

type MetadataResolver interface {
	Resolve(ctx context.Context, videoID string) youtube.Metadata
}

// Broadcaster receives every post-mutation snapshot. full includes personal
// collections and is meant for the host only.
type Broadcaster interface {
	BroadcastState(ctx context.Context, full, public models.RoomState)
}

// handlerFunc applies one command. changed reports whether a snapshot must be
// broadcast.
type handlerFunc func(ctx context.Context, cmd Command) (changed bool, err error)

type Dispatcher struct {
	rooms    *room.Manager
	store    *collection.Store
	resolver MetadataResolver
	logger   *zap.Logger

	mu           sync.RWMutex
	broadcasters []Broadcaster

	// broadcastMu keeps snapshots leaving in the order they were taken.
	broadcastMu sync.Mutex

	handlers map[Type]handlerFunc
}

func NewDispatcher(rooms *room.Manager, store *collection.Store, resolver MetadataResolver, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		rooms:    rooms,
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
	d.handlers = map[Type]handlerFunc{
		Play:       d.engineOp(func(s *room.Service, _ Command) { s.Play() }),
		Pause:      d.engineOp(func(s *room.Service, _ Command) { s.Pause() }),
		Skip:       d.engineOp(func(s *room.Service, _ Command) { s.Skip() }),
		Seek:       d.engineOp(func(s *room.Service, c Command) { s.Seek(c.Time) }),
		SetVolume:  d.engineOp(func(s *room.Service, c Command) { s.SetVolume(c.Volume) }),
		ToggleMute: d.engineOp(func(s *room.Service, _ Command) { s.ToggleMute() }),

		AddSong:          d.addSong,
		RemoveSong:       d.removeSong,
		ReorderQueue:     d.reorderQueue,
		MoveSongUp:       d.move((*room.Service).MoveSongUp),
		MoveSongDown:     d.move((*room.Service).MoveSongDown),
		MoveSongToTop:    d.move((*room.Service).MoveSongToTop),
		MoveSongToBottom: d.move((*room.Service).MoveSongToBottom),

		SetDisplayName: d.setDisplayName,
		Ping:           func(context.Context, Command) (bool, error) { return false, nil },

		PlaylistAdd:             d.playlistAdd,
		PlaylistRemove:          d.playlistRemove,
		PlaylistToQueue:         d.playlistToQueue,
		CreateCollection:        d.createCollection,
		DeleteCollection:        d.deleteCollection,
		RenameCollection:        d.renameCollection,
		SetCollectionVisibility: d.setCollectionVisibility,
		ImportCollection:        d.importCollection,
	}
	return d
}

func (d *Dispatcher) AddBroadcaster(b Broadcaster) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broadcasters = append(d.broadcasters, b)
}

// Dispatch applies cmd to the current room. On success it broadcasts the new
// state if anything changed; on failure nothing is broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) error {
	handler, ok := d.handlers[cmd.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	changed, err := handler(ctx, cmd)
	if err != nil {
		d.logger.Warn("command failed",
			zap.String("type", string(cmd.Type)),
			zap.Error(err))
		return err
	}
	if changed {
		d.Broadcast(ctx)
	}
	return nil
}

func (d *Dispatcher) DispatchRaw(ctx context.Context, data []byte) error {
	cmd, err := Decode(data)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, cmd)
}

// PlayerUpdate is progress reported by the embedded player. Status strings
// the engine does not model, such as "buffering", leave the status as is.
type PlayerUpdate struct {
	Status      *string  `json:"status"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
}

func (d *Dispatcher) UpdatePlayer(ctx context.Context, u PlayerUpdate) {
	update := room.PlayerUpdate{CurrentTime: u.CurrentTime, Duration: u.Duration}
	if u.Status != nil {
		if status, ok := models.ParsePlayerStatus(*u.Status); ok {
			update.Status = &status
		}
	}
	d.rooms.Current().UpdatePlayer(update)
	d.Broadcast(ctx)
}

// SyncPlaylists pushes the store's collections into the room and broadcasts.
func (d *Dispatcher) SyncPlaylists(ctx context.Context) {
	d.rooms.Current().SyncPlaylists(d.store.All())
	d.Broadcast(ctx)
}

// Broadcast sends the current snapshot to every broadcaster. Concurrent calls
// are serialized so a stale snapshot never lands after a newer one.
func (d *Dispatcher) Broadcast(ctx context.Context) {
	d.broadcastMu.Lock()
	defer d.broadcastMu.Unlock()

	full, public := d.rooms.Current().Snapshots()

	d.mu.RLock()
	broadcasters := append([]Broadcaster(nil), d.broadcasters...)
	d.mu.RUnlock()

	for _, b := range broadcasters {
		b.BroadcastState(ctx, full, public)
	}
}

// ResolveSong turns a link into a new Song. Metadata is fetched before any
// lock is taken.
func (d *Dispatcher) ResolveSong(ctx context.Context, sourceURL, addedBy string) (models.Song, error) {
	videoID, ok := youtube.ExtractVideoID(sourceURL)
	if !ok {
		return models.Song{}, ErrInvalidURL
	}
	if addedBy == "" {
		addedBy = defaultAddedBy
	}

	meta := d.resolver.Resolve(ctx, videoID)
	return models.Song{
		ID:           uuid.New().String(),
		SourceID:     videoID,
		Title:        meta.Title,
		Artist:       meta.Artist,
		Duration:     meta.Duration,
		ThumbnailURL: meta.ThumbnailURL,
		AddedBy:      addedBy,
		AddedAt:      time.Now().UnixMilli(),
	}, nil
}

func (d *Dispatcher) engineOp(fn func(s *room.Service, cmd Command)) handlerFunc {
	return func(_ context.Context, cmd Command) (bool, error) {
		fn(d.rooms.Current(), cmd)
		return true, nil
	}
}

// move handles the MOVE_SONG_* family. A move that does not apply, such as
// moving the head up, is silently ignored.
func (d *Dispatcher) move(fn func(s *room.Service, songID string) bool) handlerFunc {
	return func(_ context.Context, cmd Command) (bool, error) {
		return fn(d.rooms.Current(), cmd.SongID), nil
	}
}

func (d *Dispatcher) addSong(ctx context.Context, cmd Command) (bool, error) {
	song, err := d.ResolveSong(ctx, cmd.URL(), cmd.AddedBy)
	if err != nil {
		return false, err
	}
	d.rooms.Current().AddSong(song)
	return true, nil
}

func (d *Dispatcher) removeSong(_ context.Context, cmd Command) (bool, error) {
	if !d.rooms.Current().RemoveSong(cmd.SongID) {
		return false, ErrSongNotFound
	}
	return true, nil
}

func (d *Dispatcher) reorderQueue(_ context.Context, cmd Command) (bool, error) {
	if !d.rooms.Current().ReorderQueue(cmd.SongID, cmd.NewIndex) {
		return false, ErrReorderFailed
	}
	return true, nil
}

func (d *Dispatcher) setDisplayName(_ context.Context, cmd Command) (bool, error) {
	d.logger.Info("client set display name", zap.String("name", cmd.Name))
	return false, nil
}

func (d *Dispatcher) playlistAdd(ctx context.Context, cmd Command) (bool, error) {
	song, err := d.ResolveSong(ctx, cmd.URL(), cmd.AddedBy)
	if err != nil {
		return false, err
	}

	target := cmd.CollectionID
	if target == "" {
		target = d.store.GetOrCreateDefaultCollection()
	}
	if !d.store.AddToCollection(target, song) {
		return false, collection.ErrCollectionNotFound
	}
	return d.syncLocal(), nil
}

func (d *Dispatcher) playlistRemove(_ context.Context, cmd Command) (bool, error) {
	if !d.store.RemoveFromCollection(cmd.CollectionID, cmd.SongID) {
		return false, ErrSongNotInCollection
	}
	return d.syncLocal(), nil
}

func (d *Dispatcher) playlistToQueue(_ context.Context, cmd Command) (bool, error) {
	song, ok := d.store.CopyForQueue(cmd.CollectionID, cmd.SongID)
	if !ok {
		return false, ErrSongNotInCollection
	}
	d.rooms.Current().AddSong(song)
	return true, nil
}

func (d *Dispatcher) createCollection(_ context.Context, cmd Command) (bool, error) {
	d.store.CreateCollection(cmd.Name, models.ParseVisibility(cmd.Visibility))
	return d.syncLocal(), nil
}

func (d *Dispatcher) deleteCollection(_ context.Context, cmd Command) (bool, error) {
	if !d.store.DeleteCollection(cmd.CollectionID) {
		return false, collection.ErrCollectionNotFound
	}
	return d.syncLocal(), nil
}

func (d *Dispatcher) renameCollection(_ context.Context, cmd Command) (bool, error) {
	if !d.store.RenameCollection(cmd.CollectionID, cmd.Name) {
		return false, collection.ErrCollectionNotFound
	}
	return d.syncLocal(), nil
}

func (d *Dispatcher) setCollectionVisibility(_ context.Context, cmd Command) (bool, error) {
	if !d.store.SetVisibility(cmd.CollectionID, models.ParseVisibility(cmd.Visibility)) {
		return false, collection.ErrCollectionNotFound
	}
	return d.syncLocal(), nil
}

func (d *Dispatcher) importCollection(_ context.Context, cmd Command) (bool, error) {
	if _, err := d.store.ImportCollection([]byte(cmd.Data)); err != nil {
		return false, fmt.Errorf("import failed: %w", err)
	}
	return d.syncLocal(), nil
}

// syncLocal refreshes the room's collection cache; Dispatch broadcasts after.
func (d *Dispatcher) syncLocal() bool {
	d.rooms.Current().SyncPlaylists(d.store.All())
	return true
}
