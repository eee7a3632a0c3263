package room

import (
	"sync"
	"time"

	"github.com/karaoke-room-system/pkg/models"
)

const (
	defaultVolume = 80
	maxVolume     = 100
)

// PlayerUpdate carries progress reported by the embedded player. Nil fields
// are left untouched.
type PlayerUpdate struct {
	Status      *models.PlayerStatus
	CurrentTime *float64
	Duration    *float64
}

// Service owns the authoritative RoomState of one room. Every mutation holds
// the write lock for its full duration, so mutations are totally ordered and
// snapshots never observe a partial update.
type Service struct {
	mu    sync.RWMutex
	state models.RoomState
	now   func() time.Time
}

func NewService(roomID, hostIdentity string, playlists []models.PlaylistCollection) *Service {
	return newServiceWithClock(roomID, hostIdentity, playlists, time.Now)
}

func newServiceWithClock(roomID, hostIdentity string, playlists []models.PlaylistCollection, now func() time.Time) *Service {
	ts := now().UnixMilli()
	return &Service{
		now: now,
		state: models.RoomState{
			RoomID:           roomID,
			HostIdentity:     hostIdentity,
			ConnectedClients: []models.ConnectedClient{},
			Player: models.PlayerState{
				Status: models.StatusIdle,
				Volume: defaultVolume,
			},
			Queue:     []models.Song{},
			Playlists: clonePlaylists(playlists),
			CreatedAt: ts,
			UpdatedAt: ts,
		},
	}
}

func (s *Service) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RoomID
}

func (s *Service) HostIdentity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.HostIdentity
}

// AddSong makes song current when nothing is playing, otherwise queues it.
func (s *Service) AddSong(song models.Song) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Player.CurrentSong == nil {
		s.startLocked(song)
	} else {
		s.state.Queue = append(s.state.Queue, song)
	}
	s.touchLocked()
}

func (s *Service) RemoveSong(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.indexLocked(songID)
	if pos < 0 {
		return false
	}
	s.state.Queue = append(s.state.Queue[:pos], s.state.Queue[pos+1:]...)
	s.touchLocked()
	return true
}

// ReorderQueue moves songID to newIndex. It fails when the song is not queued
// or newIndex is outside the queue.
func (s *Service) ReorderQueue(songID string, newIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(songID, func(pos, n int) (int, bool) {
		return newIndex, newIndex >= 0 && newIndex < n
	})
}

func (s *Service) MoveSongUp(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(songID, func(pos, n int) (int, bool) {
		return pos - 1, pos > 0
	})
}

func (s *Service) MoveSongDown(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(songID, func(pos, n int) (int, bool) {
		return pos + 1, pos < n-1
	})
}

func (s *Service) MoveSongToTop(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(songID, func(pos, n int) (int, bool) {
		return 0, pos > 0
	})
}

func (s *Service) MoveSongToBottom(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(songID, func(pos, n int) (int, bool) {
		return n - 1, pos < n-1
	})
}

// Skip drops the current song for good and advances to the head of the queue.
func (s *Service) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Queue) > 0 {
		next := s.state.Queue[0]
		s.state.Queue = s.state.Queue[1:]
		s.startLocked(next)
	} else {
		s.state.Player.CurrentSong = nil
		s.state.Player.CurrentTime = 0
		s.state.Player.Duration = 0
		s.state.Player.Status = models.StatusIdle
	}
	s.touchLocked()
}

// Play resumes the current song, or loads the head of the queue. With nothing
// to play it leaves the state untouched.
func (s *Service) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Player.CurrentSong != nil:
		s.state.Player.Status = models.StatusPlaying
	case len(s.state.Queue) > 0:
		next := s.state.Queue[0]
		s.state.Queue = s.state.Queue[1:]
		s.startLocked(next)
	default:
		return
	}
	s.touchLocked()
}

func (s *Service) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Player.Status = models.StatusPaused
	s.touchLocked()
}

func (s *Service) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Player.CurrentTime = t
	s.touchLocked()
}

func (s *Service) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > maxVolume {
		volume = maxVolume
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Player.Volume = volume
	s.touchLocked()
}

func (s *Service) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Player.IsMuted = !s.state.Player.IsMuted
	s.touchLocked()
}

func (s *Service) UpdatePlayer(u PlayerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Status != nil {
		s.state.Player.Status = *u.Status
	}
	if u.CurrentTime != nil {
		s.state.Player.CurrentTime = *u.CurrentTime
	}
	if u.Duration != nil {
		s.state.Player.Duration = *u.Duration
	}
	s.touchLocked()
}

// SyncPlaylists replaces the cached collections wholesale.
func (s *Service) SyncPlaylists(collections []models.PlaylistCollection) {
	cp := clonePlaylists(collections)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Playlists = cp
	s.touchLocked()
}

func (s *Service) AddClient(client models.ConnectedClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConnectedClients = append(s.state.ConnectedClients, client)
	s.touchLocked()
}

func (s *Service) RemoveClient(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.ConnectedClients[:0]
	removed := false
	for _, c := range s.state.ConnectedClients {
		if c.ID == clientID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	s.state.ConnectedClients = kept
	if removed {
		s.touchLocked()
	}
	return removed
}

// Snapshot returns a deep copy of the full state, including personal
// collections. Only the host UI should see it.
func (s *Service) Snapshot() models.RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(false)
}

// PublicSnapshot is the view sent to room members: personal collections are
// filtered out.
func (s *Service) PublicSnapshot() models.RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(true)
}

// Snapshots returns both views from the same instant.
func (s *Service) Snapshots() (full, public models.RoomState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked(false), s.copyLocked(true)
}

func (s *Service) startLocked(song models.Song) {
	s.state.Player.CurrentSong = &song
	s.state.Player.Status = models.StatusLoading
	s.state.Player.CurrentTime = 0
	s.state.Player.Duration = float64(song.Duration)
}

func (s *Service) indexLocked(songID string) int {
	for i, song := range s.state.Queue {
		if song.ID == songID {
			return i
		}
	}
	return -1
}

// moveLocked is the single reorder primitive behind every move variant.
// target returns the destination index and whether the move applies.
func (s *Service) moveLocked(songID string, target func(pos, n int) (int, bool)) bool {
	pos := s.indexLocked(songID)
	if pos < 0 {
		return false
	}
	dest, ok := target(pos, len(s.state.Queue))
	if !ok {
		return false
	}

	song := s.state.Queue[pos]
	q := append(s.state.Queue[:pos:pos], s.state.Queue[pos+1:]...)
	q = append(q[:dest], append([]models.Song{song}, q[dest:]...)...)
	s.state.Queue = q
	s.touchLocked()
	return true
}

// touchLocked keeps UpdatedAt monotonic even if the wall clock steps back.
func (s *Service) touchLocked() {
	ts := s.now().UnixMilli()
	if ts > s.state.UpdatedAt {
		s.state.UpdatedAt = ts
	}
}

func (s *Service) copyLocked(publicOnly bool) models.RoomState {
	out := s.state
	out.ConnectedClients = append([]models.ConnectedClient{}, s.state.ConnectedClients...)
	out.Queue = append([]models.Song{}, s.state.Queue...)
	if cur := s.state.Player.CurrentSong; cur != nil {
		song := *cur
		out.Player.CurrentSong = &song
	}

	out.Playlists = make([]models.PlaylistCollection, 0, len(s.state.Playlists))
	for _, c := range s.state.Playlists {
		if publicOnly && c.Visibility != models.VisibilityPublic {
			continue
		}
		out.Playlists = append(out.Playlists, c.Clone())
	}
	return out
}

func clonePlaylists(in []models.PlaylistCollection) []models.PlaylistCollection {
	out := make([]models.PlaylistCollection, 0, len(in))
	for _, c := range in {
		out = append(out, c.Clone())
	}
	return out
}
