package room

import (
	"sync/atomic"

	"github.com/karaoke-room-system/pkg/models"
)

// PendingRoomID names the engine that exists before the host opens a room.
const PendingRoomID = "pending"

// Manager holds the single live engine of this host. Opening a new room swaps
// in a fresh Service; the previous one is never mutated again by new callers.
type Manager struct {
	current atomic.Pointer[Service]
}

func NewManager(hostIdentity string, playlists []models.PlaylistCollection) *Manager {
	m := &Manager{}
	m.current.Store(NewService(PendingRoomID, hostIdentity, playlists))
	return m
}

func (m *Manager) Current() *Service {
	return m.current.Load()
}

func (m *Manager) Replace(roomID, hostIdentity string, playlists []models.PlaylistCollection) *Service {
	svc := NewService(roomID, hostIdentity, playlists)
	m.current.Store(svc)
	return svc
}
