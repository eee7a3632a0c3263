package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

const (
	MaxClientsPerRoom = 10

	DefaultRoomTTL         = 12 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidToken = errors.New("invalid token")
	ErrRoomFull     = errors.New("room is full")
)

// Registry tracks which rooms exist and how many client slots each has
// handed out. It knows nothing about playback.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*models.RoomSessionMetadata
	order  []string
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*models.RoomSessionMetadata),
		logger: logger,
		now:    time.Now,
	}
}

func (r *Registry) CreateRoom(roomID, hostConnID, joinSecretHash, hostIdentity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		return ErrRoomExists
	}
	r.rooms[roomID] = &models.RoomSessionMetadata{
		RoomID:           roomID,
		HostConnectionID: hostConnID,
		HostIdentity:     hostIdentity,
		JoinSecretHash:   joinSecretHash,
		CreatedAt:        r.now(),
	}
	r.order = append(r.order, roomID)

	r.logger.Info("room created",
		zap.String("room_id", roomID),
		zap.String("host_identity", hostIdentity))
	return nil
}

// TryJoinRoom verifies the secret and claims a client slot atomically, so
// concurrent joiners can never push a room past capacity.
func (r *Registry) TryJoinRoom(roomID, secret string) (models.RoomSessionMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return models.RoomSessionMetadata{}, ErrRoomNotFound
	}
	if !VerifySecret(secret, room.JoinSecretHash) {
		return models.RoomSessionMetadata{}, ErrInvalidToken
	}
	return r.claimLocked(room)
}

// TryJoinRoomWithoutSecret admits through discovery, where the caller never
// saw a secret.
func (r *Registry) TryJoinRoomWithoutSecret(roomID string) (models.RoomSessionMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return models.RoomSessionMetadata{}, ErrRoomNotFound
	}
	return r.claimLocked(room)
}

func (r *Registry) claimLocked(room *models.RoomSessionMetadata) (models.RoomSessionMetadata, error) {
	if room.ClientCount >= MaxClientsPerRoom {
		return models.RoomSessionMetadata{}, ErrRoomFull
	}
	room.ClientCount++
	return *room, nil
}

func (r *Registry) RemoveClient(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok && room.ClientCount > 0 {
		room.ClientCount--
	}
}

func (r *Registry) DeleteRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteLocked(roomID) {
		r.logger.Info("room deleted", zap.String("room_id", roomID))
	}
}

func (r *Registry) FindRoomByHostConnection(connID string) (models.RoomSessionMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if room := r.rooms[id]; room.HostConnectionID == connID {
			return *room, true
		}
	}
	return models.RoomSessionMetadata{}, false
}

// FindFirstJoinableRoom returns the oldest room that still has a free slot.
func (r *Registry) FindFirstJoinableRoom() (models.RoomSessionMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if room := r.rooms[id]; room.ClientCount < MaxClientsPerRoom {
			return *room, true
		}
	}
	return models.RoomSessionMetadata{}, false
}

func (r *Registry) Get(roomID string) (models.RoomSessionMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return models.RoomSessionMetadata{}, false
	}
	return *room, true
}

func (r *Registry) List() []models.RoomSessionMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RoomSessionMetadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.rooms[id])
	}
	return out
}

// Cleanup drops rooms created more than maxAge ago and reports how many went.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var expired []string
	for _, id := range r.order {
		if now.Sub(r.rooms[id].CreatedAt) > maxAge {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.deleteLocked(id)
	}

	if len(expired) > 0 {
		r.logger.Info("cleaned up expired rooms", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunJanitor calls Cleanup every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup(maxAge)
		}
	}
}

func (r *Registry) deleteLocked(roomID string) bool {
	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	delete(r.rooms, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}
