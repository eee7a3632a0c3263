package models

import "time"

type PlayerStatus string

const (
	StatusIdle    PlayerStatus = "idle"
	StatusPlaying PlayerStatus = "playing"
	StatusPaused  PlayerStatus = "paused"
	StatusLoading PlayerStatus = "loading"
	StatusError   PlayerStatus = "error"
)

// ParsePlayerStatus maps a status reported by the playback surface. Unknown
// values such as "buffering" or "ended" report false.
func ParsePlayerStatus(s string) (PlayerStatus, bool) {
	switch PlayerStatus(s) {
	case StatusIdle, StatusPlaying, StatusPaused, StatusLoading, StatusError:
		return PlayerStatus(s), true
	}
	return "", false
}

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPersonal Visibility = "personal"
)

// ParseVisibility treats anything other than "personal" as public.
func ParseVisibility(s string) Visibility {
	if Visibility(s) == VisibilityPersonal {
		return VisibilityPersonal
	}
	return VisibilityPublic
}

type Song struct {
	ID           string `json:"id"`
	SourceID     string `json:"sourceId"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Duration     int    `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl"`
	AddedBy      string `json:"addedBy"`
	AddedAt      int64  `json:"addedAt"`
}

type PlayerState struct {
	Status      PlayerStatus `json:"status"`
	CurrentSong *Song        `json:"currentSong"`
	CurrentTime float64      `json:"currentTime"`
	Duration    float64      `json:"duration"`
	Volume      int          `json:"volume"`
	IsMuted     bool         `json:"isMuted"`
}

type ConnectedClient struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ConnectedAt int64  `json:"connectedAt"`
}

type PlaylistCollection struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Songs      []Song     `json:"songs"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with c.
func (c PlaylistCollection) Clone() PlaylistCollection {
	out := c
	out.Songs = append([]Song(nil), c.Songs...)
	if out.Songs == nil {
		out.Songs = []Song{}
	}
	return out
}

type RoomState struct {
	RoomID           string               `json:"roomId"`
	HostIdentity     string               `json:"hostIdentity"`
	ConnectedClients []ConnectedClient    `json:"connectedClients"`
	Player           PlayerState          `json:"player"`
	Queue            []Song               `json:"queue"`
	Playlists        []PlaylistCollection `json:"playlists"`
	CreatedAt        int64                `json:"createdAt"`
	UpdatedAt        int64                `json:"updatedAt"`
}

// RoomSessionMetadata is the signaling view of a room: who hosts it and how
// many clients hold a slot. It never carries playback content.
type RoomSessionMetadata struct {
	RoomID           string    `json:"roomId"`
	HostConnectionID string    `json:"hostConnectionId"`
	HostIdentity     string    `json:"hostIdentity,omitempty"`
	JoinSecretHash   string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	ClientCount      int       `json:"clientCount"`
}

// CollectionSnapshot is the SQL row holding the serialized collection set.
type CollectionSnapshot struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Data      []byte    `json:"data" gorm:"type:longblob"`
	UpdatedAt time.Time `json:"updated_at"`
}
