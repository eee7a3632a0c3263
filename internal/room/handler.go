package room

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/internal/session"
	"github.com/karaoke-room-system/pkg/models"
)

// PlaylistSource supplies the collections a newly opened room starts with.
type PlaylistSource interface {
	All() []models.PlaylistCollection
}

// HostInfo describes where this host is reachable on the LAN.
type HostInfo interface {
	Port() int
	LocalURL() string
}

type Handler struct {
	rooms     *Manager
	playlists PlaylistSource
	host      HostInfo
	logger    *zap.Logger
}

func NewHandler(rooms *Manager, playlists PlaylistSource, host HostInfo, logger *zap.Logger) *Handler {
	return &Handler{rooms: rooms, playlists: playlists, host: host, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/rooms", h.openRoom)
	r.GET("/room", h.getRoom)
	r.GET("/room/public", h.getPublicRoom)
	r.GET("/host", h.getHost)
}

type OpenRoomRequest struct {
	HostIdentity string `json:"host_identity"`
}

type OpenRoomResponse struct {
	RoomID         string `json:"room_id"`
	JoinSecret     string `json:"join_secret"`
	JoinSecretHash string `json:"join_secret_hash"`
	JoinURL        string `json:"join_url,omitempty"`
}

// openRoom starts a fresh engine for a new room. The host UI then announces
// the room over the signaling socket with the returned hash.
func (h *Handler) openRoom(c *gin.Context) {
	// the body is optional
	var req OpenRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hostIdentity := req.HostIdentity
	if hostIdentity == "" {
		hostIdentity = h.rooms.Current().HostIdentity()
	}

	roomID := session.GenerateRoomID()
	secret := session.GenerateJoinSecret()
	h.rooms.Replace(roomID, hostIdentity, h.playlists.All())

	h.logger.Info("room opened", zap.String("room_id", roomID), zap.String("host_identity", hostIdentity))

	resp := OpenRoomResponse{
		RoomID:         roomID,
		JoinSecret:     secret,
		JoinSecretHash: session.HashSecret(secret),
	}
	if h.host != nil && h.host.Port() != 0 {
		resp.JoinURL = joinURL(h.host.LocalURL(), roomID, secret)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) getRoom(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Current().Snapshot())
}

func (h *Handler) getPublicRoom(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Current().PublicSnapshot())
}

func (h *Handler) getHost(c *gin.Context) {
	if h.host == nil || h.host.Port() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server not started"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"port": h.host.Port(),
		"url":  h.host.LocalURL(),
	})
}

func joinURL(base, roomID, secret string) string {
	q := url.Values{}
	q.Set("room", roomID)
	q.Set("secret", secret)
	return fmt.Sprintf("%s/?%s", base, q.Encode())
}
