package command

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karaoke-room-system/internal/collection"
)

// Handler exposes the dispatcher to the host UI, which talks HTTP rather than
// holding a signaling socket of its own.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	room := r.Group("/room")
	{
		room.POST("/commands", h.dispatch)
		room.POST("/player", h.updatePlayer)
	}
}

func (h *Handler) dispatch(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.DispatchRaw(c.Request.Context(), data); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.dispatcher.rooms.Current().Snapshot())
}

func (h *Handler) updatePlayer(c *gin.Context) {
	var req PlayerUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.dispatcher.UpdatePlayer(c.Request.Context(), req)
	c.Status(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSongNotFound), errors.Is(err, ErrSongNotInCollection), errors.Is(err, collection.ErrCollectionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
