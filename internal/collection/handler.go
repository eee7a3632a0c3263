package collection

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karaoke-room-system/pkg/models"
)

// Dispatcher is the slice of the command dispatcher the collection endpoints
// need: building songs from a URL and pushing collection changes to the room.
type Dispatcher interface {
	ResolveSong(ctx context.Context, sourceURL, addedBy string) (models.Song, error)
	SyncPlaylists(ctx context.Context)
}

type Handler struct {
	store      *Store
	dispatcher Dispatcher
}

func NewHandler(store *Store, dispatcher Dispatcher) *Handler {
	return &Handler{store: store, dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	collections := r.Group("/collections")
	{
		collections.GET("", h.list)
		collections.POST("", h.create)
		collections.POST("/import", h.importCollection)
		collections.GET("/:id", h.get)
		collections.PATCH("/:id", h.update)
		collections.DELETE("/:id", h.remove)
		collections.GET("/:id/export", h.export)
		collections.POST("/:id/songs", h.addSong)
		collections.DELETE("/:id/songs/:songId", h.removeSong)
	}
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.All())
}

func (h *Handler) get(c *gin.Context) {
	collection, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCollectionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, collection)
}

type CreateCollectionRequest struct {
	Name       string `json:"name" binding:"required"`
	Visibility string `json:"visibility"`
}

func (h *Handler) create(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := h.store.CreateCollection(req.Name, models.ParseVisibility(req.Visibility))
	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type UpdateCollectionRequest struct {
	Name       *string `json:"name"`
	Visibility *string `json:"visibility"`
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")

	var req UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil && req.Visibility == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if req.Name != nil && !h.store.RenameCollection(id, *req.Name) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCollectionNotFound.Error()})
		return
	}
	if req.Visibility != nil && !h.store.SetVisibility(id, models.ParseVisibility(*req.Visibility)) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCollectionNotFound.Error()})
		return
	}

	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) remove(c *gin.Context) {
	if !h.store.DeleteCollection(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCollectionNotFound.Error()})
		return
	}
	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.Status(http.StatusNoContent)
}

type AddSongRequest struct {
	SourceURL string `json:"sourceUrl" binding:"required"`
	AddedBy   string `json:"addedBy"`
}

func (h *Handler) addSong(c *gin.Context) {
	id := c.Param("id")

	var req AddSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	song, err := h.dispatcher.ResolveSong(c.Request.Context(), req.SourceURL, req.AddedBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.store.AddToCollection(id, song) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrCollectionNotFound.Error()})
		return
	}

	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.JSON(http.StatusCreated, song)
}

func (h *Handler) removeSong(c *gin.Context) {
	if !h.store.RemoveFromCollection(c.Param("id"), c.Param("songId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "song not found in collection"})
		return
	}
	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) export(c *gin.Context) {
	data, err := h.store.ExportCollection(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handler) importCollection(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.store.ImportCollection(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "import failed: " + err.Error()})
		return
	}

	h.dispatcher.SyncPlaylists(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
