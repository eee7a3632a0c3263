package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/internal/room"
	"github.com/karaoke-room-system/internal/session"
	"github.com/karaoke-room-system/pkg/events"
	"github.com/karaoke-room-system/pkg/models"
)

const defaultDisplayName = "Guest"

var errNoActiveHost = errors.New("no active host found")

type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// ConnectionSession is what the server knows about one connection. RoomID is
// empty until the connection creates or joins a room.
type ConnectionSession struct {
	ConnectionID string `json:"connectionId"`
	RoomID       string `json:"roomId"`
	Role         Role   `json:"role"`
	DisplayName  string `json:"displayName"`
}

type CommandDispatcher interface {
	DispatchRaw(ctx context.Context, data []byte) error
	Broadcast(ctx context.Context)
}

// Handler runs the signaling protocol and relays room commands. Admission is
// decided by the session registry; playback state lives in the room engine.
type Handler struct {
	registry   *session.Registry
	rooms      *room.Manager
	dispatcher CommandDispatcher
	events     events.Publisher
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	conns    map[string]*Conn
	sessions map[string]*ConnectionSession
	groups   map[string]map[string]*Conn // roomID -> connID -> conn
}

func NewHandler(registry *session.Registry, rooms *room.Manager, dispatcher CommandDispatcher, publisher events.Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   registry,
		rooms:      rooms,
		dispatcher: dispatcher,
		events:     publisher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // LAN clients load the UI from other origins
			},
		},
		conns:    make(map[string]*Conn),
		sessions: make(map[string]*ConnectionSession),
		groups:   make(map[string]map[string]*Conn),
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(uuid.New().String(), wsConn)
	h.register(conn)
	h.logger.Info("connection opened", zap.String("conn_id", conn.ID))

	go conn.writePump(h.logger)

	ctx := c.Request.Context()
	conn.readPump(h.logger, func(data []byte) {
		h.handleMessage(ctx, conn, data)
	})

	h.unregister(ctx, conn)
	h.logger.Info("connection closed", zap.String("conn_id", conn.ID))
}

// Session returns a copy of the session record for connID.
func (h *Handler) Session(connID string) (ConnectionSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[connID]
	if !ok {
		return ConnectionSession{}, false
	}
	return *s, true
}

// BroadcastState sends the full view to the room's host and the public view
// to everyone else in the room.
func (h *Handler) BroadcastState(_ context.Context, full, public models.RoomState) {
	fullMsg, err := encodeMessage(MsgTypeStateUpdate, StateUpdatePayload{State: full})
	if err != nil {
		h.logger.Error("failed to encode state", zap.Error(err))
		return
	}
	publicMsg, err := encodeMessage(MsgTypeStateUpdate, StateUpdatePayload{State: public})
	if err != nil {
		h.logger.Error("failed to encode state", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, conn := range h.groups[full.RoomID] {
		if s := h.sessions[id]; s != nil && s.Role == RoleHost {
			conn.enqueue(h.logger, MsgTypeStateUpdate, fullMsg)
		} else {
			conn.enqueue(h.logger, MsgTypeStateUpdate, publicMsg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *Conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.sendError(h.logger, ErrCodeInvalidMessage, "invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypeCreateRoom:
		h.handleCreateRoom(ctx, conn, msg.Payload)
	case MsgTypeJoinRoom:
		h.handleJoinRoom(ctx, conn, msg.Payload)
	case MsgTypeLeaveRoom:
		h.leave(ctx, conn.ID)
	case MsgTypeCommand:
		h.handleCommand(ctx, conn, msg.Payload)
	case MsgTypePing:
		conn.sendMessage(h.logger, MsgTypePong, PongPayload{ServerTime: time.Now().UnixMilli()})
	default:
		conn.sendError(h.logger, ErrCodeUnknownType, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) handleCreateRoom(ctx context.Context, conn *Conn, payload json.RawMessage) {
	var p CreateRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		conn.sendError(h.logger, ErrCodeCreateRoomFailed, "invalid create room payload")
		return
	}
	if p.RoomID == "" || p.JoinSecretHash == "" {
		conn.sendError(h.logger, ErrCodeCreateRoomFailed, "roomId and joinSecretHash are required")
		return
	}
	if s, _ := h.Session(conn.ID); s.RoomID != "" {
		conn.sendError(h.logger, ErrCodeCreateRoomFailed, "connection already belongs to a room")
		return
	}

	if err := h.registry.CreateRoom(p.RoomID, conn.ID, p.JoinSecretHash, p.HostIdentity); err != nil {
		conn.sendError(h.logger, ErrCodeCreateRoomFailed, err.Error())
		return
	}

	h.mu.Lock()
	if s := h.sessions[conn.ID]; s != nil {
		s.RoomID = p.RoomID
		s.Role = RoleHost
	}
	h.joinGroupLocked(p.RoomID, conn)
	h.mu.Unlock()

	conn.sendMessage(h.logger, MsgTypeRoomCreated, RoomCreatedPayload{RoomID: p.RoomID})
	h.publish(ctx, events.EventTypeRoomCreated, p.RoomID, events.RoomCreatedPayload{HostIdentity: p.HostIdentity})

	if eng := h.rooms.Current(); eng.RoomID() == p.RoomID {
		conn.sendMessage(h.logger, MsgTypeStateUpdate, StateUpdatePayload{State: eng.Snapshot()})
	}
}

func (h *Handler) handleJoinRoom(ctx context.Context, conn *Conn, payload json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		conn.sendMessage(h.logger, MsgTypeJoinRejected, JoinRejectedPayload{Reason: "invalid join payload"})
		return
	}
	if s, _ := h.Session(conn.ID); s.RoomID != "" {
		conn.sendMessage(h.logger, MsgTypeJoinRejected, JoinRejectedPayload{Reason: "already in a room"})
		return
	}

	meta, err := h.admit(p)
	if err != nil {
		h.logger.Info("join rejected",
			zap.String("conn_id", conn.ID),
			zap.String("room_id", p.RoomID),
			zap.Error(err))
		conn.sendMessage(h.logger, MsgTypeJoinRejected, JoinRejectedPayload{Reason: err.Error()})
		return
	}

	displayName := p.DisplayName
	if displayName == "" {
		displayName = defaultDisplayName
	}

	host, ok := h.commitJoin(conn, meta, displayName)
	if !ok {
		h.logger.Info("join rejected, room closed during admission",
			zap.String("conn_id", conn.ID),
			zap.String("room_id", meta.RoomID))
		conn.sendMessage(h.logger, MsgTypeJoinRejected, JoinRejectedPayload{Reason: session.ErrRoomNotFound.Error()})
		return
	}

	if host != nil {
		host.sendMessage(h.logger, MsgTypeClientJoined, ClientJoinedPayload{ClientID: conn.ID, DisplayName: displayName})
	}
	hostIdentity := meta.HostIdentity
	if hostIdentity == "" {
		hostIdentity = meta.HostConnectionID
	}
	conn.sendMessage(h.logger, MsgTypeJoinSuccess, JoinSuccessPayload{RoomID: meta.RoomID, HostIdentity: hostIdentity})

	h.logger.Info("client joined",
		zap.String("conn_id", conn.ID),
		zap.String("display_name", displayName),
		zap.String("room_id", meta.RoomID),
		zap.Int("client_count", meta.ClientCount))
	h.publish(ctx, events.EventTypeClientJoined, meta.RoomID, events.ClientJoinedPayload{ClientID: conn.ID, DisplayName: displayName})

	if eng := h.rooms.Current(); eng.RoomID() == meta.RoomID {
		eng.AddClient(models.ConnectedClient{
			ID:          conn.ID,
			DisplayName: displayName,
			ConnectedAt: time.Now().UnixMilli(),
		})
		h.dispatcher.Broadcast(ctx)
	}
}

// commitJoin puts an admitted connection into its room's group. It fails when
// the room was closed after admission. A room reopened under the same id by
// another host never counted this client, so its slots are left alone.
func (h *Handler) commitJoin(conn *Conn, meta models.RoomSessionMetadata, displayName string) (*Conn, bool) {
	h.mu.Lock()
	current, ok := h.registry.Get(meta.RoomID)
	if !ok || current.HostConnectionID != meta.HostConnectionID {
		h.mu.Unlock()
		if !ok {
			h.registry.RemoveClient(meta.RoomID)
		}
		return nil, false
	}
	defer h.mu.Unlock()

	if s := h.sessions[conn.ID]; s != nil {
		s.RoomID = meta.RoomID
		s.Role = RoleClient
		s.DisplayName = displayName
	}
	h.joinGroupLocked(meta.RoomID, conn)
	return h.conns[meta.HostConnectionID], true
}

// admit resolves the target room and claims a slot in it. An empty or
// "default" room id means discovery, which needs no secret.
func (h *Handler) admit(p JoinRoomPayload) (models.RoomSessionMetadata, error) {
	if p.RoomID != "" && p.RoomID != discoveryRoomID {
		return h.registry.TryJoinRoom(p.RoomID, p.JoinSecret)
	}

	target, ok := h.registry.FindFirstJoinableRoom()
	if !ok {
		return models.RoomSessionMetadata{}, errNoActiveHost
	}
	return h.registry.TryJoinRoomWithoutSecret(target.RoomID)
}

func (h *Handler) handleCommand(ctx context.Context, conn *Conn, payload json.RawMessage) {
	s, _ := h.Session(conn.ID)
	if s.RoomID == "" || s.RoomID != h.rooms.Current().RoomID() {
		conn.sendError(h.logger, ErrCodeCommandFailed, "not in an active room")
		return
	}
	if err := h.dispatcher.DispatchRaw(ctx, payload); err != nil {
		conn.sendError(h.logger, ErrCodeCommandFailed, err.Error())
	}
}

// leave is shared by LEAVE_ROOM and disconnect. A departing host closes the
// room for everyone; a departing client frees its slot.
func (h *Handler) leave(ctx context.Context, connID string) {
	if meta, ok := h.registry.FindRoomByHostConnection(connID); ok {
		h.closeRoom(ctx, meta.RoomID, connID)
		return
	}

	h.mu.Lock()
	s := h.sessions[connID]
	if s == nil || s.Role != RoleClient || s.RoomID == "" {
		h.mu.Unlock()
		return
	}
	roomID := s.RoomID
	s.RoomID = ""
	s.Role = RoleNone
	h.leaveGroupLocked(roomID, connID)
	h.mu.Unlock()

	if meta, ok := h.registry.Get(roomID); ok {
		if host := h.conn(meta.HostConnectionID); host != nil {
			host.sendMessage(h.logger, MsgTypeClientLeft, ClientLeftPayload{ClientID: connID})
		}
		h.registry.RemoveClient(roomID)
	}
	h.publish(ctx, events.EventTypeClientLeft, roomID, events.ClientLeftPayload{ClientID: connID})

	if eng := h.rooms.Current(); eng.RoomID() == roomID && eng.RemoveClient(connID) {
		h.dispatcher.Broadcast(ctx)
	}
}

// closeRoom drops the room from the registry before tearing down its group,
// so a join that commits afterwards sees the room gone.
func (h *Handler) closeRoom(ctx context.Context, roomID, hostConnID string) {
	h.registry.DeleteRoom(roomID)

	h.mu.Lock()
	members := h.groups[roomID]
	delete(h.groups, roomID)
	for id, conn := range members {
		if s := h.sessions[id]; s != nil {
			s.RoomID = ""
			s.Role = RoleNone
		}
		if id != hostConnID {
			conn.sendMessage(h.logger, MsgTypeHostDisconnected, nil)
		}
	}
	h.mu.Unlock()

	h.publish(ctx, events.EventTypeRoomClosed, roomID, events.RoomClosedPayload{Reason: "host disconnected"})
}

func (h *Handler) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
	h.sessions[conn.ID] = &ConnectionSession{ConnectionID: conn.ID}
}

func (h *Handler) unregister(ctx context.Context, conn *Conn) {
	h.leave(ctx, conn.ID)

	h.mu.Lock()
	delete(h.conns, conn.ID)
	delete(h.sessions, conn.ID)
	h.mu.Unlock()

	conn.close()
}

func (h *Handler) conn(connID string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

func (h *Handler) joinGroupLocked(roomID string, conn *Conn) {
	if _, ok := h.groups[roomID]; !ok {
		h.groups[roomID] = make(map[string]*Conn)
	}
	h.groups[roomID][conn.ID] = conn
}

func (h *Handler) leaveGroupLocked(roomID, connID string) {
	if group, ok := h.groups[roomID]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(h.groups, roomID)
		}
	}
}

func (h *Handler) publish(ctx context.Context, eventType events.EventType, roomID string, payload interface{}) {
	if err := h.events.PublishEvent(ctx, eventType, roomID, payload); err != nil {
		h.logger.Error("failed to publish event",
			zap.String("type", string(eventType)),
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}
