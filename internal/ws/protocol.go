package ws

import (
	"encoding/json"

	"github.com/karaoke-room-system/pkg/models"
)

// Messages from host or client to server
const (
	MsgTypeCreateRoom = "CREATE_ROOM"
	MsgTypeJoinRoom   = "JOIN_ROOM"
	MsgTypeLeaveRoom  = "LEAVE_ROOM"
	MsgTypeCommand    = "COMMAND"
	MsgTypePing       = "PING"
)

// Messages from server to host or client
const (
	MsgTypeRoomCreated      = "ROOM_CREATED"
	MsgTypeJoinSuccess      = "JOIN_SUCCESS"
	MsgTypeJoinRejected     = "JOIN_REJECTED"
	MsgTypeClientJoined     = "CLIENT_JOINED"
	MsgTypeClientLeft       = "CLIENT_LEFT"
	MsgTypeHostDisconnected = "HOST_DISCONNECTED"
	MsgTypeStateUpdate      = "STATE_UPDATE"
	MsgTypePong             = "PONG"
	MsgTypeError            = "ERROR"
)

const (
	ErrCodeCreateRoomFailed = "CREATE_ROOM_FAILED"
	ErrCodeCommandFailed    = "COMMAND_FAILED"
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeUnknownType      = "UNKNOWN_MESSAGE_TYPE"
)

// discoveryRoomID asks the server to pick the first joinable room.
const discoveryRoomID = "default"

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateRoomPayload struct {
	RoomID         string `json:"roomId"`
	JoinSecretHash string `json:"joinSecretHash"`
	HostIdentity   string `json:"hostIdentity,omitempty"`
}

type JoinRoomPayload struct {
	RoomID      string `json:"roomId"`
	JoinSecret  string `json:"joinSecret"`
	DisplayName string `json:"displayName"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

type JoinSuccessPayload struct {
	RoomID       string `json:"roomId"`
	HostIdentity string `json:"hostIdentity"`
}

type JoinRejectedPayload struct {
	Reason string `json:"reason"`
}

type ClientJoinedPayload struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type ClientLeftPayload struct {
	ClientID string `json:"clientId"`
}

type StateUpdatePayload struct {
	State models.RoomState `json:"state"`
}

type PongPayload struct {
	ServerTime int64 `json:"serverTime"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
