package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBufferSize = 256
)

// Conn is one websocket peer. Writes go through send so only writePump
// touches the socket for writing.
type Conn struct {
	ID   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{
		ID:   id,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *Conn) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("write error", zap.String("conn_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the peer goes away, handing every frame to handle.
func (c *Conn) readPump(logger *zap.Logger, handle func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("read error", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		handle(message)
	}
}

func (c *Conn) sendMessage(logger *zap.Logger, msgType string, payload interface{}) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		logger.Debug("error marshaling message", zap.String("message_type", msgType), zap.Error(err))
		return
	}
	c.enqueue(logger, msgType, data)
}

// enqueue never blocks: a peer that stops reading loses messages instead of
// stalling the room.
func (c *Conn) enqueue(logger *zap.Logger, msgType string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("send buffer full, dropping message",
			zap.String("conn_id", c.ID),
			zap.String("message_type", msgType))
	}
}

func (c *Conn) sendError(logger *zap.Logger, code, message string) {
	c.sendMessage(logger, MsgTypeError, ErrorPayload{Code: code, Message: message})
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}
