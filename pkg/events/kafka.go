package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

type EventType string

const (
	EventTypeRoomCreated  EventType = "room_created"
	EventTypeRoomClosed   EventType = "room_closed"
	EventTypeClientJoined EventType = "client_joined"
	EventTypeClientLeft   EventType = "client_left"
	EventTypeStateUpdated EventType = "state_updated"
)

type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher is what the rest of the process sees of the event stream.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType EventType, roomID string, payload interface{}) error
	BroadcastState(ctx context.Context, full, public models.RoomState)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaClient publishes room lifecycle and state events keyed by room id, so
// one room's events stay ordered within a partition.
type KafkaClient struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaClient(brokers []string, topic string, logger *zap.Logger) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error("kafka write failed", zap.String("detail", fmt.Sprintf(msg, args...)))
		}),
	}
	return &KafkaClient{writer: writer, logger: logger}
}

func (k *KafkaClient) PublishEvent(ctx context.Context, eventType EventType, roomID string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	messageJSON, err := json.Marshal(Event{
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now(),
		Payload:   payloadJSON,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(roomID),
		Value: messageJSON,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// BroadcastState publishes the public view only. Personal collections never
// leave the host.
func (k *KafkaClient) BroadcastState(ctx context.Context, _, public models.RoomState) {
	if err := k.PublishEvent(ctx, EventTypeStateUpdated, public.RoomID, StateUpdatedPayload{State: public}); err != nil {
		k.logger.Error("failed to publish state",
			zap.String("room_id", public.RoomID),
			zap.Error(err))
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Nop stands in when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, EventType, string, interface{}) error { return nil }
func (Nop) BroadcastState(context.Context, models.RoomState, models.RoomState) {}
func (Nop) Close() error { return nil }

// Event payload types
type RoomCreatedPayload struct {
	HostIdentity string `json:"host_identity,omitempty"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type ClientJoinedPayload struct {
	ClientID    string `json:"client_id"`
	DisplayName string `json:"display_name"`
}

type ClientLeftPayload struct {
	ClientID string `json:"client_id"`
}

type StateUpdatedPayload struct {
	State models.RoomState `json:"state"`
}
