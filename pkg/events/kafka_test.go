package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEvent(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaClient{writer: w, logger: zap.NewNop()}

	err := k.PublishEvent(context.Background(), EventTypeClientJoined, "abc123",
		ClientJoinedPayload{ClientID: "c1", DisplayName: "Ana"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "abc123", string(w.msgs[0].Key))

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, EventTypeClientJoined, ev.Type)
	assert.Equal(t, "abc123", ev.RoomID)
	assert.JSONEq(t, `{"client_id":"c1","display_name":"Ana"}`, string(ev.Payload))
}

func TestPublishEvent_WriteError(t *testing.T) {
	k := &KafkaClient{writer: &fakeWriter{err: errors.New("broker down")}, logger: zap.NewNop()}

	err := k.PublishEvent(context.Background(), EventTypeRoomClosed, "abc123", RoomClosedPayload{Reason: "host left"})
	assert.Error(t, err)
}

func TestBroadcastState_PublishesPublicView(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaClient{writer: w, logger: zap.NewNop()}

	full := models.RoomState{RoomID: "abc123", Playlists: []models.PlaylistCollection{
		{ID: "p1", Visibility: models.VisibilityPublic},
		{ID: "p2", Visibility: models.VisibilityPersonal},
	}}
	public := models.RoomState{RoomID: "abc123", Playlists: []models.PlaylistCollection{
		{ID: "p1", Visibility: models.VisibilityPublic},
	}}

	k.BroadcastState(context.Background(), full, public)

	require.Len(t, w.msgs, 1)
	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, EventTypeStateUpdated, ev.Type)

	var payload StateUpdatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Len(t, payload.State.Playlists, 1)
	assert.Equal(t, "p1", payload.State.Playlists[0].ID)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishEvent(context.Background(), EventTypeRoomCreated, "r", nil))
	p.BroadcastState(context.Background(), models.RoomState{}, models.RoomState{})
	assert.NoError(t, p.Close())
}
