package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "pong.match_finished", events.Subject("pong", events.MatchFinished))
	assert.Equal(t, "arcade.room_created", events.Subject("arcade", events.RoomCreated))
}

func TestNew_WithoutNATSUsesLog(t *testing.T) {
	p, err := events.New(events.Config{}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &events.LogPublisher{}, p)
	assert.NoError(t, p.Close())
}

func TestNew_UnreachableNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network dial in short mode")
	}
	_, err := events.New(events.Config{NATSURL: "nats://127.0.0.1:1"}, logger.Discard())
	assert.Error(t, err)
}

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	p := events.NewLogPublisher(logger.NewWithWriter(&buf, "info", "json"))

	err := p.Publish(context.Background(), events.Event{
		Type:   events.MatchFinished,
		RoomID: 3,
		Score1: 5,
		Score2: 2,
		Winner: 1,
		Time:   time.Now(),
	})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "match event", record["msg"])
	assert.Equal(t, "match_finished", record["event"])
	assert.Equal(t, float64(3), record["room_id"])
	assert.Equal(t, float64(1), record["winner"])
	assert.Equal(t, "events", record["component"])
}

func TestEvent_JSON(t *testing.T) {
	b, err := json.Marshal(events.Event{Type: events.RoomClosed, RoomID: 9, Reason: "idle"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "room_closed", got["type"])
	assert.Equal(t, "idle", got["reason"])
	assert.NotContains(t, got, "winner")
}

func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.Publish(context.Background(), events.Event{Type: events.RoomCreated}))
	assert.NoError(t, p.Close())
}
