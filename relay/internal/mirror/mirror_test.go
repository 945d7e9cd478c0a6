package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/models"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	r.subject = subject
	r.data = data
	return r.err
}

func (r *recordingConn) Drain() error {
	r.drained = true
	return nil
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		d    *models.Delivery
		want string
	}{
		{"event", &models.Delivery{RequestType: models.RequestEventsAPI, EventType: "message"}, "relay.events.events_api.message"},
		{"slash command", &models.Delivery{RequestType: models.RequestSlashCommands, EventType: "/deploy"}, "relay.events.slash_commands.deploy"},
		{"wildcards stripped", &models.Delivery{RequestType: models.RequestInteractive, EventType: "a.b*c>d e"}, "relay.events.interactive.a_b_c_d_e"},
		{"empty event type", &models.Delivery{RequestType: models.RequestEventsAPI}, "relay.events.events_api.unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject("relay.events", tt.d))
		})
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	rc := &recordingConn{}
	p := newPublisher(rc, "")

	d := &models.Delivery{
		EnvelopeID:  "env-1",
		RequestType: models.RequestEventsAPI,
		EventType:   "reaction_added",
		TeamID:      "T1",
		Event:       models.NormalizedEvent{"reaction": "thumbsup"},
		Native:      json.RawMessage(`{"team_id":"T1"}`),
	}
	require.NoError(t, p.Publish(context.Background(), d))

	assert.Equal(t, "relay.events.events_api.reaction_added", rc.subject)

	var msg Message
	require.NoError(t, json.Unmarshal(rc.data, &msg))
	assert.Equal(t, "env-1", msg.EnvelopeID)
	assert.Equal(t, "events_api", msg.RequestType)
	assert.Equal(t, "T1", msg.TeamID)
	assert.Equal(t, "thumbsup", msg.Event["reaction"])
	assert.JSONEq(t, `{"team_id":"T1"}`, string(msg.Payload))

	require.NoError(t, p.Close())
	assert.True(t, rc.drained)
}

func TestNATSPublisher_Errors(t *testing.T) {
	rc := &recordingConn{err: errors.New("nats: connection closed")}
	p := newPublisher(rc, "x")
	assert.Error(t, p.Publish(context.Background(), &models.Delivery{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, &models.Delivery{}), context.Canceled)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), &models.Delivery{}))
	assert.NoError(t, p.Close())
}
