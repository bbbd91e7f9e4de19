package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeValidatePrivate(t *testing.T) {
	env := &Envelope{RecipientID: "U2", Content: "hi"}
	assert.NoError(t, env.ValidatePrivate())

	assert.Error(t, (&Envelope{Content: "hi"}).ValidatePrivate())
	assert.Error(t, (&Envelope{RecipientID: "U2"}).ValidatePrivate())
}

func TestEnvelopeValidateGroup(t *testing.T) {
	env := &Envelope{GroupID: "G1", Content: "hi"}
	assert.NoError(t, env.ValidateGroup())

	assert.Error(t, (&Envelope{Content: "hi"}).ValidateGroup())
	assert.Error(t, (&Envelope{GroupID: "G1"}).ValidateGroup())
}

func TestEnvelopeStampBindsHandshakeIdentity(t *testing.T) {
	env := &Envelope{SenderID: "spoofed", Content: "hi", Timestamp: 42}
	env.stamp("U1")

	assert.Equal(t, "U1", env.SenderID, "payload-claimed identity must be discarded")
	assert.EqualValues(t, 42, env.Timestamp, "client timestamp passes through")
}

func TestEnvelopeStampFillsMissingTimestamp(t *testing.T) {
	env := &Envelope{Content: "hi"}
	env.stamp("U1")

	assert.NotZero(t, env.Timestamp)
}

func TestGroupEventValidate(t *testing.T) {
	assert.NoError(t, (&GroupEvent{GroupID: "G1"}).Validate())
	assert.Error(t, (&GroupEvent{}).Validate())
}

func TestEventTypeIsClientEvent(t *testing.T) {
	assert.True(t, EventPrivateMessage.IsClientEvent())
	assert.True(t, EventGroupMessage.IsClientEvent())
	assert.True(t, EventJoinGroup.IsClientEvent())
	assert.True(t, EventLeaveGroup.IsClientEvent())

	assert.False(t, EventOnlineUsers.IsClientEvent())
	assert.False(t, EventUserJoinedGroup.IsClientEvent())
	assert.False(t, EventType("made-up").IsClientEvent())
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	env := &Envelope{
		SenderID:    "U1",
		RecipientID: "U2",
		Content:     "flood alert",
		Timestamp:   1700000000000,
		Metadata:    map[string]any{"urgent": true},
	}

	raw, err := encodeFrame(EventPrivateMessage, env)
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, EventPrivateMessage, frame.Event)

	var got Envelope
	require.NoError(t, json.Unmarshal(frame.Payload, &got))
	assert.Equal(t, env.Content, got.Content)
	assert.Equal(t, true, got.Metadata["urgent"])
}
