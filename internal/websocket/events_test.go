package websocket

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/models"
)

func TestEncode(t *testing.T) {
	frame, err := Encode(TypeMessageDeleted, map[string]string{"messageId": "m1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, TypeMessageDeleted, env.Type)
	assert.JSONEq(t, `{"messageId":"m1"}`, string(env.Data))
	assert.False(t, env.Timestamp.IsZero())
}

func TestEncode_ErrorCarriesString(t *testing.T) {
	frame, err := Encode(TypeError, "invalid payload")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, `"invalid payload"`, string(env.Data))
}

func TestParseEvent(t *testing.T) {
	channelID := uuid.New()
	msgID := uuid.New()

	ev, err := ParseEvent([]byte(`{"type":"message:new","data":{"channelId":"` + channelID.String() + `","content":"hi"}}`))
	require.NoError(t, err)
	nm, ok := ev.(*NewMessage)
	require.True(t, ok)
	assert.Equal(t, channelID, nm.ChannelID)
	assert.Equal(t, "hi", nm.Content)

	ev, err = ParseEvent([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePing, ev.Type())

	ev, err = ParseEvent([]byte(`{"type":"thread:get","data":"` + msgID.String() + `"}`))
	require.NoError(t, err)
	assert.Equal(t, msgID, ev.(*GetThread).MessageID)

	ev, err = ParseEvent([]byte(`{"type":"thread:get","data":{"messageId":"` + msgID.String() + `"}}`))
	require.NoError(t, err)
	assert.Equal(t, msgID, ev.(*GetThread).MessageID)

	ev, err = ParseEvent([]byte(`{"type":"presence:update","data":"away"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAway, ev.(*UpdatePresence).Status)

	ev, err = ParseEvent([]byte(`{"type":"reaction:add","data":{"messageId":"` + msgID.String() + `","emoji":" 👍 "}}`))
	require.NoError(t, err)
	assert.Equal(t, "👍", ev.(*AddReaction).Emoji)
}

func TestParseEvent_Errors(t *testing.T) {
	long := strings.Repeat("a", maxContentLength+1)

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{bad`, ErrInvalidMessage},
		{"unknown type", `{"type":"nope","data":{}}`, ErrUnknownEvent},
		{"missing data", `{"type":"message:new"}`, ErrInvalidPayload},
		{"wrong shape", `{"type":"message:new","data":{"channelId":42}}`, ErrInvalidPayload},
		{"missing channel", `{"type":"message:new","data":{"content":"hi"}}`, ErrInvalidPayload},
		{"empty content", `{"type":"message:new","data":{"channelId":"` + uuid.NewString() + `","content":"  "}}`, ErrInvalidPayload},
		{"content too long", `{"type":"message:new","data":{"channelId":"` + uuid.NewString() + `","content":"` + long + `"}}`, ErrInvalidPayload},
		{"bad status", `{"type":"presence:update","data":{"status":"SLEEPING"}}`, ErrInvalidPayload},
		{"empty emoji", `{"type":"reaction:add","data":{"messageId":"` + uuid.NewString() + `","emoji":""}}`, ErrInvalidPayload},
		{"missing file", `{"type":"file:share","data":{"channelId":"` + uuid.NewString() + `"}}`, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientError(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"nope","data":{}}`))
	assert.Equal(t, "unknown event type", clientError(err))

	_, err = ParseEvent([]byte(`{"type":"message:new"}`))
	assert.Equal(t, "invalid payload", clientError(err))

	_, err = ParseEvent([]byte(`not json`))
	assert.Equal(t, "invalid message format", clientError(err))
}
