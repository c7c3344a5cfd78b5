package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	ws "github.com/thereayou/teamchat/internal/websocket"
)

func TestNewMessage_BroadcastsSanitizedToChannel(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)

	f.handle(john, jsonEvent(ws.TypeMessageNew, map[string]interface{}{
		"channelId": f.general.ID,
		"content":   "<script>alert(1)</script><p>hi</p>",
	}))

	for _, sess := range []*ws.Session{john, jane} {
		frames := drain(t, sess)
		require.Len(t, frames, 1)
		assert.Equal(t, ws.TypeMessageNew, frames[0].Type)

		var msg models.Message
		require.NoError(t, json.Unmarshal(frames[0].Data, &msg))
		assert.Equal(t, "<p>hi</p>", msg.Content)
		assert.Equal(t, f.john.ID, msg.UserID)
		assert.Equal(t, "john", msg.User.Username)
		assert.Equal(t, f.general.ID, msg.ChannelID)
	}

	stored, err := f.mem.ListChannelMessages(f.ctx, f.general.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "<p>hi</p>", stored[0].Content)
	assert.Equal(t, []uuid.UUID{stored[0].ID}, f.enricher.jobs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Events.WithLabelValues("message:new", "ok")))
}

func TestNewMessage_NonMemberIsSilentNoop(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	mallory := f.open(f.outsider().ID)

	f.handle(mallory, jsonEvent(ws.TypeMessageNew, map[string]interface{}{
		"channelId": f.general.ID,
		"content":   "let me in",
	}))

	assert.Empty(t, drain(t, mallory), "authorization failures are silent")
	assert.Empty(t, drain(t, john))

	stored, err := f.mem.ListChannelMessages(f.ctx, f.general.ID, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Events.WithLabelValues("message:new", "denied")))
}

func TestNewMessage_EmptyAfterSanitizeIsError(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)

	f.handle(john, jsonEvent(ws.TypeMessageNew, map[string]interface{}{
		"channelId": f.general.ID,
		"content":   "<script>alert(1)</script>",
	}))

	frames := drain(t, john)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeError, frames[0].Type)
	assert.Equal(t, `"invalid payload"`, string(frames[0].Data))
	assert.Empty(t, drain(t, jane))
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	msg := f.post(john, f.general.ID, "first")

	// чужое сообщение: тихий отказ
	f.handle(jane, jsonEvent(ws.TypeMessageEdit, map[string]interface{}{"messageId": msg.ID, "content": "hijacked"}))
	assert.Empty(t, drain(t, jane))
	assert.Empty(t, drain(t, john))

	stored, err := f.mem.GetMessage(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Content)
	assert.False(t, stored.Edited)

	// channelId не совпадает с каналом сообщения
	f.handle(john, jsonEvent(ws.TypeMessageEdit, map[string]interface{}{"messageId": msg.ID, "channelId": f.random.ID, "content": "moved"}))
	assert.Empty(t, drain(t, john))

	f.handle(john, jsonEvent(ws.TypeMessageEdit, map[string]interface{}{"messageId": msg.ID, "channelId": f.general.ID, "content": "second"}))
	for _, sess := range []*ws.Session{john, jane} {
		frames := drain(t, sess)
		require.Len(t, frames, 1)
		assert.Equal(t, ws.TypeMessageUpdated, frames[0].Type)

		var updated models.Message
		require.NoError(t, json.Unmarshal(frames[0].Data, &updated))
		assert.Equal(t, "second", updated.Content)
		assert.True(t, updated.Edited)
	}
}

func TestDeleteMessage_CascadesThread(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	root := f.post(john, f.general.ID, "root")

	f.handle(jane, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.general.ID, "parentId": root.ID, "content": "reply"}))
	f.drainAll()

	f.handle(jane, jsonEvent(ws.TypeMessageDelete, map[string]interface{}{"messageId": root.ID}))
	assert.Empty(t, drain(t, john), "only the author can delete")

	f.handle(john, jsonEvent(ws.TypeMessageDelete, map[string]interface{}{"messageId": root.ID}))
	frames := drain(t, jane)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeMessageDeleted, frames[0].Type)

	var payload dto.MessageDeletedPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, root.ID, payload.MessageID)

	_, err := f.mem.GetMessage(f.ctx, root.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	replies, err := f.mem.ListThreadReplies(f.ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestReaction_Alternates(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	msg := f.post(john, f.general.ID, "react to me")

	raw := jsonEvent(ws.TypeReactionAdd, map[string]interface{}{"messageId": msg.ID, "emoji": "👍"})
	var lastReaction uuid.UUID

	for i := 0; i < 4; i++ {
		f.handle(jane, raw)
		frames := drain(t, john)
		require.Len(t, frames, 1, "toggle %d", i)

		if i%2 == 0 {
			assert.Equal(t, ws.TypeReactionAdded, frames[0].Type)
			var r models.Reaction
			require.NoError(t, json.Unmarshal(frames[0].Data, &r))
			assert.Equal(t, f.jane.ID, r.UserID)
			assert.Equal(t, "👍", r.Emoji)
			assert.Equal(t, "jane", r.User.Username)
			lastReaction = r.ID
			assert.Equal(t, 1, f.mem.ReactionCount(msg.ID, f.jane.ID, "👍"))
		} else {
			assert.Equal(t, ws.TypeReactionRemoved, frames[0].Type)
			var p dto.ReactionRemovedPayload
			require.NoError(t, json.Unmarshal(frames[0].Data, &p))
			assert.Equal(t, msg.ID, p.MessageID)
			assert.Equal(t, lastReaction, p.ReactionID)
			assert.Equal(t, 0, f.mem.ReactionCount(msg.ID, f.jane.ID, "👍"))
		}
		f.drainAll()
	}
}

func TestReaction_NonMemberAndMismatchedChannel(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	mallory := f.open(f.outsider().ID)
	msg := f.post(john, f.general.ID, "hello")

	f.handle(mallory, jsonEvent(ws.TypeReactionAdd, map[string]interface{}{"messageId": msg.ID, "emoji": "🔥"}))
	f.handle(john, jsonEvent(ws.TypeReactionAdd, map[string]interface{}{"messageId": msg.ID, "channelId": f.random.ID, "emoji": "🔥"}))

	assert.Empty(t, drain(t, john))
	assert.Empty(t, drain(t, mallory))
	assert.Equal(t, 0, f.mem.ReactionCount(msg.ID, john.UserID, "🔥"))
}

type conflictingStore struct {
	*database.MemoryStore
	conflicts int
	calls     int
}

func (s *conflictingStore) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*services.ReactionToggle, error) {
	s.calls++
	if s.calls <= s.conflicts {
		return nil, services.ErrConflict
	}
	return s.MemoryStore.ToggleReaction(ctx, messageID, userID, emoji)
}

func TestReaction_RetriesOnConflict(t *testing.T) {
	store := &conflictingStore{conflicts: 2}
	f := newFixtureWith(t, func(m *database.MemoryStore) services.Store {
		store.MemoryStore = m
		return store
	})
	john := f.open(f.john.ID)
	msg := f.post(john, f.general.ID, "hello")

	f.handle(john, jsonEvent(ws.TypeReactionAdd, map[string]interface{}{"messageId": msg.ID, "emoji": "🎉"}))
	frames := drain(t, john)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeReactionAdded, frames[0].Type)
	assert.Equal(t, 3, store.calls)

	// три конфликта подряд: клиент получает ошибку
	store.calls, store.conflicts = 0, 3
	f.handle(john, jsonEvent(ws.TypeReactionAdd, map[string]interface{}{"messageId": msg.ID, "emoji": "🎉"}))
	frames = drain(t, john)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeError, frames[0].Type)
	assert.Equal(t, 1, f.mem.ReactionCount(msg.ID, f.john.ID, "🎉"))
}

func TestThread_ReplyAndGet(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	root := f.post(john, f.general.ID, "root")

	// пустой тред
	f.handle(jane, jsonEvent(ws.TypeThreadGet, root.ID.String()))
	frames := drain(t, jane)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeThreadReplies, frames[0].Type)
	assert.JSONEq(t, `[]`, string(frames[0].Data))
	assert.Empty(t, drain(t, john), "thread:replies goes to the requester only")

	f.handle(jane, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.general.ID, "parentId": root.ID, "content": "one"}))
	f.handle(john, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.general.ID, "parentId": root.ID, "content": "two"}))

	frames = ofType(drain(t, john), ws.TypeThreadReply)
	require.Len(t, frames, 2)
	var reply models.Message
	require.NoError(t, json.Unmarshal(frames[0].Data, &reply))
	require.NotNil(t, reply.ThreadParentID)
	assert.Equal(t, root.ID, *reply.ThreadParentID)
	f.drainAll()

	// ответ на ответ попадает в корневой тред
	f.handle(john, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.general.ID, "parentId": reply.ID, "content": "three"}))
	f.drainAll()

	f.handle(jane, jsonEvent(ws.TypeThreadGet, map[string]interface{}{"messageId": root.ID}))
	frames = drain(t, jane)
	require.Len(t, frames, 1)
	var replies []models.Message
	require.NoError(t, json.Unmarshal(frames[0].Data, &replies))
	require.Len(t, replies, 3)
	assert.Equal(t, "one", replies[0].Content)
	assert.Equal(t, "two", replies[1].Content)
	assert.Equal(t, "three", replies[2].Content)

	// replies не попадают в историю канала
	history, err := f.mem.ListChannelMessages(f.ctx, f.general.ID, 50, nil)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestThread_ParentInOtherChannelIsDropped(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	root := f.post(john, f.general.ID, "root")

	f.handle(john, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.random.ID, "parentId": root.ID, "content": "wrong place"}))
	f.handle(john, jsonEvent(ws.TypeThreadGet, uuid.NewString()))

	assert.Empty(t, drain(t, john))
	replies, err := f.mem.ListThreadReplies(f.ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestDirectMessage_MultiDevice(t *testing.T) {
	f := newFixture(t)
	johnPhone := f.open(f.john.ID)
	johnLaptop := f.open(f.john.ID)
	janePhone := f.open(f.jane.ID)
	janeLaptop := f.open(f.jane.ID)

	f.handle(johnPhone, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": f.jane.ID, "content": "<b>psst</b>"}))

	for _, sess := range []*ws.Session{johnPhone, johnLaptop, janePhone, janeLaptop} {
		frames := drain(t, sess)
		require.Len(t, frames, 1, "exactly once per session")
		assert.Equal(t, ws.TypeDMMessage, frames[0].Type)

		var dm models.DirectMessage
		require.NoError(t, json.Unmarshal(frames[0].Data, &dm))
		assert.Equal(t, "<b>psst</b>", dm.Content)
		assert.Equal(t, f.john.ID, dm.FromID)
		assert.Equal(t, "jane", dm.To.Username)
	}
	assert.Equal(t, 1, f.mem.DirectMessageCount())
}

func TestDirectMessage_ToSelfAndUnknown(t *testing.T) {
	f := newFixture(t)
	phone := f.open(f.john.ID)
	laptop := f.open(f.john.ID)

	f.handle(phone, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": f.john.ID, "content": "note to self"}))
	assert.Len(t, drain(t, phone), 1)
	assert.Len(t, drain(t, laptop), 1)

	f.handle(phone, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": uuid.New(), "content": "anyone?"}))
	assert.Empty(t, drain(t, phone))
	assert.Equal(t, 1, f.mem.DirectMessageCount())
}

func TestPresenceUpdate(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	mallory := f.open(f.outsider().ID)

	f.handle(john, jsonEvent(ws.TypePresenceUpdate, "away"))

	for _, sess := range []*ws.Session{john, jane, mallory} {
		frames := drain(t, sess)
		require.Len(t, frames, 1)
		assert.Equal(t, ws.TypePresenceUpdate, frames[0].Type)

		var p dto.PresencePayload
		require.NoError(t, json.Unmarshal(frames[0].Data, &p))
		assert.Equal(t, f.john.ID, p.UserID)
		assert.Equal(t, models.StatusAway, p.Status)
	}

	user, err := f.mem.GetUser(f.ctx, f.john.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAway, user.Status)
}

func TestShareFile(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)

	file := models.File{Filename: "plan.pdf", Path: "/uploads/plan.pdf", MimeType: "application/pdf", Size: 42, UserID: f.john.ID}
	require.NoError(t, f.mem.SaveFile(f.ctx, &file))

	// загрузил не отправитель
	f.handle(jane, jsonEvent(ws.TypeFileShare, map[string]interface{}{"channelId": f.general.ID, "fileId": file.ID}))
	assert.Empty(t, drain(t, john))

	f.handle(john, jsonEvent(ws.TypeFileShare, map[string]interface{}{"channelId": f.general.ID, "fileId": file.ID, "content": "see attached"}))
	frames := drain(t, jane)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeMessageNew, frames[0].Type)

	var msg models.Message
	require.NoError(t, json.Unmarshal(frames[0].Data, &msg))
	assert.Equal(t, "see attached", msg.Content)
	require.Len(t, msg.Files, 1)
	assert.Equal(t, file.ID, msg.Files[0].ID)
	f.drainAll()

	// уже прикреплён
	f.handle(john, jsonEvent(ws.TypeFileShare, map[string]interface{}{"channelId": f.general.ID, "fileId": file.ID}))
	assert.Empty(t, drain(t, jane))
	assert.Empty(t, drain(t, john))
}

func TestJoinChannel(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	mallory := f.open(f.outsider().ID)

	late := models.Channel{WorkspaceID: f.workspace.ID, Name: "late", CreatedBy: f.john.ID}
	require.NoError(t, f.mem.CreateChannel(f.ctx, &late))
	require.NoError(t, f.mem.AddChannelMember(f.ctx, late.ID, f.john.ID, "MEMBER"))
	require.NoError(t, f.mem.AddChannelMember(f.ctx, late.ID, mallory.UserID, "MEMBER"))

	room := ws.ChannelRoom(late.ID)
	assert.False(t, f.hub.Rooms().IsMember(room, john.ID))

	f.handle(john, jsonEvent(ws.TypeChannelJoin, map[string]interface{}{"channelId": late.ID}))
	assert.True(t, f.hub.Rooms().IsMember(room, john.ID))

	// состоит в канале, но не в воркспейсе
	f.handle(mallory, jsonEvent(ws.TypeChannelJoin, map[string]interface{}{"channelId": late.ID}))
	assert.False(t, f.hub.Rooms().IsMember(room, mallory.ID))

	f.handle(john, jsonEvent(ws.TypeChannelJoin, map[string]interface{}{"channelId": uuid.New()}))
	assert.Empty(t, drain(t, john))
	assert.Empty(t, drain(t, mallory))
}

type panickingStore struct {
	*database.MemoryStore
}

func (panickingStore) CreateMessage(context.Context, *models.Message, ...uuid.UUID) (*models.Message, error) {
	panic("boom")
}

func TestHandleEvent_RecoversPanics(t *testing.T) {
	f := newFixtureWith(t, func(m *database.MemoryStore) services.Store { return panickingStore{m} })
	john := f.open(f.john.ID)

	assert.NotPanics(t, func() {
		f.handle(john, jsonEvent(ws.TypeMessageNew, map[string]interface{}{"channelId": f.general.ID, "content": "hi"}))
	})

	frames := drain(t, john)
	require.Len(t, frames, 1)
	assert.Equal(t, ws.TypeError, frames[0].Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Events.WithLabelValues("message:new", "panic")))
}
