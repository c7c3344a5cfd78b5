package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	ws "github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/auth"
)

type memBlacklist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (b *memBlacklist) Revoke(_ context.Context, token string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked == nil {
		b.revoked = make(map[string]bool)
	}
	b.revoked[token] = true
	return nil
}

func (b *memBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[token], nil
}

func doJSON(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_RegisterLoginLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	jwtMgr := auth.NewJWTManager("secret", time.Hour)
	authenticator := auth.NewAuthenticator(jwtMgr, &memBlacklist{})
	h := NewAuthHandler(f.mem, jwtMgr, authenticator)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)

	w := doJSON(r, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "Alice@Example.com", "password": "supersecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reg dto.RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.Token)
	_, err := time.Parse(time.RFC3339, reg.TokenExpiresAt)
	assert.NoError(t, err)

	w = doJSON(r, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "supersecret",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/register", map[string]string{"username": "b", "email": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "supersecret"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "alice", login.User.Username)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	identity, err := authenticator.Verify(context.Background(), login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Uid, identity.UserID.String())

	w = doJSON(r, http.MethodPost, "/auth/logout", nil, login.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err = authenticator.Verify(context.Background(), login.Token)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)

	w = doJSON(r, http.MethodPost, "/auth/logout", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func historyRouter(f *fixture, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	authority := services.NewMembershipAuthority(f.mem)
	h := NewHTTPMessageHandler(f.mem, authority)
	ch := NewChannelHandler(f.mem, authority, f.hub)
	dms := NewDirectMessageHandler(f.mem)

	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	api.GET("/channels", ch.GetMyChannels)
	api.GET("/channels/:id", ch.GetChannel)
	api.GET("/channels/:id/messages", h.GetChannelMessages)
	api.GET("/messages/:id/thread", h.GetThread)
	api.GET("/direct-messages", dms.GetDirectMessages)
	return r
}

func TestHTTPMessageHandler_History(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)

	first := f.post(john, f.general.ID, "one")
	f.post(john, f.general.ID, "two")
	third := f.post(john, f.general.ID, "three")
	f.handle(john, jsonEvent(ws.TypeThreadReply, map[string]interface{}{"channelId": f.general.ID, "parentId": first.ID, "content": "reply"}))

	r := historyRouter(f, f.jane.ID)

	w := doJSON(r, http.MethodGet, "/api/v1/channels/"+f.general.ID.String()+"/messages", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var page dto.MessagesPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "one", page.Messages[0].Content)
	assert.Equal(t, "three", page.Messages[2].Content)
	assert.False(t, page.HasMore)

	w = doJSON(r, http.MethodGet, "/api/v1/channels/"+f.general.ID.String()+"/messages?limit=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "two", page.Messages[0].Content)
	assert.True(t, page.HasMore)

	before := third.CreatedAt.Format(time.RFC3339Nano)
	w = doJSON(r, http.MethodGet, "/api/v1/channels/"+f.general.ID.String()+"/messages?before="+before, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Messages, 2)

	w = doJSON(r, http.MethodGet, "/api/v1/channels/"+f.general.ID.String()+"/messages?before=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/channels/not-a-uuid/messages", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/messages/"+first.ID.String()+"/thread", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var thread dto.ThreadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	assert.Equal(t, first.ID, thread.Parent.ID)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, "reply", thread.Replies[0].Content)

	outsider := historyRouter(f, f.outsider().ID)
	w = doJSON(outsider, http.MethodGet, "/api/v1/channels/"+f.general.ID.String()+"/messages", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(outsider, http.MethodGet, "/api/v1/messages/"+first.ID.String()+"/thread", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChannelHandler(t *testing.T) {
	f := newFixture(t)
	f.open(f.jane.ID)
	r := historyRouter(f, f.jane.ID)

	w := doJSON(r, http.MethodGet, "/api/v1/channels", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Channels []struct {
			Name string `json:"name"`
		} `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	names := []string{}
	for _, c := range list.Channels {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"general", "random"}, names)

	w = doJSON(r, http.MethodGet, "/api/v1/channels/"+f.general.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connections":1`)

	w = doJSON(r, http.MethodGet, "/api/v1/channels/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDirectMessageHandler_Conversation(t *testing.T) {
	f := newFixture(t)
	john := f.open(f.john.ID)
	jane := f.open(f.jane.ID)
	mallory := f.outsider()

	f.handle(john, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": f.jane.ID, "content": "lunch?"}))
	f.handle(jane, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": f.john.ID, "content": "sure"}))
	f.handle(john, jsonEvent(ws.TypeDMSend, map[string]interface{}{"toId": mallory.ID, "content": "not for jane"}))
	f.drainAll()

	r := historyRouter(f, f.jane.ID)
	w := doJSON(r, http.MethodGet, "/api/v1/direct-messages?userId="+f.john.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dms []models.DirectMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dms))
	require.Len(t, dms, 2)
	assert.Equal(t, "lunch?", dms[0].Content)
	assert.Equal(t, "john", dms[0].From.Username)
	assert.Equal(t, "jane", dms[0].To.Username)
	assert.Equal(t, "sure", dms[1].Content)
	assert.Equal(t, f.jane.ID, dms[1].FromID)

	w = doJSON(r, http.MethodGet, "/api/v1/direct-messages?userId="+mallory.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/v1/direct-messages", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodGet, "/api/v1/direct-messages?userId=john", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
