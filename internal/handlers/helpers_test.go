package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/internal/metrics"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	ws "github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/sanitize"
)

type recordingEnricher struct {
	mu   sync.Mutex
	jobs []uuid.UUID
}

func (r *recordingEnricher) Enqueue(id uuid.UUID, _ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, id)
	return true
}

type fixture struct {
	t   *testing.T
	ctx context.Context

	mem       *database.MemoryStore
	hub       *ws.Hub
	lifecycle *Lifecycle
	proc      *EventProcessor
	enricher  *recordingEnricher
	metrics   *metrics.Metrics

	john, jane      models.User
	workspace       models.Workspace
	general, random models.Channel
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(m *database.MemoryStore) services.Store { return m })
}

// newFixtureWith позволяет подменить часть хранилища
func newFixtureWith(t *testing.T, wrap func(*database.MemoryStore) services.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := database.NewMemoryStore()
	seed, err := database.Seed(ctx, mem, "password123")
	require.NoError(t, err)

	store := wrap(mem)
	m := metrics.New(prometheus.NewRegistry())
	hub := ws.NewHub(ws.NewSessionStore(64), ws.NewRoomRegistry(), m)
	enricher := &recordingEnricher{}

	return &fixture{
		t:         t,
		ctx:       ctx,
		mem:       mem,
		hub:       hub,
		lifecycle: NewLifecycle(nil, store, hub),
		proc:      NewEventProcessor(store, services.NewMembershipAuthority(store), hub, sanitize.New(), enricher, m),
		enricher:  enricher,
		metrics:   m,
		john:      seed.Users[0],
		jane:      seed.Users[1],
		workspace: seed.Workspace,
		general:   seed.Channels[0],
		random:    seed.Channels[1],
	}
}

// open подключает пользователя и очищает очереди всех сессий
func (f *fixture) open(userID uuid.UUID) *ws.Session {
	f.t.Helper()
	sess, err := f.lifecycle.Open(f.ctx, uuid.New(), userID)
	require.NoError(f.t, err)
	f.drainAll()
	return sess
}

func (f *fixture) outsider() models.User {
	f.t.Helper()
	u := models.User{Username: "mallory", Email: "mallory@example.com", PasswordHash: "x"}
	require.NoError(f.t, f.mem.SaveUser(f.ctx, &u))
	return u
}

func (f *fixture) handle(sess *ws.Session, raw string) {
	f.t.Helper()
	ev, err := ws.ParseEvent([]byte(raw))
	require.NoError(f.t, err, raw)
	f.proc.HandleEvent(f.ctx, sess, ev)
}

func (f *fixture) drainAll() {
	for _, sess := range f.hub.Sessions().All() {
		drain(f.t, sess)
	}
}

func (f *fixture) post(sess *ws.Session, channelID uuid.UUID, content string) *models.Message {
	f.t.Helper()
	f.handle(sess, jsonEvent(ws.TypeMessageNew, map[string]interface{}{"channelId": channelID, "content": content}))
	frames := drain(f.t, sess)
	require.NotEmpty(f.t, frames)
	var msg models.Message
	require.NoError(f.t, json.Unmarshal(frames[0].Data, &msg))
	f.drainAll()
	return &msg
}

func jsonEvent(t ws.EventType, data interface{}) string {
	raw, err := json.Marshal(map[string]interface{}{"type": t, "data": data})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func drain(t *testing.T, sess *ws.Session) []ws.Envelope {
	t.Helper()
	var out []ws.Envelope
	for {
		select {
		case frame, ok := <-sess.Outbound():
			if !ok {
				return out
			}
			var env ws.Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func ofType(frames []ws.Envelope, t ws.EventType) []ws.Envelope {
	var out []ws.Envelope
	for _, f := range frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}
