package websocket

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_RegisterUnregister(t *testing.T) {
	s := NewSessionStore(4)
	user := uuid.New()
	c1, c2 := uuid.New(), uuid.New()

	_, err := s.Register(c1, user)
	require.NoError(t, err)
	_, err = s.Register(c2, user)
	require.NoError(t, err)

	_, err = s.Register(c1, uuid.New())
	assert.ErrorIs(t, err, ErrDuplicateConnection)

	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.All(), 2)
	assert.Equal(t, 2, s.UserSessionCount(user))
	assert.ElementsMatch(t, []uuid.UUID{user}, s.OnlineUsers())

	sess, ok := s.Unregister(c1)
	require.True(t, ok)
	assert.Equal(t, user, sess.UserID)

	_, open := <-sess.Outbound()
	assert.False(t, open, "outbound queue is closed after unregister")

	_, ok = s.Unregister(c1)
	assert.False(t, ok)

	assert.Equal(t, 1, s.UserSessionCount(user))
	s.Unregister(c2)
	assert.Equal(t, 0, s.UserSessionCount(user))
	assert.Empty(t, s.OnlineUsers())
}

func TestSessionStore_DeliverDropsWhenFull(t *testing.T) {
	s := NewSessionStore(1)
	id := uuid.New()
	_, err := s.Register(id, uuid.New())
	require.NoError(t, err)

	sent, dropped := s.deliver([]uuid.UUID{id, uuid.New()}, []byte("a"))
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, dropped)

	sent, dropped = s.deliver([]uuid.UUID{id}, []byte("b"))
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, dropped)
}

func TestSessionStore_DeliverToUser(t *testing.T) {
	s := NewSessionStore(4)
	user := uuid.New()
	a, _ := s.Register(uuid.New(), user)
	b, _ := s.Register(uuid.New(), user)
	other, _ := s.Register(uuid.New(), uuid.New())

	sent, _ := s.deliverToUser(user, []byte("x"))
	assert.Equal(t, 2, sent)
	assert.Len(t, a.Outbound(), 1)
	assert.Len(t, b.Outbound(), 1)
	assert.Len(t, other.Outbound(), 0)
}

func TestSessionStore_ConcurrentDeliverAndUnregister(t *testing.T) {
	s := NewSessionStore(8)
	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
		_, err := s.Register(ids[i], uuid.New())
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.deliverAll([]byte("frame"))
			}
		}()
	}
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			s.Unregister(id)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}
