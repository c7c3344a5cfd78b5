package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSendBuffer = 256

// Session состояние одного аутентифицированного соединения.
// Не меняется после регистрации, исходящая очередь принадлежит SessionStore.
type Session struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ConnectedAt time.Time

	send chan []byte
}

// Outbound очередь кадров для WritePump. Закрывается при Unregister.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// SessionStore живые соединения по id и по пользователю
type SessionStore struct {
	mu sync.RWMutex

	sessions map[uuid.UUID]*Session

	// Один пользователь может иметь несколько соединений
	byUser map[uuid.UUID]map[uuid.UUID]*Session

	bufferSize int
}

func NewSessionStore(bufferSize int) *SessionStore {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	return &SessionStore{
		sessions:   make(map[uuid.UUID]*Session),
		byUser:     make(map[uuid.UUID]map[uuid.UUID]*Session),
		bufferSize: bufferSize,
	}
}

// Register создаёт сессию, ErrDuplicateConnection если id уже занят
func (s *SessionStore) Register(connID, userID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[connID]; ok {
		return nil, ErrDuplicateConnection
	}

	sess := &Session{
		ID:          connID,
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan []byte, s.bufferSize),
	}
	s.sessions[connID] = sess

	if _, ok := s.byUser[userID]; !ok {
		s.byUser[userID] = make(map[uuid.UUID]*Session)
	}
	s.byUser[userID][connID] = sess

	return sess, nil
}

// Unregister идемпотентен. Закрывает исходящую очередь под записью,
// поэтому доставка под чтением никогда не пишет в закрытый канал.
func (s *SessionStore) Unregister(connID uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[connID]
	if !ok {
		return nil, false
	}
	delete(s.sessions, connID)

	if userSessions, ok := s.byUser[sess.UserID]; ok {
		delete(userSessions, connID)
		if len(userSessions) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}

	close(sess.send)
	return sess, true
}

func (s *SessionStore) Get(connID uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[connID]
	return sess, ok
}

func (s *SessionStore) SessionsForUser(userID uuid.UUID) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.byUser[userID]))
	for _, sess := range s.byUser[userID] {
		out = append(out, sess)
	}
	return out
}

func (s *SessionStore) UserSessionCount(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// All снимок всех живых сессий
func (s *SessionStore) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// OnlineUsers пользователи хотя бы с одним соединением
func (s *SessionStore) OnlineUsers() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(s.byUser))
	for userID := range s.byUser {
		users = append(users, userID)
	}
	return users
}

func (s *SessionStore) usersLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}

// deliver ставит кадр в очереди указанных сессий без блокировки.
// Отсутствующие сессии пропускаются, переполненные очереди теряют кадр.
func (s *SessionStore) deliver(connIDs []uuid.UUID, frame []byte) (sent, dropped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range connIDs {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if enqueue(sess, frame) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

func (s *SessionStore) deliverToUser(userID uuid.UUID, frame []byte) (sent, dropped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.byUser[userID] {
		if enqueue(sess, frame) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

func (s *SessionStore) deliverAll(frame []byte) (sent, dropped int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if enqueue(sess, frame) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

// closeAll снимает все сессии, используется при остановке сервера
func (s *SessionStore) closeAll() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		close(sess.send)
		delete(s.sessions, id)
		out = append(out, sess)
	}
	s.byUser = make(map[uuid.UUID]map[uuid.UUID]*Session)
	return out
}

func enqueue(sess *Session, frame []byte) bool {
	select {
	case sess.send <- frame:
		return true
	default:
		return false
	}
}
