package websocket

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/metrics"
)

// Hub связывает SessionStore и RoomRegistry и раздаёт кадры подписчикам.
// Создаётся один раз при старте и передаётся явно.
type Hub struct {
	sessions *SessionStore
	rooms    *RoomRegistry
	metrics  *metrics.Metrics
}

func NewHub(sessions *SessionStore, rooms *RoomRegistry, m *metrics.Metrics) *Hub {
	return &Hub{
		sessions: sessions,
		rooms:    rooms,
		metrics:  m,
	}
}

func (h *Hub) Sessions() *SessionStore { return h.sessions }

func (h *Hub) Rooms() *RoomRegistry { return h.rooms }

// Register регистрирует новую сессию
func (h *Hub) Register(connID, userID uuid.UUID) (*Session, error) {
	sess, err := h.sessions.Register(connID, userID)
	if err != nil {
		return nil, err
	}
	h.updateGauges()

	log.Info().Str("module", "ws.hub").Str("conn", connID.String()).Str("user", userID.String()).Msg("session registered")
	return sess, nil
}

// Disconnect снимает сессию и удаляет соединение из всех комнат
func (h *Hub) Disconnect(connID uuid.UUID) (*Session, bool) {
	sess, ok := h.sessions.Unregister(connID)
	h.rooms.LeaveAll(connID)
	h.updateGauges()

	if ok {
		log.Info().Str("module", "ws.hub").Str("conn", connID.String()).Str("user", sess.UserID.String()).Msg("session unregistered")
	}
	return sess, ok
}

// Join добавляет соединение в комнату.
// Disconnect снимает сессию раньше, чем чистит комнаты, поэтому повторная проверка
// после вступления убирает подписку, если сессия ушла между двумя шагами.
func (h *Hub) Join(room RoomID, connID uuid.UUID) {
	if _, ok := h.sessions.Get(connID); !ok {
		return
	}
	if !h.rooms.Join(room, connID) {
		return
	}
	if _, ok := h.sessions.Get(connID); !ok {
		h.rooms.Leave(room, connID)
		h.metrics.SetRooms(h.rooms.Len())
		return
	}
	h.metrics.SetRooms(h.rooms.Len())
	log.Debug().Str("module", "ws.hub").Str("conn", connID.String()).Str("room", string(room)).Msg("joined room")
}

// Leave удаляет соединение из комнаты
func (h *Hub) Leave(room RoomID, connID uuid.UUID) {
	if h.rooms.Leave(room, connID) {
		h.metrics.SetRooms(h.rooms.Len())
	}
}

// Broadcast отправляет событие всем подписчикам комнаты.
// Не блокируется и не сообщает об ошибках доставки.
func (h *Hub) Broadcast(room RoomID, event EventType, payload interface{}) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	sent, dropped := h.sessions.deliver(h.rooms.Members(room), frame)
	h.observe(string(room), event, sent, dropped)
	return nil
}

// BroadcastToAll отправляет событие всем подключённым сессиям, только для presence
func (h *Hub) BroadcastToAll(event EventType, payload interface{}) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	sent, dropped := h.sessions.deliverAll(frame)
	h.observe("*", event, sent, dropped)
	return nil
}

// SendToUser отправляет событие на все устройства пользователя
func (h *Hub) SendToUser(userID uuid.UUID, event EventType, payload interface{}) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	sent, dropped := h.sessions.deliverToUser(userID, frame)
	h.observe("user:"+userID.String(), event, sent, dropped)
	return nil
}

// SendToSession отправляет событие одному соединению
func (h *Hub) SendToSession(connID uuid.UUID, event EventType, payload interface{}) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	sent, dropped := h.sessions.deliver([]uuid.UUID{connID}, frame)
	h.metrics.Delivered(sent, dropped)
	switch {
	case dropped > 0:
		return ErrClientQueueFull
	case sent == 0:
		return ErrSessionNotFound
	}
	return nil
}

// SendError локальное уведомление об ошибке только для отправителя
func (h *Hub) SendError(connID uuid.UUID, message string) {
	if err := h.SendToSession(connID, TypeError, message); err != nil {
		log.Debug().Str("module", "ws.hub").Str("conn", connID.String()).Err(err).Msg("failed to send error")
	}
}

// Shutdown закрывает все сессии, WritePump каждого клиента отправит close
func (h *Hub) Shutdown() {
	closed := h.sessions.closeAll()
	for _, sess := range closed {
		h.rooms.LeaveAll(sess.ID)
	}
	h.updateGauges()
	log.Info().Str("module", "ws.hub").Int("sessions", len(closed)).Msg("hub stopped")
}

func (h *Hub) observe(target string, event EventType, sent, dropped int) {
	h.metrics.Delivered(sent, dropped)
	if dropped > 0 {
		log.Warn().Str("module", "ws.hub").Str("target", target).Str("event", string(event)).Int("dropped", dropped).Msg("send queue full")
	}
	log.Debug().Str("module", "ws.hub").Str("target", target).Str("event", string(event)).Int("sent_to", sent).Msg("broadcast result")
}

func (h *Hub) updateGauges() {
	h.metrics.SetSessions(h.sessions.Len())
	h.metrics.SetUsers(h.sessions.usersLen())
	h.metrics.SetRooms(h.rooms.Len())
}
