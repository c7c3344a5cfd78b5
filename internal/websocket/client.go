package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

// EventHandler обрабатывает разобранные события одного соединения по порядку
type EventHandler interface {
	HandleEvent(ctx context.Context, sess *Session, ev Event)
}

type ClientConfig struct {
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration

	// Лимит входящих событий в секунду и всплеск
	EventRate  float64
	EventBurst int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.ReadLimit <= 0 {
		c.ReadLimit = maxMessageSize
	}
	if c.PongWait <= 0 {
		c.PongWait = pongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = writeWait
	}
	if c.EventRate <= 0 {
		c.EventRate = 20
	}
	if c.EventBurst <= 0 {
		c.EventBurst = 40
	}
	return c
}

// Client транспорт одной сессии поверх gorilla websocket
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Session
	limiter *rate.Limiter
	cfg     ClientConfig
}

func NewClient(hub *Hub, conn *websocket.Conn, session *Session, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(cfg.EventRate), cfg.EventBurst),
		cfg:     cfg,
	}
}

func (c *Client) Session() *Session { return c.session }

// ReadPump читает события клиента и передаёт их обработчику строго по порядку.
// Возвращается при ошибке чтения; снятие сессии делает вызывающий.
func (c *Client) ReadPump(ctx context.Context, handler EventHandler) {
	defer c.conn.Close()

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	logger := log.With().Str("module", "ws.client").Str("conn", c.session.ID.String()).Logger()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		if !c.limiter.Allow() {
			c.hub.SendError(c.session.ID, "rate limit exceeded")
			continue
		}

		ev, err := ParseEvent(raw)
		if err != nil {
			logger.Debug().Err(err).Msg("rejected frame")
			c.hub.SendError(c.session.ID, clientError(err))
			continue
		}

		if _, ok := ev.(*Ping); ok {
			c.hub.SendToSession(c.session.ID, TypePong, nil)
			continue
		}

		if handler != nil {
			handler.HandleEvent(ctx, c.session, ev)
		}
	}
}

// WritePump отправляет кадры из очереди сессии клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	out := c.session.Outbound()
	for {
		select {
		case frame, ok := <-out:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				// Сессия снята
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func clientError(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return "unknown event type"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid payload"
	}
	return ErrInvalidMessage.Error()
}
