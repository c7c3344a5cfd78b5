package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/middleware"
	ws "github.com/thereayou/teamchat/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	ctx       context.Context
	hub       *ws.Hub
	lifecycle *Lifecycle
	processor ws.EventHandler
	upgrader  websocket.Upgrader
	clientCfg ws.ClientConfig
}

// NewWebSocketHandler создает новый WebSocket handler.
// ctx живёт дольше запроса: соединения обрабатываются после возврата из хендлера.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, lifecycle *Lifecycle, processor ws.EventHandler, allowedOrigins []string, clientCfg ws.ClientConfig) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:       ctx,
		hub:       hub,
		lifecycle: lifecycle,
		processor: processor,
		clientCfg: clientCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	value, exists := c.Get(middleware.UserIDKey)
	userID, ok := value.(uuid.UUID)
	if !exists || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "ws.handler").Err(err).Msg("upgrade failed")
		return
	}

	connID := uuid.New()
	sess, err := h.lifecycle.Open(h.ctx, connID, userID)
	if err != nil {
		log.Error().Str("module", "ws.handler").Str("user", userID.String()).Err(err).Msg("failed to open session")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"))
		conn.Close()
		return
	}

	client := ws.NewClient(h.hub, conn, sess, h.clientCfg)

	go client.WritePump()
	go func() {
		client.ReadPump(h.ctx, h.processor)
		h.lifecycle.Close(context.Background(), connID)
	}()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// не браузерные клиенты Origin не присылают
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
