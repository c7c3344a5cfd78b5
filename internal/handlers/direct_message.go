package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
)

type DirectMessageHandler struct {
	store services.DirectMessageStore
}

func NewDirectMessageHandler(store services.DirectMessageStore) *DirectMessageHandler {
	return &DirectMessageHandler{store: store}
}

// GetDirectMessages переписка с пользователем ?userId=
func (h *DirectMessageHandler) GetDirectMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	raw := c.Query("userId")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	otherID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	messages, err := h.store.ListDirectMessages(c.Request.Context(), userID, otherID)
	if err != nil {
		log.Error().Str("module", "dm").Str("user", userID.String()).Err(err).Msg("failed to list direct messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch direct messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}
