package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type HTTPMessageHandler struct {
	messages  services.MessageStore
	authority services.MembershipAuthority
}

func NewHTTPMessageHandler(messages services.MessageStore, authority services.MembershipAuthority) *HTTPMessageHandler {
	return &HTTPMessageHandler{messages: messages, authority: authority}
}

// GetChannelMessages история канала, только сообщения верхнего уровня по возрастанию времени
func (h *HTTPMessageHandler) GetChannelMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	ctx := c.Request.Context()
	isMember, err := h.authority.IsChannelMember(ctx, userID, channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this channel"})
		return
	}

	// Параметры пагинации
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	var before *time.Time
	if b := c.Query("before"); b != "" {
		t, err := time.Parse(time.RFC3339Nano, b)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
			return
		}
		before = &t
	}

	messages, err := h.messages.ListChannelMessages(ctx, channelID, limit, before)
	if err != nil {
		log.Error().Str("module", "history").Str("channel", channelID.String()).Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, dto.MessagesPage{
		Messages: messages,
		HasMore:  len(messages) == limit,
	})
}

// GetThread корневое сообщение и ответы треда
func (h *HTTPMessageHandler) GetThread(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	ctx := c.Request.Context()
	parent, err := h.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get message"})
		return
	}

	isMember, err := h.authority.IsChannelMember(ctx, userID, parent.ChannelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		// не раскрываем существование сообщения
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	replies, err := h.messages.ListThreadReplies(ctx, parent.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get replies"})
		return
	}

	c.JSON(http.StatusOK, dto.ThreadResponse{Parent: parent, Replies: replies})
}
