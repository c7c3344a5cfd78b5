package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/websocket"
)

type ChannelHandler struct {
	store     services.MembershipStore
	authority services.MembershipAuthority
	hub       *websocket.Hub
}

func NewChannelHandler(store services.MembershipStore, authority services.MembershipAuthority, hub *websocket.Hub) *ChannelHandler {
	return &ChannelHandler{store: store, authority: authority, hub: hub}
}

// GetMyChannels каналы, в которых состоит пользователь
func (h *ChannelHandler) GetMyChannels(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	ctx := c.Request.Context()

	ids, err := h.store.ListUserChannelIDs(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get channels"})
		return
	}

	channels := make([]models.Channel, 0, len(ids))
	for _, id := range ids {
		channel, err := h.store.GetChannel(ctx, id)
		if err != nil {
			continue
		}
		channels = append(channels, *channel)
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// GetChannel канал и число подключённых к его комнате соединений
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	ctx := c.Request.Context()
	allowed, err := h.authority.CanJoinChannel(ctx, userID, channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	channel, err := h.store.GetChannel(ctx, channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":     channel,
		"connections": len(h.hub.Rooms().Members(websocket.ChannelRoom(channel.ID))),
	})
}
