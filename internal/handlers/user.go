package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/middleware"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/websocket"
)

type UserHandler struct {
	users services.UserStore
	hub   *websocket.Hub
}

func NewUserHandler(users services.UserStore, hub *websocket.Hub) *UserHandler {
	return &UserHandler{users: users, hub: hub}
}

// GetMe возвращает информацию о текущем пользователе
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"fullName":   user.FullName,
		"avatarUrl":  user.AvatarURL,
		"status":     user.Status,
		"createdAt":  user.CreatedAt,
		"lastSeenAt": user.LastSeenAt,
		"sessions":   h.hub.Sessions().UserSessionCount(user.ID),
	})
}

// GetUser возвращает публичную информацию о пользователе по ID
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"fullName":   user.FullName,
		"avatarUrl":  user.AvatarURL,
		"status":     user.Status,
		"online":     h.hub.Sessions().UserSessionCount(user.ID) > 0,
		"lastSeenAt": user.LastSeenAt,
	})
}
