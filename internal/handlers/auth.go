package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/pkg/auth"
)

type AuthHandler struct {
	users         services.UserStore
	jwtManager    *auth.JWTManager
	authenticator *auth.Authenticator
}

func NewAuthHandler(users services.UserStore, jwtMgr *auth.JWTManager, authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{users: users, jwtManager: jwtMgr, authenticator: authenticator}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot hash password"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Status:       models.StatusOffline,
		LastSeenAt:   time.Now().UTC(),
	}

	if err := h.users.SaveUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, services.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		log.Error().Str("module", "auth").Err(err).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	token, exp, err := h.issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterResponse{
		Uid:            user.ID.String(),
		Token:          token,
		TokenExpiresAt: exp,
	})
}

// Login выдаёт JWT и обновляет last_seen
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindUserByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := h.users.UpdateLastSeen(ctx, user.ID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update last seen"})
		return
	}

	token, exp, err := h.issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{Token: token, TokenExpiresAt: exp, User: user})
}

// Logout ставит токен в черный список до истечения
func (h *AuthHandler) Logout(c *gin.Context) {
	rawToken, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authenticator.Revoke(c.Request.Context(), rawToken); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		log.Error().Str("module", "auth").Err(err).Msg("failed to blacklist token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not revoke token"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *AuthHandler) issue(user *models.User) (string, string, error) {
	token, err := h.jwtManager.Issue(user.ID)
	if err != nil {
		return "", "", err
	}
	return token.Raw, token.ExpiresAt.Format(time.RFC3339), nil
}
