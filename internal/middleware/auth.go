package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/metrics"
	"github.com/thereayou/teamchat/pkg/auth"
)

const UserIDKey = "userID"

// Verifier проверяет токен и возвращает его владельца
type Verifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// AuthMiddleware проверяет JWT токен из Authorization header
func AuthMiddleware(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Next()
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: токен из query или header,
// отказ до upgrade
func WSAuthMiddleware(verifier Verifier, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.GetHeader("Authorization"))
		}

		if token == "" {
			m.HandshakeRejected()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			m.HandshakeRejected()
			log.Debug().Str("module", "middleware").Err(err).Msg("websocket handshake rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Next()
	}
}
