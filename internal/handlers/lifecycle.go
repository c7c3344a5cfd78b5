package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/websocket"
	"github.com/thereayou/teamchat/pkg/auth"
)

// TokenVerifier проверка токена без знания о пользователях
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Lifecycle ведёт соединение от рукопожатия до отключения
type Lifecycle struct {
	verifier TokenVerifier
	store    services.Store
	hub      *websocket.Hub
}

func NewLifecycle(verifier TokenVerifier, store services.Store, hub *websocket.Hub) *Lifecycle {
	return &Lifecycle{verifier: verifier, store: store, hub: hub}
}

// Verify проверяет токен и что пользователь существует. Вызывается до upgrade.
func (l *Lifecycle) Verify(ctx context.Context, token string) (auth.Identity, error) {
	identity, err := l.verifier.Verify(ctx, token)
	if err != nil {
		return auth.Identity{}, err
	}
	if _, err := l.store.GetUser(ctx, identity.UserID); err != nil {
		return auth.Identity{}, fmt.Errorf("%w: unknown user", auth.ErrInvalidToken)
	}
	return identity, nil
}

// Open регистрирует сессию, подписывает на комнаты каналов и личную комнату,
// помечает пользователя онлайн
func (l *Lifecycle) Open(ctx context.Context, connID, userID uuid.UUID) (*websocket.Session, error) {
	sess, err := l.hub.Register(connID, userID)
	if err != nil {
		return nil, err
	}

	channelIDs, err := l.store.ListUserChannelIDs(ctx, userID)
	if err != nil {
		l.hub.Disconnect(connID)
		return nil, fmt.Errorf("list channels: %w", err)
	}

	for _, id := range channelIDs {
		l.hub.Join(websocket.ChannelRoom(id), sess.ID)
	}
	l.hub.Join(websocket.UserRoom(userID), sess.ID)

	l.announce(ctx, userID, models.StatusOnline)

	log.Info().Str("module", "lifecycle").Str("conn", connID.String()).Str("user", userID.String()).Int("channels", len(channelIDs)).Msg("connection opened")
	return sess, nil
}

// Close снимает сессию. OFFLINE только когда у пользователя не осталось соединений,
// иначе рассылается текущий статус.
func (l *Lifecycle) Close(ctx context.Context, connID uuid.UUID) {
	sess, ok := l.hub.Disconnect(connID)
	if !ok {
		return
	}

	if err := l.store.UpdateLastSeen(ctx, sess.UserID); err != nil {
		log.Warn().Str("module", "lifecycle").Str("user", sess.UserID.String()).Err(err).Msg("failed to update last seen")
	}

	if l.hub.Sessions().UserSessionCount(sess.UserID) == 0 {
		l.announce(ctx, sess.UserID, models.StatusOffline)
		// новое устройство могло успеть объявить ONLINE до записи OFFLINE
		if l.hub.Sessions().UserSessionCount(sess.UserID) > 0 {
			l.announce(ctx, sess.UserID, models.StatusOnline)
		}
	} else {
		status := models.StatusOnline
		if user, err := l.store.GetUser(ctx, sess.UserID); err == nil && user.Status.Valid() {
			status = user.Status
		}
		l.broadcastPresence(sess.UserID, status)
	}

	log.Info().Str("module", "lifecycle").Str("conn", connID.String()).Str("user", sess.UserID.String()).Msg("connection closed")
}

func (l *Lifecycle) announce(ctx context.Context, userID uuid.UUID, status models.PresenceStatus) {
	if err := l.store.SetUserStatus(ctx, userID, status); err != nil {
		log.Warn().Str("module", "lifecycle").Str("user", userID.String()).Err(err).Msg("failed to store presence")
	}
	l.broadcastPresence(userID, status)
}

func (l *Lifecycle) broadcastPresence(userID uuid.UUID, status models.PresenceStatus) {
	if err := l.hub.BroadcastToAll(websocket.TypePresenceUpdate, dto.PresencePayload{UserID: userID, Status: status}); err != nil {
		log.Error().Str("module", "lifecycle").Err(err).Msg("failed to encode presence")
	}
}
