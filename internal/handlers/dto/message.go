package dto

import (
	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

// PresencePayload данные presence:update
type PresencePayload struct {
	UserID uuid.UUID             `json:"userId"`
	Status models.PresenceStatus `json:"status"`
}

// MessageDeletedPayload данные message:deleted
type MessageDeletedPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

// ReactionRemovedPayload данные reaction:removed
type ReactionRemovedPayload struct {
	MessageID  uuid.UUID `json:"messageId"`
	ReactionID uuid.UUID `json:"reactionId"`
}

type MessagesPage struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

type ThreadResponse struct {
	Parent  *models.Message  `json:"parent"`
	Replies []models.Message `json:"replies"`
}
