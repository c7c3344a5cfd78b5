package models

import (
	"time"

	"github.com/google/uuid"
)

// Reaction уникальна по тройке (message, user, emoji)
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_identity" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_identity" json:"userId"`
	Emoji     string    `gorm:"not null;uniqueIndex:idx_reaction_identity" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}
