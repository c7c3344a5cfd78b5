package models

import (
	"time"

	"github.com/google/uuid"
)

type Workspace struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null" json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type WorkspaceMember struct {
	WorkspaceID uuid.UUID `gorm:"type:uuid;primaryKey" json:"workspaceId"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"userId"`
	Role        string    `gorm:"default:'MEMBER'" json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type Channel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspaceId"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `gorm:"default:false" json:"isPrivate"`
	CreatedBy   uuid.UUID `gorm:"type:uuid" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ChannelMember struct {
	ChannelID uuid.UUID `gorm:"type:uuid;primaryKey" json:"channelId"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"userId"`
	Role      string    `gorm:"default:'MEMBER'" json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}
