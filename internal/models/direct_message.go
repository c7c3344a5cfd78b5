package models

import (
	"time"

	"github.com/google/uuid"
)

type DirectMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FromID    uuid.UUID `gorm:"type:uuid;not null;index:idx_dm_pair" json:"fromId"`
	ToID      uuid.UUID `gorm:"type:uuid;not null;index:idx_dm_pair" json:"toId"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	From User `gorm:"foreignKey:FromID" json:"from"`
	To   User `gorm:"foreignKey:ToID" json:"to"`
}
