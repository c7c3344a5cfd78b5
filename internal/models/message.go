package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChannelID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"channelId"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null" json:"userId"`
	ThreadParentID *uuid.UUID `gorm:"type:uuid;index" json:"threadParentId"`
	Content        string     `gorm:"not null" json:"content"`
	Edited         bool       `gorm:"default:false" json:"edited"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Заполняется асинхронно после сохранения сообщения
	Embedding *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`

	// Связи
	User      User       `gorm:"foreignKey:UserID" json:"user"`
	Files     []File     `gorm:"foreignKey:MessageID" json:"files"`
	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"reactions"`
}

// IsReply сообщает, является ли сообщение ответом в треде
func (m *Message) IsReply() bool {
	return m.ThreadParentID != nil
}
