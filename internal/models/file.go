package models

import (
	"time"

	"github.com/google/uuid"
)

// File загружается через HTTP, к сообщению прикрепляется через file:share
type File struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Filename  string     `gorm:"not null" json:"filename"`
	Path      string     `gorm:"not null" json:"path"`
	MimeType  string     `json:"mimeType"`
	Size      int64      `json:"size"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null" json:"userId"`
	MessageID *uuid.UUID `gorm:"type:uuid;index" json:"messageId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
