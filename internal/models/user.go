package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus статус присутствия пользователя
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusAway    PresenceStatus = "AWAY"
	StatusBusy    PresenceStatus = "BUSY"
	StatusOffline PresenceStatus = "OFFLINE"
)

// Valid сообщает, является ли статус одним из известных
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string         `json:"fullName,omitempty"`
	PasswordHash string         `gorm:"not null" json:"-"`
	AvatarURL    string         `json:"avatarUrl,omitempty"`
	Status       PresenceStatus `gorm:"type:varchar(16);default:'OFFLINE'" json:"status"`
	LastSeenAt   time.Time      `json:"lastSeenAt"`
	CreatedAt    time.Time      `json:"createdAt"`
}
