package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

func (d *Database) CreateDirectMessage(ctx context.Context, dm *models.DirectMessage) (*models.DirectMessage, error) {
	db := d.db.WithContext(ctx)
	if err := db.Omit("From", "To").Create(dm).Error; err != nil {
		return nil, translate(err)
	}

	var saved models.DirectMessage
	if err := db.Preload("From").Preload("To").First(&saved, "id = ?", dm.ID).Error; err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (d *Database) ListDirectMessages(ctx context.Context, userID, otherID uuid.UUID) ([]models.DirectMessage, error) {
	messages := make([]models.DirectMessage, 0)
	err := d.db.WithContext(ctx).
		Preload("From").
		Preload("To").
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", userID, otherID, otherID, userID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translate(err)
	}
	return messages, nil
}
