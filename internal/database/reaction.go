package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"gorm.io/gorm"
)

// ToggleReaction проверка и создание/удаление выполняются в одной транзакции.
// Уникальный индекс (message_id, user_id, emoji) превращает гонку двух созданий в ErrConflict.
func (d *Database) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*services.ReactionToggle, error) {
	var result services.ReactionToggle

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).First(&existing).Error

		switch {
		case err == nil:
			res := tx.Delete(&models.Reaction{}, "id = ?", existing.ID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrConflict
			}
			result = services.ReactionToggle{Added: false, Reaction: existing}
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			reaction := models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
			if err := tx.Omit("User").Create(&reaction).Error; err != nil {
				return err
			}
			if err := tx.Preload("User").First(&reaction, "id = ?", reaction.ID).Error; err != nil {
				return err
			}
			result = services.ReactionToggle{Added: true, Reaction: reaction}
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, translate(err)
	}
	return &result, nil
}
