package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"gorm.io/gorm"
)

// CreateMessage сохраняет сообщение и прикрепляет файлы одной транзакцией
func (d *Database) CreateMessage(ctx context.Context, message *models.Message, fileIDs ...uuid.UUID) (*models.Message, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Files", "Reactions").Create(message).Error; err != nil {
			return err
		}

		for _, fileID := range fileIDs {
			res := tx.Model(&models.File{}).
				Where("id = ? AND message_id IS NULL", fileID).
				Update("message_id", message.ID)
			if res.Error != nil {
				return res.Error
			}
			// файл исчез или уже прикреплён
			if res.RowsAffected == 0 {
				return services.ErrConflict
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	return d.GetMessage(ctx, message.ID)
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := d.preloaded(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

// UpdateMessageContent обновляет текст одним запросом с проверкой автора
func (d *Database) UpdateMessageContent(ctx context.Context, id, authorID uuid.UUID, content string) (*models.Message, error) {
	res := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND user_id = ?", id, authorID).
		Updates(map[string]interface{}{
			"content": content,
			"edited":  true,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, services.ErrNotFound
	}
	return d.GetMessage(ctx, id)
}

// DeleteMessage удаляет сообщение автора, его реакции и ответы треда, файлы открепляются
func (d *Database) DeleteMessage(ctx context.Context, id, authorID uuid.UUID) (*models.Message, error) {
	var message models.Message

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&message, "id = ? AND user_id = ?", id, authorID).Error; err != nil {
			return err
		}

		var ids []uuid.UUID
		if err := tx.Model(&models.Message{}).Where("thread_parent_id = ?", id).Pluck("id", &ids).Error; err != nil {
			return err
		}
		ids = append(ids, id)

		if err := tx.Where("message_id IN ?", ids).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.File{}).Where("message_id IN ?", ids).Update("message_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_parent_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", id, authorID).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

// ListThreadReplies возвращает ответы треда от старых к новым
func (d *Database) ListThreadReplies(ctx context.Context, parentID uuid.UUID) ([]models.Message, error) {
	replies := make([]models.Message, 0)
	err := d.preloaded(ctx).
		Where("thread_parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&replies).Error
	if err != nil {
		return nil, translate(err)
	}
	return replies, nil
}

// ListChannelMessages получает сообщения канала верхнего уровня с пагинацией
func (d *Database) ListChannelMessages(ctx context.Context, channelID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	messages := make([]models.Message, 0, limit)

	query := d.preloaded(ctx).Where("channel_id = ? AND thread_parent_id IS NULL", channelID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, translate(err)
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// SetMessageEmbedding вторая фаза записи: вектор добавляется после доставки
func (d *Database) SetMessageEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	res := d.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Update("embedding", &vec)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (d *Database) preloaded(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Omit("embedding").
		Preload("User").
		Preload("Files").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Reactions.User")
}
