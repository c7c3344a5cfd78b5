package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

func (d *Database) SaveFile(ctx context.Context, file *models.File) error {
	return translate(d.db.WithContext(ctx).Create(file).Error)
}

func (d *Database) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var file models.File
	if err := d.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &file, nil
}
