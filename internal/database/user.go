package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Create(user).Error)
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (d *Database) SetUserStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error {
	res := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (d *Database) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	return translate(d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now().UTC()).Error)
}
