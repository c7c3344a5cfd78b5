package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

func (d *Database) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	return translate(d.db.WithContext(ctx).Create(ws).Error)
}

func (d *Database) AddWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID, role string) error {
	member := models.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	return translate(d.db.WithContext(ctx).Create(&member).Error)
}

func (d *Database) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return translate(d.db.WithContext(ctx).Create(channel).Error)
}

func (d *Database) GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	if err := d.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &channel, nil
}

func (d *Database) AddChannelMember(ctx context.Context, channelID, userID uuid.UUID, role string) error {
	member := models.ChannelMember{ChannelID: channelID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	return translate(d.db.WithContext(ctx).Create(&member).Error)
}

func (d *Database) IsChannelMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&n).Error
	return n > 0, translate(err)
}

func (d *Database) IsWorkspaceMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&n).Error
	return n > 0, translate(err)
}

func (d *Database) ListUserChannelIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).Model(&models.ChannelMember{}).
		Where("user_id = ?", userID).
		Pluck("channel_id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
