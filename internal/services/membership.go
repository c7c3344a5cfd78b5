package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// MembershipAuthority отвечает на вопрос "может ли пользователь действовать здесь".
// Только чтение, членство меняет HTTP API.
type MembershipAuthority interface {
	IsChannelMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
	IsWorkspaceMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error)
	CanJoinChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

type storeAuthority struct {
	store MembershipStore
}

func NewMembershipAuthority(store MembershipStore) MembershipAuthority {
	return &storeAuthority{store: store}
}

func (a *storeAuthority) IsChannelMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	return a.store.IsChannelMember(ctx, userID, channelID)
}

func (a *storeAuthority) IsWorkspaceMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	return a.store.IsWorkspaceMember(ctx, userID, workspaceID)
}

// CanJoinChannel требует членства и в канале, и в его воркспейсе
func (a *storeAuthority) CanJoinChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	channel, err := a.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	ok, err := a.store.IsWorkspaceMember(ctx, userID, channel.WorkspaceID)
	if err != nil || !ok {
		return false, err
	}

	return a.store.IsChannelMember(ctx, userID, channelID)
}
