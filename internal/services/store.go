package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserStatus(ctx context.Context, id uuid.UUID, status models.PresenceStatus) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

type MembershipStore interface {
	GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	IsChannelMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
	IsWorkspaceMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error)
	ListUserChannelIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type MessageStore interface {
	// CreateMessage сохраняет сообщение и прикрепляет файлы в одной транзакции.
	// Возвращённое сообщение содержит автора и файлы.
	CreateMessage(ctx context.Context, msg *models.Message, fileIDs ...uuid.UUID) (*models.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// UpdateMessageContent меняет текст только если authorID автор сообщения, иначе ErrNotFound
	UpdateMessageContent(ctx context.Context, id, authorID uuid.UUID, content string) (*models.Message, error)
	// DeleteMessage удаляет сообщение автора вместе с реакциями и ответами треда
	DeleteMessage(ctx context.Context, id, authorID uuid.UUID) (*models.Message, error)
	ListThreadReplies(ctx context.Context, parentID uuid.UUID) ([]models.Message, error)
	ListChannelMessages(ctx context.Context, channelID uuid.UUID, limit int, before *time.Time) ([]models.Message, error)
	SetMessageEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

// ReactionToggle результат переключения реакции
type ReactionToggle struct {
	Added    bool
	Reaction models.Reaction
}

type ReactionStore interface {
	// ToggleReaction атомарно создаёт или удаляет реакцию по (message, user, emoji).
	// При гонке возвращает ErrConflict.
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*ReactionToggle, error)
}

type DirectMessageStore interface {
	CreateDirectMessage(ctx context.Context, dm *models.DirectMessage) (*models.DirectMessage, error)
	// ListDirectMessages переписка двух пользователей в обе стороны, от старых к новым
	ListDirectMessages(ctx context.Context, userID, otherID uuid.UUID) ([]models.DirectMessage, error)
}

type FileStore interface {
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
}

// Store всё, что ядру нужно от хранилища
type Store interface {
	UserStore
	MembershipStore
	MessageStore
	ReactionStore
	DirectMessageStore
	FileStore
}
