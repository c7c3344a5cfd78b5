package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Seeder операции, нужные для заполнения демо-данными
type Seeder interface {
	SaveUser(ctx context.Context, user *models.User) error
	CreateWorkspace(ctx context.Context, ws *models.Workspace) error
	AddWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID, role string) error
	CreateChannel(ctx context.Context, channel *models.Channel) error
	AddChannelMember(ctx context.Context, channelID, userID uuid.UUID, role string) error
}

var (
	_ Seeder = (*Database)(nil)
	_ Seeder = (*MemoryStore)(nil)
)

type SeedResult struct {
	Users     []models.User
	Workspace models.Workspace
	Channels  []models.Channel
}

// Seed создаёт двух пользователей, воркспейс и каналы general и random
func Seed(ctx context.Context, s Seeder, password string) (*SeedResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	res := &SeedResult{}
	for _, u := range []models.User{
		{Username: "john", Email: "john@example.com", FullName: "John Doe"},
		{Username: "jane", Email: "jane@example.com", FullName: "Jane Smith"},
	} {
		u.PasswordHash = string(hash)
		u.Status = models.StatusOffline
		if err := s.SaveUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		res.Users = append(res.Users, u)
	}

	res.Workspace = models.Workspace{Name: "Acme Corp", OwnerID: res.Users[0].ID}
	if err := s.CreateWorkspace(ctx, &res.Workspace); err != nil {
		return nil, fmt.Errorf("seed workspace: %w", err)
	}
	for i, u := range res.Users {
		role := "MEMBER"
		if i == 0 {
			role = "OWNER"
		}
		if err := s.AddWorkspaceMember(ctx, res.Workspace.ID, u.ID, role); err != nil {
			return nil, fmt.Errorf("seed workspace member: %w", err)
		}
	}

	for _, ch := range []models.Channel{
		{Name: "general", Description: "General discussion"},
		{Name: "random", Description: "Random stuff"},
	} {
		ch.WorkspaceID = res.Workspace.ID
		ch.CreatedBy = res.Users[0].ID
		if err := s.CreateChannel(ctx, &ch); err != nil {
			return nil, fmt.Errorf("seed channel %s: %w", ch.Name, err)
		}
		for _, u := range res.Users {
			if err := s.AddChannelMember(ctx, ch.ID, u.ID, "MEMBER"); err != nil {
				return nil, fmt.Errorf("seed channel member: %w", err)
			}
		}
		res.Channels = append(res.Channels, ch)
	}

	log.Info().Str("module", "database").Int("users", len(res.Users)).Int("channels", len(res.Channels)).Msg("database seeded")
	return res, nil
}
