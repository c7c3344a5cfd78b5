package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
)

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

// MemoryStore хранилище в памяти для тестов и режима store=memory.
// Одна блокировка на всё: каждая операция атомарна.
type MemoryStore struct {
	mu sync.Mutex

	users            map[uuid.UUID]models.User
	workspaces       map[uuid.UUID]models.Workspace
	workspaceMembers map[uuid.UUID]map[uuid.UUID]bool
	channels         map[uuid.UUID]models.Channel
	channelMembers   map[uuid.UUID]map[uuid.UUID]bool
	messages         map[uuid.UUID]models.Message
	embeddings       map[uuid.UUID][]float32
	reactions        map[reactionKey]models.Reaction
	directMessages   map[uuid.UUID]models.DirectMessage
	files            map[uuid.UUID]models.File

	last time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:            make(map[uuid.UUID]models.User),
		workspaces:       make(map[uuid.UUID]models.Workspace),
		workspaceMembers: make(map[uuid.UUID]map[uuid.UUID]bool),
		channels:         make(map[uuid.UUID]models.Channel),
		channelMembers:   make(map[uuid.UUID]map[uuid.UUID]bool),
		messages:         make(map[uuid.UUID]models.Message),
		embeddings:       make(map[uuid.UUID][]float32),
		reactions:        make(map[reactionKey]models.Reaction),
		directMessages:   make(map[uuid.UUID]models.DirectMessage),
		files:            make(map[uuid.UUID]models.File),
	}
}

var _ services.Store = (*MemoryStore)(nil)

// now строго возрастает, чтобы порядок по времени совпадал с порядком записи
func (s *MemoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return services.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Status == "" {
		user.Status = models.StatusOffline
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *MemoryStore) SetUserStatus(_ context.Context, id uuid.UUID, status models.PresenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return services.ErrNotFound
	}
	u.Status = status
	s.users[id] = u
	return nil
}

func (s *MemoryStore) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.LastSeenAt = s.now()
		s.users[id] = u
	}
	return nil
}

func (s *MemoryStore) CreateWorkspace(_ context.Context, ws *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	ws.CreatedAt = s.now()
	s.workspaces[ws.ID] = *ws
	return nil
}

func (s *MemoryStore) AddWorkspaceMember(_ context.Context, workspaceID, userID uuid.UUID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workspaceMembers[workspaceID] == nil {
		s.workspaceMembers[workspaceID] = make(map[uuid.UUID]bool)
	}
	if s.workspaceMembers[workspaceID][userID] {
		return services.ErrConflict
	}
	s.workspaceMembers[workspaceID][userID] = true
	return nil
}

func (s *MemoryStore) CreateChannel(_ context.Context, channel *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	channel.CreatedAt = s.now()
	s.channels[channel.ID] = *channel
	return nil
}

func (s *MemoryStore) GetChannel(_ context.Context, id uuid.UUID) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) AddChannelMember(_ context.Context, channelID, userID uuid.UUID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channelMembers[channelID] == nil {
		s.channelMembers[channelID] = make(map[uuid.UUID]bool)
	}
	if s.channelMembers[channelID][userID] {
		return services.ErrConflict
	}
	s.channelMembers[channelID][userID] = true
	return nil
}

func (s *MemoryStore) IsChannelMember(_ context.Context, userID, channelID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelMembers[channelID][userID], nil
}

func (s *MemoryStore) IsWorkspaceMember(_ context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceMembers[workspaceID][userID], nil
}

func (s *MemoryStore) ListUserChannelIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0)
	for channelID, members := range s.channelMembers {
		if members[userID] {
			ids = append(ids, channelID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, message *models.Message, fileIDs ...uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fileID := range fileIDs {
		f, ok := s.files[fileID]
		if !ok || f.MessageID != nil {
			return nil, services.ErrConflict
		}
	}

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = s.now()
	message.UpdatedAt = message.CreatedAt
	stored := *message
	stored.User, stored.Files, stored.Reactions = models.User{}, nil, nil
	s.messages[message.ID] = stored

	for _, fileID := range fileIDs {
		f := s.files[fileID]
		id := message.ID
		f.MessageID = &id
		s.files[fileID] = f
	}

	return s.hydrate(stored), nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return s.hydrate(m), nil
}

func (s *MemoryStore) UpdateMessageContent(_ context.Context, id, authorID uuid.UUID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.UserID != authorID {
		return nil, services.ErrNotFound
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = s.now()
	s.messages[id] = m
	return s.hydrate(m), nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, id, authorID uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.UserID != authorID {
		return nil, services.ErrNotFound
	}

	doomed := map[uuid.UUID]bool{id: true}
	for mid, other := range s.messages {
		if other.ThreadParentID != nil && *other.ThreadParentID == id {
			doomed[mid] = true
		}
	}
	for key := range s.reactions {
		if doomed[key.messageID] {
			delete(s.reactions, key)
		}
	}
	for fid, f := range s.files {
		if f.MessageID != nil && doomed[*f.MessageID] {
			f.MessageID = nil
			s.files[fid] = f
		}
	}
	for mid := range doomed {
		delete(s.messages, mid)
		delete(s.embeddings, mid)
	}
	return &m, nil
}

func (s *MemoryStore) ListThreadReplies(_ context.Context, parentID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replies := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.ThreadParentID != nil && *m.ThreadParentID == parentID {
			replies = append(replies, *s.hydrate(m))
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
	return replies, nil
}

func (s *MemoryStore) ListChannelMessages(_ context.Context, channelID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.ChannelID != channelID || m.ThreadParentID != nil {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		messages = append(messages, *s.hydrate(m))
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *MemoryStore) SetMessageEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return services.ErrNotFound
	}
	s.embeddings[id] = append([]float32(nil), embedding...)
	return nil
}

// Embedding возвращает сохранённый вектор сообщения
func (s *MemoryStore) Embedding(id uuid.UUID) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.embeddings[id]
	return v, ok
}

func (s *MemoryStore) ToggleReaction(_ context.Context, messageID, userID uuid.UUID, emoji string) (*services.ReactionToggle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return nil, services.ErrNotFound
	}

	key := reactionKey{messageID: messageID, userID: userID, emoji: emoji}
	if existing, ok := s.reactions[key]; ok {
		delete(s.reactions, key)
		return &services.ReactionToggle{Added: false, Reaction: existing}, nil
	}

	reaction := models.Reaction{
		ID:        uuid.New(),
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: s.now(),
	}
	s.reactions[key] = reaction
	reaction.User = s.users[userID]
	return &services.ReactionToggle{Added: true, Reaction: reaction}, nil
}

// ReactionCount число реакций по тройке (message, user, emoji): 0 или 1
func (s *MemoryStore) ReactionCount(messageID, userID uuid.UUID, emoji string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reactions[reactionKey{messageID: messageID, userID: userID, emoji: emoji}]; ok {
		return 1
	}
	return 0
}

func (s *MemoryStore) CreateDirectMessage(_ context.Context, dm *models.DirectMessage) (*models.DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dm.ID == uuid.Nil {
		dm.ID = uuid.New()
	}
	dm.CreatedAt = s.now()
	saved := *dm
	saved.From = s.users[dm.FromID]
	saved.To = s.users[dm.ToID]
	s.directMessages[dm.ID] = saved
	return &saved, nil
}

func (s *MemoryStore) ListDirectMessages(_ context.Context, userID, otherID uuid.UUID) ([]models.DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.DirectMessage, 0)
	for _, dm := range s.directMessages {
		if (dm.FromID == userID && dm.ToID == otherID) || (dm.FromID == otherID && dm.ToID == userID) {
			dm.From = s.users[dm.FromID]
			dm.To = s.users[dm.ToID]
			messages = append(messages, dm)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// DirectMessageCount сколько личных сообщений сохранено
func (s *MemoryStore) DirectMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.directMessages)
}

func (s *MemoryStore) SaveFile(_ context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	file.CreatedAt = s.now()
	s.files[file.ID] = *file
	return nil
}

func (s *MemoryStore) GetFile(_ context.Context, id uuid.UUID) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &f, nil
}

// hydrate заполняет связи как Preload в gorm. Вызывать под s.mu.
func (s *MemoryStore) hydrate(m models.Message) *models.Message {
	m.User = s.users[m.UserID]
	m.Files = make([]models.File, 0)
	for _, f := range s.files {
		if f.MessageID != nil && *f.MessageID == m.ID {
			m.Files = append(m.Files, f)
		}
	}
	m.Reactions = make([]models.Reaction, 0)
	for key, r := range s.reactions {
		if key.messageID == m.ID {
			r.User = s.users[r.UserID]
			m.Reactions = append(m.Reactions, r)
		}
	}
	sort.Slice(m.Reactions, func(i, j int) bool {
		return m.Reactions[i].CreatedAt.Before(m.Reactions[j].CreatedAt)
	})
	return &m
}
