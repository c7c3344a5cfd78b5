package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/handlers/dto"
	"github.com/thereayou/teamchat/internal/metrics"
	"github.com/thereayou/teamchat/internal/models"
	"github.com/thereayou/teamchat/internal/services"
	"github.com/thereayou/teamchat/internal/websocket"
)

const maxToggleAttempts = 3

// Enricher фоновая вторая фаза записи сообщения
type Enricher interface {
	Enqueue(messageID uuid.UUID, content string) bool
}

// EventProcessor обрабатывает входящие события: проверка, авторизация, запись, рассылка
type EventProcessor struct {
	store     services.Store
	authority services.MembershipAuthority
	hub       *websocket.Hub
	sanitizer services.Sanitizer
	enricher  Enricher
	metrics   *metrics.Metrics
}

func NewEventProcessor(
	store services.Store,
	authority services.MembershipAuthority,
	hub *websocket.Hub,
	sanitizer services.Sanitizer,
	enricher Enricher,
	m *metrics.Metrics,
) *EventProcessor {
	return &EventProcessor{
		store:     store,
		authority: authority,
		hub:       hub,
		sanitizer: sanitizer,
		enricher:  enricher,
		metrics:   m,
	}
}

var _ websocket.EventHandler = (*EventProcessor)(nil)

func (p *EventProcessor) HandleEvent(ctx context.Context, sess *websocket.Session, ev websocket.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "processor").Str("event", string(ev.Type())).Interface("panic", r).Msg("event handler panicked")
			p.metrics.Event(string(ev.Type()), "panic")
			p.hub.SendError(sess.ID, "internal error")
		}
	}()

	var err error
	switch e := ev.(type) {
	case *websocket.NewMessage:
		err = p.handleNewMessage(ctx, sess, e)
	case *websocket.EditMessage:
		err = p.handleEditMessage(ctx, sess, e)
	case *websocket.DeleteMessage:
		err = p.handleDeleteMessage(ctx, sess, e)
	case *websocket.AddReaction:
		err = p.handleReaction(ctx, sess, e)
	case *websocket.ThreadReply:
		err = p.handleThreadReply(ctx, sess, e)
	case *websocket.GetThread:
		err = p.handleGetThread(ctx, sess, e)
	case *websocket.SendDM:
		err = p.handleDirectMessage(ctx, sess, e)
	case *websocket.UpdatePresence:
		err = p.handlePresence(ctx, sess, e)
	case *websocket.ShareFile:
		err = p.handleShareFile(ctx, sess, e)
	case *websocket.JoinChannel:
		err = p.handleJoinChannel(ctx, sess, e)
	default:
		err = fmt.Errorf("%w: %s", websocket.ErrUnknownEvent, ev.Type())
	}

	p.finish(sess, ev, err)
}

// finish решает, что клиент узнает об ошибке.
// Отказ в доступе молчаливый, ошибки формы и хранилища приходят как error.
func (p *EventProcessor) finish(sess *websocket.Session, ev websocket.Event, err error) {
	event := string(ev.Type())
	logger := log.With().Str("module", "processor").Str("event", event).Str("conn", sess.ID.String()).Str("user", sess.UserID.String()).Logger()

	switch {
	case err == nil:
		p.metrics.Event(event, "ok")
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrNotFound):
		p.metrics.Event(event, "denied")
		logger.Debug().Err(err).Msg("event dropped")
	case errors.Is(err, websocket.ErrInvalidPayload):
		p.metrics.Event(event, "invalid")
		p.hub.SendError(sess.ID, "invalid payload")
	case errors.Is(err, websocket.ErrUnknownEvent):
		p.metrics.Event(event, "invalid")
		p.hub.SendError(sess.ID, "unknown event type")
	default:
		p.metrics.Event(event, "error")
		logger.Error().Err(err).Msg("failed to handle event")
		p.hub.SendError(sess.ID, "failed to process "+event)
	}
}

func (p *EventProcessor) handleNewMessage(ctx context.Context, sess *websocket.Session, e *websocket.NewMessage) error {
	if err := p.requireChannelMember(ctx, sess.UserID, e.ChannelID); err != nil {
		return err
	}

	content, err := p.clean(e.Content)
	if err != nil {
		return err
	}

	msg, err := p.store.CreateMessage(ctx, &models.Message{
		ChannelID: e.ChannelID,
		UserID:    sess.UserID,
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	p.broadcast(websocket.ChannelRoom(msg.ChannelID), websocket.TypeMessageNew, msg)
	p.enrich(msg)
	return nil
}

func (p *EventProcessor) handleEditMessage(ctx context.Context, sess *websocket.Session, e *websocket.EditMessage) error {
	existing, err := p.ownMessage(ctx, sess.UserID, e.MessageID, e.ChannelID)
	if err != nil {
		return err
	}

	content, err := p.clean(e.Content)
	if err != nil {
		return err
	}

	// Условие по автору в самом UPDATE, сообщение могли удалить между чтением и записью
	updated, err := p.store.UpdateMessageContent(ctx, existing.ID, sess.UserID, content)
	if err != nil {
		return err
	}

	p.broadcast(websocket.ChannelRoom(updated.ChannelID), websocket.TypeMessageUpdated, updated)
	p.enrich(updated)
	return nil
}

func (p *EventProcessor) handleDeleteMessage(ctx context.Context, sess *websocket.Session, e *websocket.DeleteMessage) error {
	existing, err := p.ownMessage(ctx, sess.UserID, e.MessageID, e.ChannelID)
	if err != nil {
		return err
	}

	deleted, err := p.store.DeleteMessage(ctx, existing.ID, sess.UserID)
	if err != nil {
		return err
	}

	p.broadcast(websocket.ChannelRoom(deleted.ChannelID), websocket.TypeMessageDeleted, dto.MessageDeletedPayload{MessageID: deleted.ID})
	return nil
}

func (p *EventProcessor) handleReaction(ctx context.Context, sess *websocket.Session, e *websocket.AddReaction) error {
	msg, err := p.store.GetMessage(ctx, e.MessageID)
	if err != nil {
		return err
	}
	if e.ChannelID != uuid.Nil && e.ChannelID != msg.ChannelID {
		return services.ErrForbidden
	}
	if err := p.requireChannelMember(ctx, sess.UserID, msg.ChannelID); err != nil {
		return err
	}

	var toggle *services.ReactionToggle
	for attempt := 1; ; attempt++ {
		toggle, err = p.store.ToggleReaction(ctx, msg.ID, sess.UserID, e.Emoji)
		if !errors.Is(err, services.ErrConflict) || attempt == maxToggleAttempts {
			break
		}
		log.Debug().Str("module", "processor").Str("message", msg.ID.String()).Int("attempt", attempt).Msg("reaction toggle conflict, retrying")
	}
	if err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}

	room := websocket.ChannelRoom(msg.ChannelID)
	if toggle.Added {
		p.broadcast(room, websocket.TypeReactionAdded, toggle.Reaction)
	} else {
		p.broadcast(room, websocket.TypeReactionRemoved, dto.ReactionRemovedPayload{
			MessageID:  msg.ID,
			ReactionID: toggle.Reaction.ID,
		})
	}
	return nil
}

func (p *EventProcessor) handleThreadReply(ctx context.Context, sess *websocket.Session, e *websocket.ThreadReply) error {
	if err := p.requireChannelMember(ctx, sess.UserID, e.ChannelID); err != nil {
		return err
	}

	parent, err := p.store.GetMessage(ctx, e.ParentID)
	if err != nil {
		return err
	}
	if parent.ChannelID != e.ChannelID {
		return services.ErrForbidden
	}

	// Треды одноуровневые: ответ на ответ уходит в корневой тред
	rootID := parent.ID
	if parent.IsReply() {
		rootID = *parent.ThreadParentID
	}

	content, err := p.clean(e.Content)
	if err != nil {
		return err
	}

	reply, err := p.store.CreateMessage(ctx, &models.Message{
		ChannelID:      e.ChannelID,
		UserID:         sess.UserID,
		ThreadParentID: &rootID,
		Content:        content,
	})
	if err != nil {
		return fmt.Errorf("create reply: %w", err)
	}

	p.broadcast(websocket.ChannelRoom(reply.ChannelID), websocket.TypeThreadReply, reply)
	p.enrich(reply)
	return nil
}

func (p *EventProcessor) handleGetThread(ctx context.Context, sess *websocket.Session, e *websocket.GetThread) error {
	parent, err := p.store.GetMessage(ctx, e.MessageID)
	if err != nil {
		return err
	}
	if err := p.requireChannelMember(ctx, sess.UserID, parent.ChannelID); err != nil {
		return err
	}

	replies, err := p.store.ListThreadReplies(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("list replies: %w", err)
	}

	if err := p.hub.SendToSession(sess.ID, websocket.TypeThreadReplies, replies); err != nil {
		log.Warn().Str("module", "processor").Str("conn", sess.ID.String()).Err(err).Msg("failed to send thread replies")
	}
	return nil
}

func (p *EventProcessor) handleDirectMessage(ctx context.Context, sess *websocket.Session, e *websocket.SendDM) error {
	if _, err := p.store.GetUser(ctx, e.ToID); err != nil {
		return err
	}

	content, err := p.clean(e.Content)
	if err != nil {
		return err
	}

	dm, err := p.store.CreateDirectMessage(ctx, &models.DirectMessage{
		FromID:  sess.UserID,
		ToID:    e.ToID,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("create direct message: %w", err)
	}

	// Все устройства отправителя и получателя, каждое ровно один раз
	if err := p.hub.SendToUser(sess.UserID, websocket.TypeDMMessage, dm); err != nil {
		log.Error().Str("module", "processor").Err(err).Msg("failed to encode dm")
	}
	if e.ToID != sess.UserID {
		p.broadcast(websocket.UserRoom(e.ToID), websocket.TypeDMMessage, dm)
	}
	return nil
}

func (p *EventProcessor) handlePresence(ctx context.Context, sess *websocket.Session, e *websocket.UpdatePresence) error {
	if err := p.store.SetUserStatus(ctx, sess.UserID, e.Status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if err := p.hub.BroadcastToAll(websocket.TypePresenceUpdate, dto.PresencePayload{UserID: sess.UserID, Status: e.Status}); err != nil {
		log.Error().Str("module", "processor").Err(err).Msg("failed to encode presence")
	}
	return nil
}

func (p *EventProcessor) handleShareFile(ctx context.Context, sess *websocket.Session, e *websocket.ShareFile) error {
	if err := p.requireChannelMember(ctx, sess.UserID, e.ChannelID); err != nil {
		return err
	}

	file, err := p.store.GetFile(ctx, e.FileID)
	if err != nil {
		return err
	}
	if file.UserID != sess.UserID || file.MessageID != nil {
		return services.ErrForbidden
	}

	content := ""
	if strings.TrimSpace(e.Content) != "" {
		content = p.sanitizer.Sanitize(e.Content)
	}

	msg, err := p.store.CreateMessage(ctx, &models.Message{
		ChannelID: e.ChannelID,
		UserID:    sess.UserID,
		Content:   content,
	}, file.ID)
	if errors.Is(err, services.ErrConflict) {
		// файл успели прикрепить к другому сообщению
		return services.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("create file message: %w", err)
	}

	p.broadcast(websocket.ChannelRoom(msg.ChannelID), websocket.TypeMessageNew, msg)
	if content != "" {
		p.enrich(msg)
	}
	return nil
}

func (p *EventProcessor) handleJoinChannel(ctx context.Context, sess *websocket.Session, e *websocket.JoinChannel) error {
	ok, err := p.authority.CanJoinChannel(ctx, sess.UserID, e.ChannelID)
	if err != nil {
		return fmt.Errorf("check channel access: %w", err)
	}
	if !ok {
		return services.ErrForbidden
	}

	p.hub.Join(websocket.ChannelRoom(e.ChannelID), sess.ID)
	return nil
}

func (p *EventProcessor) requireChannelMember(ctx context.Context, userID, channelID uuid.UUID) error {
	ok, err := p.authority.IsChannelMember(ctx, userID, channelID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return services.ErrForbidden
	}
	return nil
}

// ownMessage сообщение, которое пользователь может менять.
// channelID из запроса необязателен, но если указан, должен совпадать.
func (p *EventProcessor) ownMessage(ctx context.Context, userID, messageID, channelID uuid.UUID) (*models.Message, error) {
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if channelID != uuid.Nil && channelID != msg.ChannelID {
		return nil, services.ErrForbidden
	}
	if msg.UserID != userID {
		return nil, services.ErrForbidden
	}
	return msg, nil
}

// clean санитизирует текст. Пустой после очистки текст считается ошибкой формы.
func (p *EventProcessor) clean(raw string) (string, error) {
	content := p.sanitizer.Sanitize(raw)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content after sanitizing", websocket.ErrInvalidPayload)
	}
	return content, nil
}

func (p *EventProcessor) broadcast(room websocket.RoomID, event websocket.EventType, payload interface{}) {
	if err := p.hub.Broadcast(room, event, payload); err != nil {
		log.Error().Str("module", "processor").Str("room", string(room)).Str("event", string(event)).Err(err).Msg("failed to encode broadcast")
	}
}

func (p *EventProcessor) enrich(msg *models.Message) {
	if p.enricher == nil {
		return
	}
	p.enricher.Enqueue(msg.ID, msg.Content)
}
