package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/thereayou/teamchat/internal/models"
)

// EventType имя события на проводе
type EventType string

const (
	// Системные типы
	TypePing  EventType = "ping"
	TypePong  EventType = "pong"
	TypeError EventType = "error"

	// Входящие
	TypeMessageNew     EventType = "message:new"
	TypeMessageEdit    EventType = "message:edit"
	TypeMessageDelete  EventType = "message:delete"
	TypeReactionAdd    EventType = "reaction:add"
	TypeThreadReply    EventType = "thread:reply"
	TypeThreadGet      EventType = "thread:get"
	TypeDMSend         EventType = "dm:send"
	TypePresenceUpdate EventType = "presence:update"
	TypeFileShare      EventType = "file:share"
	TypeChannelJoin    EventType = "channel:join"

	// Исходящие
	TypeMessageUpdated  EventType = "message:updated"
	TypeMessageDeleted  EventType = "message:deleted"
	TypeThreadReplies   EventType = "thread:replies"
	TypeReactionAdded   EventType = "reaction:added"
	TypeReactionRemoved EventType = "reaction:removed"
	TypeDMMessage       EventType = "dm:message"
)

const (
	maxContentLength = 10000
	maxEmojiLength   = 64
)

// Envelope кадр на проводе в обе стороны
type Envelope struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Encode собирает исходящий кадр
func Encode(eventType EventType, payload interface{}) ([]byte, error) {
	env := Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", eventType, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// Event входящее событие клиента. Каждый тип со своей статически известной формой.
type Event interface {
	Type() EventType
	Validate() error
}

type Ping struct{}

type NewMessage struct {
	ChannelID uuid.UUID `json:"channelId"`
	Content   string    `json:"content"`
}

type EditMessage struct {
	MessageID uuid.UUID `json:"messageId"`
	ChannelID uuid.UUID `json:"channelId"`
	Content   string    `json:"content"`
}

type DeleteMessage struct {
	MessageID uuid.UUID `json:"messageId"`
	ChannelID uuid.UUID `json:"channelId"`
}

type AddReaction struct {
	MessageID uuid.UUID `json:"messageId"`
	ChannelID uuid.UUID `json:"channelId"`
	Emoji     string    `json:"emoji"`
}

type ThreadReply struct {
	ChannelID uuid.UUID `json:"channelId"`
	ParentID  uuid.UUID `json:"parentId"`
	Content   string    `json:"content"`
}

// GetThread принимает {"messageId": "..."} или просто строку с id
type GetThread struct {
	MessageID uuid.UUID `json:"messageId"`
}

type SendDM struct {
	ToID    uuid.UUID `json:"toId"`
	Content string    `json:"content"`
}

// UpdatePresence принимает {"status": "AWAY"} или просто "AWAY"
type UpdatePresence struct {
	Status models.PresenceStatus `json:"status"`
}

type ShareFile struct {
	ChannelID uuid.UUID `json:"channelId"`
	FileID    uuid.UUID `json:"fileId"`
	Content   string    `json:"content,omitempty"`
}

type JoinChannel struct {
	ChannelID uuid.UUID `json:"channelId"`
}

func (*Ping) Type() EventType           { return TypePing }
func (*NewMessage) Type() EventType     { return TypeMessageNew }
func (*EditMessage) Type() EventType    { return TypeMessageEdit }
func (*DeleteMessage) Type() EventType  { return TypeMessageDelete }
func (*AddReaction) Type() EventType    { return TypeReactionAdd }
func (*ThreadReply) Type() EventType    { return TypeThreadReply }
func (*GetThread) Type() EventType      { return TypeThreadGet }
func (*SendDM) Type() EventType         { return TypeDMSend }
func (*UpdatePresence) Type() EventType { return TypePresenceUpdate }
func (*ShareFile) Type() EventType      { return TypeFileShare }
func (*JoinChannel) Type() EventType    { return TypeChannelJoin }

func (*Ping) Validate() error { return nil }

func (e *NewMessage) Validate() error {
	return firstErr(requireID("channelId", e.ChannelID), requireContent(e.Content))
}

func (e *EditMessage) Validate() error {
	return firstErr(requireID("messageId", e.MessageID), requireContent(e.Content))
}

func (e *DeleteMessage) Validate() error {
	return requireID("messageId", e.MessageID)
}

func (e *AddReaction) Validate() error {
	if err := requireID("messageId", e.MessageID); err != nil {
		return err
	}
	emoji := strings.TrimSpace(e.Emoji)
	if emoji == "" || len(emoji) > maxEmojiLength {
		return fmt.Errorf("%w: emoji", ErrInvalidPayload)
	}
	e.Emoji = emoji
	return nil
}

func (e *ThreadReply) Validate() error {
	return firstErr(requireID("channelId", e.ChannelID), requireID("parentId", e.ParentID), requireContent(e.Content))
}

func (e *GetThread) Validate() error {
	return requireID("messageId", e.MessageID)
}

func (e *SendDM) Validate() error {
	return firstErr(requireID("toId", e.ToID), requireContent(e.Content))
}

func (e *UpdatePresence) Validate() error {
	e.Status = models.PresenceStatus(strings.ToUpper(string(e.Status)))
	if !e.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidPayload, e.Status)
	}
	return nil
}

func (e *ShareFile) Validate() error {
	if err := firstErr(requireID("channelId", e.ChannelID), requireID("fileId", e.FileID)); err != nil {
		return err
	}
	if utf8.RuneCountInString(e.Content) > maxContentLength {
		return fmt.Errorf("%w: content too long", ErrInvalidPayload)
	}
	return nil
}

func (e *JoinChannel) Validate() error {
	return requireID("channelId", e.ChannelID)
}

func (e *GetThread) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &e.MessageID)
	}
	type plain GetThread
	return json.Unmarshal(data, (*plain)(e))
}

func (e *UpdatePresence) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &e.Status)
	}
	type plain UpdatePresence
	return json.Unmarshal(data, (*plain)(e))
}

// ParseEvent разбирает кадр клиента в типизированное событие
func ParseEvent(raw []byte) (Event, error) {
	var env struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrInvalidMessage
	}

	var ev Event
	switch env.Type {
	case TypePing:
		return &Ping{}, nil
	case TypeMessageNew:
		ev = &NewMessage{}
	case TypeMessageEdit:
		ev = &EditMessage{}
	case TypeMessageDelete:
		ev = &DeleteMessage{}
	case TypeReactionAdd:
		ev = &AddReaction{}
	case TypeThreadReply:
		ev = &ThreadReply{}
	case TypeThreadGet:
		ev = &GetThread{}
	case TypeDMSend:
		ev = &SendDM{}
	case TypePresenceUpdate:
		ev = &UpdatePresence{}
	case TypeFileShare:
		ev = &ShareFile{}
	case TypeChannelJoin:
		ev = &JoinChannel{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(env.Data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func requireID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
	}
	return nil
}

func requireContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidPayload)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return fmt.Errorf("%w: content too long", ErrInvalidPayload)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
