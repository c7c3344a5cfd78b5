package websocket

import "errors"

var (
	ErrClientQueueFull     = errors.New("client message queue is full")
	ErrInvalidMessage      = errors.New("invalid message format")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrUnknownEvent        = errors.New("unknown event type")
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrSessionNotFound     = errors.New("session not found")
)
