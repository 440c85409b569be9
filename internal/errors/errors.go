package errors

import (
	"errors"
)

// Moderation error kinds
var (
	ErrChatNotRegistered = errors.New("chat is not registered")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrNoPrivileges      = errors.New("not enough privileges")
)
