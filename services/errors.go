package services

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfChat           = errors.New("cannot start a chat with yourself")
	ErrRoomNotFound       = errors.New("chat room not found")
	ErrNotGroup           = errors.New("chat room is not a group")
	ErrNotMember          = errors.New("user is not a member of the chat room")
	ErrNoMembers          = errors.New("at least one member email is required")
	ErrInvalidGroupName   = errors.New("group name must not be empty")
	ErrEmptyMessage       = errors.New("message body is empty")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidMessageType = errors.New("invalid message type")

	ErrInvalidCallType  = errors.New("invalid call type")
	ErrCallNotFound     = errors.New("call not found")
	ErrUnknownCallEvent = errors.New("unknown call event")

	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("name must not be empty")
	ErrWeakPassword       = errors.New("password is not strong enough")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found or expired")

	ErrStorageDisabled = errors.New("object storage is not configured")
)
