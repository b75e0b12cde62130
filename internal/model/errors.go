package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrInvalidUsername = errors.New("username must be 1-15 characters")

	// Message errors
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageAuthor = errors.New("message belongs to a different author")
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrMessageTooLong   = errors.New("message content is too long")

	// Room errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomCodeTaken   = errors.New("room code is already in use")
	ErrInvalidRoomCode = errors.New("room code must be six digits")
	ErrInvalidRoomName = errors.New("room name is too long")

	// Throttling
	ErrRateLimited = errors.New("rate limit exceeded")
)
