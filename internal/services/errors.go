// Package services defines the business logic for chat rooms, messages, and
// read-state. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages, HTTP status codes, or websocket close codes is
// performed at the handler layer.
package services

import "errors"

// Room-related errors.
var (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = errors.New("chat room not found")

	// ErrRoomConflict is returned when a room already exists for an
	// appointment but its stored participants disagree with the supplied
	// ones. This is a configuration-integrity failure, not a normal-path
	// case.
	ErrRoomConflict = errors.New("chat room participants conflict")

	// ErrAccessDenied is returned when an identity that is neither a room
	// participant nor an admin attempts to read, join, or write a room.
	ErrAccessDenied = errors.New("not a participant of this chat room")
)

// Message-related errors.
var (
	// ErrEmptyMessage is returned when a message carries no content and no
	// attachment reference.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrTooLong is returned when message content exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message content too long")

	// ErrBadKind is returned when a message kind is outside text/image/file.
	ErrBadKind = errors.New("unknown message kind")
)
