package domain

import "errors"

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrMissingSender    = errors.New("sender_id is required")
	ErrMissingRecipient = errors.New("recipient_id is required")
	ErrSessionActive    = errors.New("a session is already active; stop it before connecting")
	ErrSessionClosed    = errors.New("session is closed")
	ErrNoSession        = errors.New("no active session")
)
