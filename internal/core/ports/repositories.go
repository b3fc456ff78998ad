package ports

import (
	"context"

	"peerlink/internal/core/domain"
)

// DirectoryRepository is the process-wide registry of reachable peers.
// Entries expire by absence: List only returns peers seen within the
// configured freshness window.
type DirectoryRepository interface {
	Touch(ctx context.Context, peer *domain.Peer) error
	Remove(ctx context.Context, id domain.PeerID) error
	List(ctx context.Context) ([]*domain.Peer, error)
}

// MailboxRepository is the store-and-forward queue of undelivered envelopes,
// one FIFO sequence per recipient.
type MailboxRepository interface {
	// Append adds an envelope to the recipient's queue. Unknown recipients
	// are accepted silently; the queue is created on first append.
	Append(ctx context.Context, env domain.Envelope) error

	// Drain atomically removes and returns everything queued for the peer,
	// oldest first. An envelope is returned by exactly one Drain call.
	Drain(ctx context.Context, id domain.PeerID) ([]domain.Envelope, error)
}
