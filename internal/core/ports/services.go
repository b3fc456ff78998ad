package ports

import (
	"context"

	"peerlink/internal/core/domain"
)

// RelayService is the rendezvous core: a read-only peer directory plus a
// store-and-forward signal mailbox.
type RelayService interface {
	ListPeers(ctx context.Context) ([]domain.PeerID, error)
	Send(ctx context.Context, env domain.Envelope) error
	Poll(ctx context.Context, id domain.PeerID) ([]domain.Delivery, error)
}
