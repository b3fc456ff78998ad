package services

import (
	"context"
	"fmt"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// RelayMetrics is the subset of the monitoring collector the relay service
// reports into. Nil-safe via NopRelayMetrics.
type RelayMetrics interface {
	RecordEnvelopeAccepted(kind domain.SignalKind)
	RecordPollDrained(batchSize int)
	SetPeersOnline(count int)
}

// NopRelayMetrics discards all measurements.
type NopRelayMetrics struct{}

func (NopRelayMetrics) RecordEnvelopeAccepted(domain.SignalKind) {}
func (NopRelayMetrics) RecordPollDrained(int)                   {}
func (NopRelayMetrics) SetPeersOnline(int)                      {}

// RelayService implements the rendezvous core: peer directory plus signal
// mailbox. Send and Poll both refresh the acting peer's directory entry, so
// any relay traffic counts as liveness.
type RelayService struct {
	directory ports.DirectoryRepository
	mailbox   ports.MailboxRepository
	metrics   RelayMetrics
	logger    *zap.SugaredLogger
}

func NewRelayService(
	directory ports.DirectoryRepository,
	mailbox ports.MailboxRepository,
	metrics RelayMetrics,
	logger *zap.SugaredLogger,
) *RelayService {
	if metrics == nil {
		metrics = NopRelayMetrics{}
	}
	return &RelayService{
		directory: directory,
		mailbox:   mailbox,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListPeers returns the identities currently present in the directory. The
// caller is not excluded server-side.
func (s *RelayService) ListPeers(ctx context.Context) ([]domain.PeerID, error) {
	peers, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}

	ids := make([]domain.PeerID, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	s.metrics.SetPeersOnline(len(ids))
	return ids, nil
}

// Send validates and enqueues an envelope for its recipient. An unknown
// recipient is accepted silently: the mailbox stores for peers that may
// register later.
func (s *RelayService) Send(ctx context.Context, env domain.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	if err := s.mailbox.Append(ctx, env); err != nil {
		return fmt.Errorf("failed to enqueue envelope: %w", err)
	}
	s.metrics.RecordEnvelopeAccepted(env.Signal.Kind)

	s.touch(ctx, env.SenderID)

	s.logger.Debugw("envelope accepted",
		"sender_id", env.SenderID,
		"recipient_id", env.RecipientID,
		"kind", env.Signal.Kind,
	)
	return nil
}

// Poll atomically drains everything queued for the peer, oldest first. A
// second immediate poll returns empty.
func (s *RelayService) Poll(ctx context.Context, id domain.PeerID) ([]domain.Delivery, error) {
	if id == "" {
		return nil, domain.ErrMissingRecipient
	}

	envelopes, err := s.mailbox.Drain(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to drain mailbox for %s: %w", id, err)
	}
	s.metrics.RecordPollDrained(len(envelopes))

	s.touch(ctx, id)

	deliveries := make([]domain.Delivery, 0, len(envelopes))
	for _, env := range envelopes {
		deliveries = append(deliveries, domain.Delivery{
			SenderID: env.SenderID,
			Signal:   env.Signal,
		})
	}
	return deliveries, nil
}

func (s *RelayService) touch(ctx context.Context, id domain.PeerID) {
	err := s.directory.Touch(ctx, &domain.Peer{ID: id, LastSeen: time.Now()})
	if err != nil {
		// Liveness bookkeeping is best-effort; the envelope path already
		// succeeded.
		s.logger.Warnw("failed to refresh directory entry", "peer_id", id, "error", err)
	}
}
