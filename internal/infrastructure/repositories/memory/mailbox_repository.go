package memory

import (
	"context"
	"sync"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

type MemoryMailboxRepository struct {
	queues map[domain.PeerID][]domain.Envelope
	mu     sync.Mutex
}

func NewMemoryMailboxRepository() ports.MailboxRepository {
	return &MemoryMailboxRepository{
		queues: make(map[domain.PeerID][]domain.Envelope),
	}
}

func (r *MemoryMailboxRepository) Append(ctx context.Context, env domain.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues[env.RecipientID] = append(r.queues[env.RecipientID], env)
	return nil
}

func (r *MemoryMailboxRepository) Drain(ctx context.Context, id domain.PeerID) ([]domain.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queued := r.queues[id]
	if len(queued) == 0 {
		return nil, nil
	}

	delete(r.queues, id)
	return queued, nil
}
