package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

type MemoryDirectoryRepository struct {
	peers     map[domain.PeerID]*domain.Peer
	freshness time.Duration
	mu        sync.RWMutex
}

// NewMemoryDirectoryRepository creates an in-process peer directory. Peers
// not touched within the freshness window are treated as gone and pruned
// lazily on List.
func NewMemoryDirectoryRepository(freshness time.Duration) ports.DirectoryRepository {
	return &MemoryDirectoryRepository{
		peers:     make(map[domain.PeerID]*domain.Peer),
		freshness: freshness,
	}
}

func (r *MemoryDirectoryRepository) Touch(ctx context.Context, peer *domain.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if peer.LastSeen.IsZero() {
		peer.LastSeen = time.Now()
	}

	existing, ok := r.peers[peer.ID]
	if !ok {
		r.peers[peer.ID] = peer
		return nil
	}

	existing.LastSeen = peer.LastSeen
	if peer.Address != "" {
		existing.Address = peer.Address
	}
	return nil
}

func (r *MemoryDirectoryRepository) Remove(ctx context.Context, id domain.PeerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; !ok {
		return domain.ErrPeerNotFound
	}
	delete(r.peers, id)
	return nil
}

func (r *MemoryDirectoryRepository) List(ctx context.Context) ([]*domain.Peer, error) {
	cutoff := time.Now().Add(-r.freshness)

	r.mu.Lock()
	defer r.mu.Unlock()

	live := make([]*domain.Peer, 0, len(r.peers))
	for id, peer := range r.peers {
		if peer.LastSeen.Before(cutoff) {
			delete(r.peers, id)
			continue
		}
		live = append(live, peer)
	}

	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live, nil
}
