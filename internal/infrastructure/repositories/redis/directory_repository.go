package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisDirectoryRepository stores peer presence in a sorted set scored by
// the last-seen unix timestamp; stale members are pruned on List.
type RedisDirectoryRepository struct {
	client    *redis.Client
	setKey    string
	addrKey   string
	freshness time.Duration
}

func NewRedisDirectoryRepository(client *redis.Client, freshness time.Duration) ports.DirectoryRepository {
	return &RedisDirectoryRepository{
		client:    client,
		setKey:    "peerlink:directory",
		addrKey:   "peerlink:directory:addresses",
		freshness: freshness,
	}
}

func (r *RedisDirectoryRepository) Touch(ctx context.Context, peer *domain.Peer) error {
	lastSeen := peer.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, r.setKey, redis.Z{
		Score:  float64(lastSeen.Unix()),
		Member: string(peer.ID),
	})
	if peer.Address != "" {
		pipe.HSet(ctx, r.addrKey, string(peer.ID), peer.Address)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to touch peer in Redis: %w", err)
	}
	return nil
}

func (r *RedisDirectoryRepository) Remove(ctx context.Context, id domain.PeerID) error {
	removed, err := r.client.ZRem(ctx, r.setKey, string(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove peer from Redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrPeerNotFound
	}

	if err := r.client.HDel(ctx, r.addrKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove peer address from Redis: %w", err)
	}
	return nil
}

func (r *RedisDirectoryRepository) List(ctx context.Context) ([]*domain.Peer, error) {
	cutoff := time.Now().Add(-r.freshness).Unix()

	// Prune before reading so crashed peers age out without a reaper.
	if err := r.client.ZRemRangeByScore(ctx, r.setKey, "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune stale peers in Redis: %w", err)
	}

	members, err := r.client.ZRangeByScoreWithScores(ctx, r.setKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list peers from Redis: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.Member.(string))
	}
	addrs, err := r.client.HMGet(ctx, r.addrKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch peer addresses from Redis: %w", err)
	}

	peers := make([]*domain.Peer, 0, len(members))
	for i, m := range members {
		peer := &domain.Peer{
			ID:       domain.PeerID(ids[i]),
			LastSeen: time.Unix(int64(m.Score), 0),
		}
		if addr, ok := addrs[i].(string); ok {
			peer.Address = addr
		}
		peers = append(peers, peer)
	}
	return peers, nil
}
