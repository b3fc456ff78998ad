package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// drainScript reads and deletes a mailbox list in a single atomic step so
// that an envelope can never be handed to two concurrent polls.
var drainScript = redis.NewScript(`
local items = redis.call("LRANGE", KEYS[1], 0, -1)
redis.call("DEL", KEYS[1])
return items
`)

type RedisMailboxRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisMailboxRepository(client *redis.Client) ports.MailboxRepository {
	return &RedisMailboxRepository{
		client: client,
		prefix: "peerlink:mailbox:",
	}
}

func (r *RedisMailboxRepository) mailboxKey(id domain.PeerID) string {
	return r.prefix + string(id)
}

func (r *RedisMailboxRepository) Append(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := r.client.RPush(ctx, r.mailboxKey(env.RecipientID), data).Err(); err != nil {
		return fmt.Errorf("failed to push envelope to Redis: %w", err)
	}
	return nil
}

func (r *RedisMailboxRepository) Drain(ctx context.Context, id domain.PeerID) ([]domain.Envelope, error) {
	raw, err := drainScript.Run(ctx, r.client, []string{r.mailboxKey(id)}).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to drain mailbox from Redis: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	envelopes := make([]domain.Envelope, 0, len(raw))
	for _, item := range raw {
		var env domain.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}
