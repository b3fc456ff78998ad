package repositories

import (
	"peerlink/internal/core/ports"
	"peerlink/internal/infrastructure/repositories/memory"
	redisrepo "peerlink/internal/infrastructure/repositories/redis"
	"peerlink/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateDirectoryRepository creates a peer directory (Redis or memory with fallback)
func (f *RepositoryFactory) CreateDirectoryRepository() ports.DirectoryRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisDirectoryRepository(f.redisClient, f.cfg.Relay.PeerFreshness)
	}
	return memory.NewMemoryDirectoryRepository(f.cfg.Relay.PeerFreshness)
}

// CreateMailboxRepository creates a signal mailbox (Redis or memory with fallback)
func (f *RepositoryFactory) CreateMailboxRepository() ports.MailboxRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisMailboxRepository(f.redisClient)
	}
	return memory.NewMemoryMailboxRepository()
}

// Close releases factory-owned resources
func (f *RepositoryFactory) Close() error {
	return redisrepo.CloseRedisClient(f.redisClient)
}
