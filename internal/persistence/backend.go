package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/repository"
)

const redisLockPrefix = "bug-digest:lock:"

// Backend holds the run locker, run history and whatever store backs them. History is
// kept in Postgres for the postgres backend and in process memory otherwise.
type Backend struct {
	Locker   RunLocker
	History  repository.RunRepository
	Postgres *Postgres
	Redis    *Redis
}

// Open connects the store selected by the lock backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		rd := NewRedis(ctx, cfg.Redis, logger)
		return &Backend{
			Locker:  NewRedisLocker(rd.Client, redisLockPrefix, cfg.Lock.TTL()),
			History: repository.NewMemoryRunRepository(cfg.Reports.HistorySize),
			Redis:   rd,
		}, nil
	case config.LockBackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &Backend{
			Locker:   NewPostgresLocker(pg.Pool),
			History:  repository.NewRunRepository(pg.Pool),
			Postgres: pg,
		}, nil
	case config.LockBackendMemory, "":
		return &Backend{
			Locker:  NewMemoryLocker(cfg.Lock.TTL()),
			History: repository.NewMemoryRunRepository(cfg.Reports.HistorySize),
		}, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

// Check pings each connected store. The map is empty for the memory backend.
func (b *Backend) Check(ctx context.Context) map[string]error {
	status := map[string]error{}
	if b.Postgres != nil {
		status["postgres"] = b.Postgres.Ping(ctx)
	}
	if b.Redis != nil {
		status["redis"] = b.Redis.Ping(ctx)
	}
	return status
}

// Close releases connections.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	b.Postgres.Close()
	b.Redis.Close()
}
