package persistence

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another run already holds the named lock.
var ErrLockHeld = errors.New("lock held")

// Lock is a held run lock.
type Lock interface {
	Release(ctx context.Context) error
}

// RunLocker prevents two runs of the same report from overlapping.
type RunLocker interface {
	TryAcquire(ctx context.Context, name string) (Lock, error)
}

// MemoryLocker serializes runs inside one process. Held locks expire after ttl so a
// crashed run cannot block forever.
type MemoryLocker struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seq  uint64
	held map[string]memoryLease
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker builds a process-local locker. A non-positive ttl never expires.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{ttl: ttl, now: time.Now, held: make(map[string]memoryLease)}
}

// TryAcquire takes the lock or returns ErrLockHeld.
func (m *MemoryLocker) TryAcquire(_ context.Context, name string) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if lease, ok := m.held[name]; ok && (lease.expires.IsZero() || now.Before(lease.expires)) {
		return nil, ErrLockHeld
	}
	m.seq++
	lease := memoryLease{token: m.seq}
	if m.ttl > 0 {
		lease.expires = now.Add(m.ttl)
	}
	m.held[name] = lease
	return &memoryLock{locker: m, name: name, token: lease.token}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	name   string
	token  uint64
}

func (l *memoryLock) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if lease, ok := l.locker.held[l.name]; ok && lease.token == l.token {
		delete(l.locker.held, l.name)
	}
	return nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares run locks between replicas through Redis.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLocker builds a Redis backed locker. Keys are prefix+name.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// TryAcquire sets the key with NX and the lock ttl.
func (r *RedisLocker) TryAcquire(ctx context.Context, name string) (Lock, error) {
	key := r.prefix + name
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLock{client: r.client, key: key, token: token}, nil
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release redis lock %s: %w", l.key, err)
	}
	return nil
}

// PostgresLocker uses session advisory locks. The connection is held for the life of
// the lock since advisory locks belong to the session.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

// NewPostgresLocker builds an advisory lock locker.
func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

// TryAcquire calls pg_try_advisory_lock on a key derived from name.
func (p *PostgresLocker) TryAcquire(ctx context.Context, name string) (Lock, error) {
	if p.pool == nil {
		return nil, errors.New("postgres pool not configured")
	}
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	key := AdvisoryKey(name)
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock %s: %w", name, err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLockHeld
	}
	return &postgresLock{conn: conn, key: key}, nil
}

type postgresLock struct {
	conn *pgxpool.Conn
	key  int64
}

func (l *postgresLock) Release(ctx context.Context) error {
	defer l.conn.Release()
	var ok bool
	err := l.conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&ok)
	if err == nil && !ok {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// AdvisoryKey hashes a lock name to a bigint key.
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("bug-digest:" + name))
	return int64(h.Sum64())
}
