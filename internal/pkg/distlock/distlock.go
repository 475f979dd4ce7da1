// Package distlock serializes work across worker processes, either through
// Redis SET NX keys or PostgreSQL advisory locks.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// ErrNotHeld reports that a lock is no longer owned by the caller.
var ErrNotHeld = errors.New("lock not held")

// Extender is implemented by locks that expire and can be renewed.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// KeepAlive renews l every ttl/3 until stop is called or ctx is done, so a
// batch that outlives ttl keeps its lock. Locks that do not expire are left
// alone. onLost, if set, is called once when a renewal finds the lock gone.
func KeepAlive(ctx context.Context, l DistLock, ttl time.Duration, onLost func(error)) (stop func()) {
	ext, ok := l.(Extender)
	if !ok || ttl <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := ext.Extend(ctx, ttl)
				if err == nil || ctx.Err() != nil {
					continue
				}
				if errors.Is(err, ErrNotHeld) {
					if onLost != nil {
						onLost(err)
					}
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Factory creates a fresh lock for a key. Workers call it once per unit of work.
type Factory func(key string) DistLock

// NewFactory returns a Factory using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Factory {
	return func(key string) DistLock {
		return NewLock(redisClient, db, key, ttl)
	}
}

// NewLock creates a distributed lock using the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock must be taken and
// released on the same pooled connection. The lock is released by the server
// if that connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: LockID(key)}
}

// LockID hashes a key into the advisory lock keyspace.
func LockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}
