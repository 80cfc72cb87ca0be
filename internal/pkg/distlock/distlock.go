// Package distlock serializes work across processes. Imports take a per-user
// lock so two uploads for the same user cannot race on duplicate detection.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/climblog/internal/pkg/logger"
)

// ErrLockHeld is returned by Run when another holder owns the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// DistLock is the interface for distributed locking.
// A lock value is owned by one goroutine; concurrent callers need their own.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// renewable locks expire on their own and must be extended while held.
type renewable interface {
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	TTL() time.Duration
}

// NewLock prefers Redis and falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// ImportLockKey is the lock guarding climb imports for one user.
func ImportLockKey(userID string) string {
	return "climb_import:user:" + userID
}

// Run acquires l, runs fn and releases l. Locks with a TTL are extended in the
// background while fn runs. The release uses a fresh context so a cancelled
// ctx still frees the lock.
func Run(ctx context.Context, l DistLock, fn func(context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(relCtx)
	}()

	stop := keepAlive(ctx, l)
	defer stop()
	return fn(ctx)
}

// keepAlive extends a renewable lock every third of its TTL until the
// returned stop func is called.
func keepAlive(ctx context.Context, l DistLock) (stop func()) {
	r, ok := l.(renewable)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.TTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := r.Extend(ctx, r.TTL())
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("lock extend failed", "error", err)
					}
					continue
				}
				if !held {
					logger.Warn("lock lost before work finished")
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

// PGAdvisoryLock uses pg_try_advisory_lock, which is session scoped and
// dropped with the connection. The lock is pinned to one *sql.Conn because
// advisory locks belong to the session that took them.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock derives a stable lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire does not block.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock connection: %w", err)
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

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
