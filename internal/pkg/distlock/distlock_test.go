package distlock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	key := ImportLockKey("user-1")

	a := NewRedisLock(rdb, key, time.Minute)
	b := NewRedisLock(rdb, key, time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:climb_import:user:user-1"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the lock, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists(a.Key()))

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAndExtend(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(rdb, "k", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := l.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Minute, mr.TTL(l.Key()))

	mr.FastForward(2 * time.Minute)
	extended, err = l.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestRun(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	key := ImportLockKey("user-2")

	holder := NewRedisLock(rdb, key, time.Minute)
	ok, _ := holder.Acquire(ctx)
	require.True(t, ok)

	called := false
	err := Run(ctx, NewLock(rdb, nil, key, time.Minute), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.False(t, called)

	require.NoError(t, holder.Release(ctx))

	boom := errors.New("boom")
	lock := NewRedisLock(rdb, key, time.Minute)
	err = Run(ctx, lock, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// released after fn returns
	ok, err = holder.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, ImportLockKey("user-3"))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "busy")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	// nothing held, nothing to release
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingLock struct {
	ttl     time.Duration
	extends atomic.Int32
	lost    bool
}

func (c *countingLock) Acquire(context.Context) (bool, error) { return true, nil }
func (c *countingLock) Release(context.Context) error         { return nil }
func (c *countingLock) TTL() time.Duration                    { return c.ttl }
func (c *countingLock) Extend(context.Context, time.Duration) (bool, error) {
	c.extends.Add(1)
	return !c.lost, nil
}

func TestRun_ExtendsWhileWorking(t *testing.T) {
	l := &countingLock{ttl: 30 * time.Millisecond}
	err := Run(context.Background(), l, func(context.Context) error {
		time.Sleep(150 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, l.extends.Load(), int32(2))

	// no more extends once Run has returned
	n := l.extends.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, l.extends.Load())
}

func TestRun_StopsExtendingWhenLost(t *testing.T) {
	l := &countingLock{ttl: 15 * time.Millisecond, lost: true}
	err := Run(context.Background(), l, func(context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), l.extends.Load())
}
