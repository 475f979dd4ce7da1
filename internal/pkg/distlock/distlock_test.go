package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	factory := NewFactory(client, nil, time.Minute)

	first := factory("campaign:c-1")
	second := factory("campaign:c-1")

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	// A non-owner release must not free the lock.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:campaign:c-1"))

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLock(client, "quota-reset", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	other := NewRedisLock(client, "quota-reset", time.Second)
	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := LockID("campaign:c-1")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	l := NewFactory(nil, db, time.Minute)("campaign:c-1")
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_ExtendRequiresOwnership(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	l := NewRedisLock(client, "campaign:c-1", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("lock:campaign:c-1"))

	require.NoError(t, mr.Set("lock:campaign:c-1", "someone-else"))
	assert.ErrorIs(t, l.Extend(ctx, time.Minute), ErrNotHeld)
}

func TestKeepAlive_RenewsUntilStopped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	l := NewRedisLock(client, "campaign:c-1", time.Minute)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stop := KeepAlive(ctx, l, 90*time.Millisecond, nil)
	assert.Eventually(t, func() bool {
		return mr.TTL("lock:campaign:c-1") == 90*time.Millisecond
	}, time.Second, 5*time.Millisecond)
	stop()

	mr.SetTTL("lock:campaign:c-1", time.Hour)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, time.Hour, mr.TTL("lock:campaign:c-1"))
}

func TestKeepAlive_ReportsLostLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	l := NewRedisLock(client, "campaign:c-1", time.Minute)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mr.Set("lock:campaign:c-1", "someone-else"))

	lost := make(chan error, 1)
	stop := KeepAlive(ctx, l, 30*time.Millisecond, func(err error) { lost <- err })
	defer stop()

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, ErrNotHeld)
	case <-time.After(time.Second):
		t.Fatal("lost lock was not reported")
	}
}

func TestKeepAlive_NoopForAdvisoryLocks(t *testing.T) {
	stop := KeepAlive(context.Background(), NewPGAdvisoryLock(nil, "campaign:c-1"), time.Second, nil)
	stop()
}
