package distlock

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	first := NewRedisLock(client, "autopilot:cycle", time.Minute)
	second := NewRedisLock(client, "autopilot:cycle", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:autopilot:cycle"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release must not free the lock.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:autopilot:cycle"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:autopilot:cycle"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	first := NewRedisLock(client, "campaign:c-1", 10*time.Second)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = NewRedisLock(client, "campaign:c-1", 10*time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "autopilot:cycle")
	assert.Equal(t, advisoryID("autopilot:cycle"), lock.lockID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockNotAcquired(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "autopilot:cycle")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	// Nothing held, nothing to unlock.
	require.NoError(t, lock.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	a := NewLocalLock("local:test")
	b := NewLocalLock("local:test")

	ok, _ := a.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok, "release by non-holder must not free the key")

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx))
}

func TestLockerPicksBackend(t *testing.T) {
	_, client := setupRedis(t)

	assert.IsType(t, &RedisLock{}, NewLocker(client, nil).Lock("k", time.Second))
	assert.IsType(t, &LocalLock{}, NewLocker(nil, nil).Lock("k", time.Second))

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &PGAdvisoryLock{}, NewLocker(nil, db).Lock("k", time.Second))
}
