package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_FirstRequestAcquiresLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectSetNX("idem:key", "LOCK", 30*time.Second).SetVal(true)

	locked, err := store.AcquireLock(ctx, "idem:key", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_DuplicateSeesLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectSetNX("idem:key", "LOCK", 30*time.Second).SetVal(false)

	locked, err := store.AcquireLock(ctx, "idem:key", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_ReplaysSavedResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	payload := `{"booking_id":"abc"}`

	mock.ExpectSet("idem:key", "RES:"+payload, time.Hour).SetVal("OK")
	mock.ExpectGet("idem:key").SetVal("RES:" + payload)

	require.NoError(t, store.SaveResult(ctx, "idem:key", payload))

	got, ok, err := store.GetResult(ctx, "idem:key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_LockIsNotAResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectGet("idem:key").SetVal("LOCK")

	_, ok, err := store.GetResult(ctx, "idem:key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyStore_MissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectGet("idem:key").RedisNil()

	_, ok, err := store.GetResult(ctx, "idem:key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyStore_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectDel("idem:key").SetVal(1)

	require.NoError(t, store.Release(ctx, "idem:key"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
