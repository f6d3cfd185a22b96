package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectSetNX("scan:lock:ref-1", "owner-a", time.Minute).SetVal(true)

	ok, err := client.AcquireLock(context.Background(), "scan:lock:ref-1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireLockHeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectSetNX("scan:lock:ref-1", "owner-b", time.Minute).SetVal(false)

	ok, err := client.AcquireLock(context.Background(), "scan:lock:ref-1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseLockOwnedByCaller(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectGet("scan:lock:ref-1").SetVal("owner-a")
	mock.ExpectDel("scan:lock:ref-1").SetVal(1)

	err := client.ReleaseLock(context.Background(), "scan:lock:ref-1", "owner-a")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLockTakenOver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectGet("scan:lock:ref-1").SetVal("owner-b")

	err := client.ReleaseLock(context.Background(), "scan:lock:ref-1", "owner-a")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLockAlreadyExpired(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectGet("scan:lock:ref-1").RedisNil()

	err := client.ReleaseLock(context.Background(), "scan:lock:ref-1", "owner-a")
	require.NoError(t, err)
}
