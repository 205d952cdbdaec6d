// internal/ledger/lock_test.go
package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestPairLock_AcquireAndRelease(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	lock := NewPairLock(rdb, 10*time.Second)

	key := "dedup:lock:device-1:aaaa"
	mock.ExpectSetNX(key, "1", 10*time.Second).SetVal(true)
	mock.ExpectDel(key).SetVal(1)

	release, ok := lock.Acquire(context.Background(), "device-1", "aaaa")

	assert.True(t, ok)
	release()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairLock_Contended(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	lock := NewPairLock(rdb, 10*time.Second)

	mock.ExpectSetNX("dedup:lock:device-1:aaaa", "1", 10*time.Second).SetVal(false)

	release, ok := lock.Acquire(context.Background(), "device-1", "aaaa")

	assert.False(t, ok)
	// Release must be safe to call even when the lease was not taken.
	release()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairLock_RedisFailureIsNonFatal(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	lock := NewPairLock(rdb, 10*time.Second)

	mock.ExpectSetNX("dedup:lock:device-1:aaaa", "1", 10*time.Second).
		SetErr(errors.New("connection refused"))

	release, ok := lock.Acquire(context.Background(), "device-1", "aaaa")

	assert.False(t, ok)
	release()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairLock_DefaultLease(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	lock := NewPairLock(rdb, 0)

	mock.ExpectSetNX("dedup:lock:device-1:aaaa", "1", 10*time.Second).SetVal(true)

	_, ok := lock.Acquire(context.Background(), "device-1", "aaaa")

	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
