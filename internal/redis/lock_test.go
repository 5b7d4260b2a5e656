package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestKeys(t *testing.T) {
	doc := uuid.MustParse("6f1c2a7e-0000-4000-8000-000000000001")
	assert.Equal(t, "lock:slot:6f1c2a7e-0000-4000-8000-000000000001:2024-01-01:09:00", SlotKey(doc, "2024-01-01", "09:00"))
	assert.Equal(t, "lock:appointment:6f1c2a7e-0000-4000-8000-000000000001", AppointmentKey(doc))
}

func TestRedisLockerReleasesAfterRun(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	ran := false
	err := locker.WithLock(context.Background(), "lock:test", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:test"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:test"))
}

func TestRedisLockerPropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "lock:test", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:test"))
}

func TestRedisLockerTimesOutWhenHeld(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("lock:test", "someone-else"))

	locker := NewRedisLocker(client, time.Second, 60*time.Millisecond)
	err := locker.WithLock(context.Background(), "lock:test", func(ctx context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// a foreign holder's key is left alone
	got, _ := mr.Get("lock:test")
	assert.Equal(t, "someone-else", got)
}

func TestLockersSerialiseSameKey(t *testing.T) {
	_, client := setupTestRedis(t)

	lockers := map[string]Locker{
		"local": NewLocalLocker(2 * time.Second),
		"redis": NewRedisLocker(client, 2*time.Second, 2*time.Second),
	}
	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			var (
				inside  int32
				maxSeen int32
				wg      sync.WaitGroup
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := locker.WithLock(context.Background(), "lock:shared", func(ctx context.Context) error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxSeen)
							if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
		})
	}
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker(30 * time.Millisecond)
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// other keys are independent
	assert.NoError(t, locker.WithLock(context.Background(), "other", func(ctx context.Context) error { return nil }))
	close(done)
}

func TestLocalLockerZeroWaitTakesFreeLock(t *testing.T) {
	locker := NewLocalLocker(0)
	for i := 0; i < 200; i++ {
		err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
		require.NoError(t, err, "attempt %d", i)
	}

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	close(done)
}
