package transcript

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
)

func TestLocalLocker_Serialises(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "s1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Empty(t, l.sessions)
}

func TestLocalLocker_SessionsAreIndependent(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_TimeoutIsConflict(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "s1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.sessions)
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLocker(client, "zeus:", ttl)
	l.poll = 5 * time.Millisecond
	return l, mr
}

func TestRedisLocker_LockAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("zeus:session-lock:s1"))
	assert.Equal(t, time.Minute, mr.TTL("zeus:session-lock:s1"))

	unlock()
	assert.False(t, mr.Exists("zeus:session-lock:s1"))
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	l, _ := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, "s1")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(30 * time.Millisecond):
	}
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestRedisLocker_TimeoutIsConflict(t *testing.T) {
	l, _ := newRedisLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "s1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Lock(ctx, "s1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.Lock(ctx, "s1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("zeus:session-lock:s1"))

	fresh()
	assert.False(t, mr.Exists("zeus:session-lock:s1"))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	l.renew = 5 * time.Millisecond
	key := "zeus:session-lock:s1"

	unlock, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)

	// A long turn runs well past the original TTL.
	for i := 0; i < 5; i++ {
		mr.FastForward(200 * time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL(key) > 200*time.Millisecond
		}, time.Second, time.Millisecond)
	}
	assert.True(t, mr.Exists(key))

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestRedisLocker_StopsRenewingLostLock(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	l.renew = 5 * time.Millisecond
	key := "zeus:session-lock:s1"

	unlock, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set(key, "other-holder"))
	mr.SetTTL(key, 100*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
	assert.Equal(t, 100*time.Millisecond, mr.TTL(key))
}

func TestRedisLocker_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLocker(client, "zeus:", time.Minute)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := l.Lock(ctx, "s1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
