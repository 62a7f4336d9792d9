package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
)

// Locker serialises turns per session. Unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// busy converts a lock wait that ran out of time into a conflict.
func busy(ctx context.Context, sessionID string) error {
	if eris.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Conflict("session %s is busy with another message", sessionID)
	}
	return eris.Wrap(ctx.Err(), "transcript: lock")
}

// LocalLocker is an in-process per-session mutex.
type LocalLocker struct {
	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sessions: make(map[string]*sessionLock)}
}

// Lock blocks until the session is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	sl, ok := l.sessions[sessionID]
	if !ok {
		sl = &sessionLock{ch: make(chan struct{}, 1)}
		l.sessions[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionID, sl, false)
		return nil, busy(ctx, sessionID)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionID, sl, true) })
	}, nil
}

func (l *LocalLocker) release(sessionID string, sl *sessionLock, held bool) {
	if held {
		<-sl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.sessions, sessionID)
	}
}

// releaseScript deletes the lock key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock key only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises session turns across processes with a Redis key
// per session. The holder renews the key every ttl/3 until it unlocks; a
// crashed holder stops renewing and the key expires after ttl.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	renew  time.Duration
	poll   time.Duration
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, renew: ttl / 3, poll: 50 * time.Millisecond}
}

func (r *RedisLocker) key(sessionID string) string {
	return r.prefix + "session-lock:" + sessionID
}

// Lock polls SET NX until the session key is acquired or ctx is done.
func (r *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := r.key(sessionID)
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, busy(ctx, sessionID)
			}
			return nil, apperr.Upstream(eris.Wrap(err, "transcript: redis lock"), "session lock unavailable")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, busy(ctx, sessionID)
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.keepAlive(key, token, sessionID, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			// Release even if the turn's context was cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{key}, token).Err(); err != nil {
				zap.L().Warn("transcript: release session lock", zap.String("session_id", sessionID), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lock TTL until stop is closed or the key no longer
// holds token.
func (r *RedisLocker) keepAlive(key, token, sessionID string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.renew)
		n, err := renewScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			zap.L().Warn("transcript: renew session lock", zap.String("session_id", sessionID), zap.Error(err))
		case n == 0:
			zap.L().Warn("transcript: session lock lost", zap.String("session_id", sessionID))
			return
		}
	}
}
