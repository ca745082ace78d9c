package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
)

const (
	defaultLockTTL = 2 * time.Minute
	lockKeyPrefix  = "graveyard:analysis:"
)

// Lock resources. Runs that rewrite the same rows share a resource.
const (
	resourcePatterns   = "patterns"
	resourcePostMortem = "post_mortem"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AnalysisLocker serialises analysis runs per user and resource. Concurrent
// callers of the same run kind in one process share a single run; a run of
// another kind on the same resource waits for it. When Redis is configured,
// a run in another process makes the caller fail with ErrConflict.
type AnalysisLocker struct {
	group  singleflight.Group
	local  keyedLock
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewAnalysisLocker creates a locker. rdb may be nil for single-instance use.
func NewAnalysisLocker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalysisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &AnalysisLocker{
		redis:  rdb,
		ttl:    ttl,
		logger: logger.Named("analysis-locker"),
	}
}

// runLocked runs fn for userID holding the resource lock. Callers that
// arrive with the same kind while a run is in flight receive that run's
// result.
//
// fn gets a context that keeps the first caller's values but not its
// cancellation, bounded by the lock TTL, so one caller going away does not
// fail the others.
func runLocked[T any](ctx context.Context, l *AnalysisLocker, kind, resource string, userID uuid.UUID, fn func(context.Context) (T, error)) (T, error) {
	flightKey := kind + ":" + userID.String()
	lockKey := resource + ":" + userID.String()

	v, err, shared := l.group.Do(flightKey, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()

		release, err := l.acquire(runCtx, lockKey)
		if err != nil {
			return nil, err
		}
		defer release()
		return fn(runCtx)
	})
	if shared {
		l.logger.Debug("Joined in-flight analysis",
			zap.String("kind", kind),
			zap.String("key", lockKey))
	}

	var zero T
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (l *AnalysisLocker) acquire(ctx context.Context, key string) (func(), error) {
	unlock, err := l.local.lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("waiting for analysis %s: %w", key, err)
	}

	releaseRemote, err := l.acquireRemote(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		releaseRemote()
		unlock()
	}, nil
}

func (l *AnalysisLocker) acquireRemote(ctx context.Context, key string) (func(), error) {
	if l.redis == nil {
		return func() {}, nil
	}

	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		// Redis errors fall back to the in-process guard.
		l.logger.Warn("Redis lock unavailable, continuing without it",
			zap.String("key", redisKey),
			zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("analysis %s already running: %w", key, apperrors.ErrConflict)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.redis, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release analysis lock",
				zap.String("key", redisKey),
				zap.Error(err))
		}
	}, nil
}

// keyedLock is a set of context-aware mutexes created on demand and dropped
// once no caller holds or waits on them.
type keyedLock struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

type keyedSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func (k *keyedLock) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.slots == nil {
		k.slots = make(map[string]*keyedSlot)
	}
	slot, ok := k.slots[key]
	if !ok {
		slot = &keyedSlot{sem: semaphore.NewWeighted(1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		k.drop(key, slot)
		return nil, err
	}
	return func() {
		slot.sem.Release(1)
		k.drop(key, slot)
	}, nil
}

func (k *keyedLock) drop(key string, slot *keyedSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}
