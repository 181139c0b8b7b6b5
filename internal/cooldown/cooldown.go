package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bucket struct {
	Name   string
	Window time.Duration
	Uses   int
}

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter enforces per-user command cooldowns. Store errors let the command through.
type Limiter struct {
	store  WindowStore
	logger *zap.Logger
}

func NewLimiter(store WindowStore, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

func (l *Limiter) Allow(ctx context.Context, bucket Bucket, userID string) (time.Duration, bool) {
	if l == nil || l.store == nil || bucket.Window <= 0 {
		return 0, true
	}
	uses := bucket.Uses
	if uses <= 0 {
		uses = 1
	}

	count, ttl, err := l.store.IncrementWindow(ctx, key(bucket.Name, userID), bucket.Window)
	if err != nil {
		l.logger.Warn("cooldown check failed", zap.String("bucket", bucket.Name), zap.String("user_id", userID), zap.Error(err))
		return 0, true
	}
	if count > int64(uses) {
		return ttl, false
	}
	return 0, true
}

func key(bucket, userID string) string {
	return "dredd:cooldown:" + bucket + ":" + userID
}

type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// IncrementWindow counts a hit and returns the time left in the window. A key
// found without an expiry gets one, so a lost EXPIRE never blocks a user for good.
func (r *RedisStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}

	var (
		incr *goredis.IntCmd
		ttl  *goredis.DurationCmd
	)
	if _, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	}); err != nil {
		return 0, 0, fmt.Errorf("increment cooldown key: %w", err)
	}

	count, remaining := incr.Val(), ttl.Val()
	if remaining < 0 {
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("set cooldown key ttl: %w", err)
		}
		remaining = window
	}
	return count, remaining, nil
}

// LocalStore keeps fixed windows in process memory; used when no redis_url is configured.
type LocalStore struct {
	mu      sync.Mutex
	windows map[string]*localWindow
	now     func() time.Time
}

type localWindow struct {
	count   int64
	expires time.Time
}

func NewLocalStore() *LocalStore {
	return &LocalStore{windows: make(map[string]*localWindow), now: time.Now}
}

func (s *LocalStore) WithNow(now func() time.Time) {
	s.now = now
}

func (s *LocalStore) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || !now.Before(w.expires) {
		w = &localWindow{expires: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	s.sweepLocked(now)
	return w.count, w.expires.Sub(now), nil
}

func (s *LocalStore) sweepLocked(now time.Time) {
	if len(s.windows) < 1024 {
		return
	}
	for key, w := range s.windows {
		if !now.Before(w.expires) {
			delete(s.windows, key)
		}
	}
}
