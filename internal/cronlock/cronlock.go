// Package cronlock serializes scheduled sweeps across service replicas
// with a redis SETNX mutex. Without redis it degrades to a process-local
// mutex, which is enough for single-instance deployments.
package cronlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld indicates another runner currently holds the lock.
var ErrHeld = fmt.Errorf("cronlock: already held")

// Locker guards one named job at a time.
type Locker struct {
	client *redis.Client
	ttl    time.Duration

	mu   sync.Mutex
	held map[string]string // job name -> lock token, local fallback
}

// New constructs a Locker. client may be nil.
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Locker{
		client: client,
		ttl:    ttl,
		held:   make(map[string]string),
	}
}

// Acquire takes the lock for job, returning a release func. It returns
// ErrHeld without blocking when another runner owns the lock.
func (l *Locker) Acquire(ctx context.Context, job string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	token := uuid.NewString()

	if l.client == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, taken := l.held[job]; taken {
			return nil, ErrHeld
		}
		l.held[job] = token
		return func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[job] == token {
				delete(l.held, job)
			}
		}, nil
	}

	key := lockKey(job)
	ok, errSet := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if errSet != nil {
		return nil, fmt.Errorf("cronlock: acquire %s: %w", job, errSet)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// Release only our own token; an expired lock may have been
		// re-acquired by another runner.
		_, _ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Result()
	}, nil
}

// releaseScript deletes the lock only when the stored token matches.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func lockKey(job string) string {
	return "craft:cronlock:" + job
}
