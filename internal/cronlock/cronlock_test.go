package cronlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLocalFallbackSerializes(t *testing.T) {
	locker := New(nil, time.Minute)
	ctx := context.Background()

	release, errAcquire := locker.Acquire(ctx, "hourly")
	if errAcquire != nil {
		t.Fatalf("acquire: %v", errAcquire)
	}

	if _, errSecond := locker.Acquire(ctx, "hourly"); !errors.Is(errSecond, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", errSecond)
	}

	// A different job is independent.
	releaseDaily, errDaily := locker.Acquire(ctx, "daily")
	if errDaily != nil {
		t.Fatalf("acquire other job: %v", errDaily)
	}
	releaseDaily()

	release()
	releaseAgain, errAgain := locker.Acquire(ctx, "hourly")
	if errAgain != nil {
		t.Fatalf("re-acquire after release: %v", errAgain)
	}
	releaseAgain()
}

func TestRedisLock(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := New(client, time.Minute)
	other := New(client, time.Minute)
	ctx := context.Background()

	release, errAcquire := locker.Acquire(ctx, "hourly")
	if errAcquire != nil {
		t.Fatalf("acquire: %v", errAcquire)
	}

	// A second replica must be rejected while the lock is held.
	if _, errOther := other.Acquire(ctx, "hourly"); !errors.Is(errOther, ErrHeld) {
		t.Fatalf("expected ErrHeld from second replica, got %v", errOther)
	}

	release()
	releaseOther, errOther := other.Acquire(ctx, "hourly")
	if errOther != nil {
		t.Fatalf("acquire after release: %v", errOther)
	}
	releaseOther()
}

func TestRedisLockExpiresByTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := New(client, time.Second)
	ctx := context.Background()

	if _, errAcquire := locker.Acquire(ctx, "hourly"); errAcquire != nil {
		t.Fatalf("acquire: %v", errAcquire)
	}

	// A crashed runner never releases; the TTL frees the lock.
	server.FastForward(2 * time.Second)
	release, errAfter := locker.Acquire(ctx, "hourly")
	if errAfter != nil {
		t.Fatalf("acquire after ttl: %v", errAfter)
	}
	release()
}

func TestStaleReleaseKeepsNewOwner(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	first := New(client, time.Second)
	second := New(client, time.Minute)
	ctx := context.Background()

	staleRelease, errFirst := first.Acquire(ctx, "hourly")
	if errFirst != nil {
		t.Fatalf("first acquire: %v", errFirst)
	}
	server.FastForward(2 * time.Second)

	if _, errSecond := second.Acquire(ctx, "hourly"); errSecond != nil {
		t.Fatalf("second acquire: %v", errSecond)
	}

	// The stale runner's release must not evict the new owner.
	staleRelease()
	if _, errThird := first.Acquire(ctx, "hourly"); !errors.Is(errThird, ErrHeld) {
		t.Fatalf("stale release evicted the new owner: %v", errThird)
	}
}
