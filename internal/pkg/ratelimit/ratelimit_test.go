package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimiter_AllowReducesTokens(t *testing.T) {
	rdb := newMiniRedis(t)
	defer closeRedis(t, rdb)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:basic", 10, 2)
	allowed, _, err := limiter.Allow(context.Background())
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed {
		t.Fatalf("expected first request to be admitted")
	}

	tokensStr, err := rdb.HGet(context.Background(), limiter.key, "tokens").Result()
	if err != nil {
		t.Fatalf("hget tokens: %v", err)
	}
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		t.Fatalf("parse tokens: %v", err)
	}
	if tokens > 1.1 {
		t.Fatalf("expected tokens to decrease, got %.2f", tokens)
	}
}

func TestRateLimiter_AllowAdmitsBurstThenRejects(t *testing.T) {
	rdb := newMiniRedis(t)
	defer closeRedis(t, rdb)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:allow", 1, 3)

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(context.Background())
		if err != nil {
			t.Fatalf("allow #%d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("expected request #%d inside burst to be admitted", i)
		}
	}

	allowed, retryAfter, err := limiter.Allow(context.Background())
	if err != nil {
		t.Fatalf("allow over burst: %v", err)
	}
	if allowed {
		t.Fatalf("expected request over burst to be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}
}

func TestRateLimiter_AllowKeySeparateBuckets(t *testing.T) {
	rdb := newMiniRedis(t)
	defer closeRedis(t, rdb)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:perip", 1, 1)

	allowed, _, err := limiter.AllowKey(context.Background(), "10.0.0.1")
	if err != nil || !allowed {
		t.Fatalf("first caller should be admitted, allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = limiter.AllowKey(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected second request from same caller to be rejected")
	}

	// 另一个调用方使用独立的桶
	allowed, _, err = limiter.AllowKey(context.Background(), "10.0.0.2")
	if err != nil || !allowed {
		t.Fatalf("other caller should be admitted, allowed=%v err=%v", allowed, err)
	}
}

func TestRateLimiter_ConcurrentAllow(t *testing.T) {
	rdb := newMiniRedis(t)
	defer closeRedis(t, rdb)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:concurrent", 1, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := limiter.Allow(context.Background())
			if err != nil {
				t.Errorf("allow: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if allowed {
				admitted++
			}
		}()
	}

	wg.Wait()

	if admitted != 5 {
		t.Fatalf("expected exactly burst (5) admissions, got %d", admitted)
	}
}

func TestRateLimiter_NilLimiterFailsOpen(t *testing.T) {
	var limiter *RateLimiter
	allowed, _, err := limiter.Allow(context.Background())
	if err != nil || !allowed {
		t.Fatalf("nil limiter must admit, allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = limiter.AllowKey(context.Background(), "10.0.0.1")
	if err != nil || !allowed {
		t.Fatalf("nil limiter must admit, allowed=%v err=%v", allowed, err)
	}
}

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func closeRedis(t *testing.T, rdb *redis.Client) {
	t.Helper()
	if err := rdb.Close(); err != nil {
		t.Fatalf("close redis: %v", err)
	}
}
