package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCache(rdb, ttl), mr
}

type stubClient struct {
	resp  *Response
	err   error
	calls int
}

func (s *stubClient) Search(ctx context.Context, query, location, employmentType string, page int) (*Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	key := CacheKey("java developer", "Berlin", "", 1)
	resp := &Response{Status: "success", Data: []Job{{JobID: "j1", JobTitle: "Java Developer"}}}

	if err := cache.Set(ctx, key, resp); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || len(got.Data) != 1 || got.Data[0].JobID != "j1" {
		t.Fatalf("unexpected cached response %+v", got)
	}
}

func TestCache_MissReturnsNilNil(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	got, err := cache.Get(context.Background(), CacheKey("go", "Munich", "", 1))
	if err != nil {
		t.Fatalf("miss must not be an error: %v", err)
	}
	if got != nil {
		t.Fatalf("miss must return nil, got %+v", got)
	}
}

func TestCache_EntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	key := CacheKey("java", "Berlin", "", 1)
	if err := cache.Set(ctx, key, &Response{Status: "success"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, key)
	if err != nil || got != nil {
		t.Fatalf("expired entry must be a miss, got %+v err %v", got, err)
	}
}

func TestCacheKey_DistinguishesParams(t *testing.T) {
	base := CacheKey("java", "Berlin", "", 1)
	if CacheKey("java", "Berlin", "", 2) == base {
		t.Fatal("page must be part of the cache key")
	}
	if CacheKey("java", "Munich", "", 1) == base {
		t.Fatal("location must be part of the cache key")
	}
	if CacheKey("java", "Berlin", "FULLTIME", 1) == base {
		t.Fatal("employment type must be part of the cache key")
	}
}

func TestCachedClient_HitSkipsUpstream(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	upstream := &stubClient{resp: &Response{Status: "success", Data: []Job{{JobID: "j1"}}}}
	client := NewCachedClient(upstream, cache, testLogger())
	ctx := context.Background()

	if _, err := client.Search(ctx, "java", "Berlin", "", 1); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := client.Search(ctx, "java", "Berlin", "", 1); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if upstream.calls != 1 {
		t.Fatalf("second search must be served from cache, got %d upstream calls", upstream.calls)
	}
}

func TestCachedClient_UpstreamErrorNotCached(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	upstream := &stubClient{err: ErrRateLimited}
	client := NewCachedClient(upstream, cache, testLogger())

	if _, err := client.Search(context.Background(), "java", "Berlin", "", 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("upstream error must propagate, got %v", err)
	}

	got, err := cache.Get(context.Background(), CacheKey("java", "Berlin", "", 1))
	if err != nil || got != nil {
		t.Fatalf("failed search must not be cached, got %+v err %v", got, err)
	}
}

func TestCachedClient_RedisDownFallsThrough(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	mr.Close()

	upstream := &stubClient{resp: &Response{Status: "success"}}
	client := NewCachedClient(upstream, cache, testLogger())

	resp, err := client.Search(context.Background(), "java", "Berlin", "", 1)
	if err != nil {
		t.Fatalf("cache failure must degrade to a direct call: %v", err)
	}
	if resp == nil || upstream.calls != 1 {
		t.Fatalf("upstream must be consulted when the cache is down, calls=%d", upstream.calls)
	}
}
