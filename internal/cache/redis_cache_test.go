package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCache_StoreSent_Success(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, 10*time.Second)

	ctx := context.Background()
	sentAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.FixedZone("EST", -5*3600))
	rec := SentRecord{MessageID: "m-42", Channel: "sms", RemoteMessageID: "remote-123", SentAt: sentAt}

	if err := cache.StoreSent(ctx, rec); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	k := "openhouse:msg:m-42"

	if !mr.Exists(k) {
		t.Fatalf("expected key %q to exist", k)
	}
	if ttl := mr.TTL(k); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(k)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", k, err)
	}

	var got SentRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.RemoteMessageID != "remote-123" || got.Channel != "sms" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.SentAt.Equal(sentAt) || got.SentAt.Location() != time.UTC {
		t.Fatalf("expected SentAt %v in UTC, got %v", sentAt.UTC(), got.SentAt)
	}
}

func TestRedisCache_LookupSent(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok, err := cache.LookupSent(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.StoreSent(ctx, SentRecord{MessageID: "m1", RemoteMessageID: "first", SentAt: time.Now()}); err != nil {
		t.Fatalf("first StoreSent() error: %v", err)
	}
	if err := cache.StoreSent(ctx, SentRecord{MessageID: "m1", RemoteMessageID: "second", SentAt: time.Now()}); err != nil {
		t.Fatalf("second StoreSent() error: %v", err)
	}

	got, ok, err := cache.LookupSent(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.RemoteMessageID != "second" {
		t.Fatalf("expected overwritten RemoteMessageID %q, got %q", "second", got.RemoteMessageID)
	}
}

func TestRedisCache_Expires(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	if err := cache.StoreSent(ctx, SentRecord{MessageID: "m1", RemoteMessageID: "r"}); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, ok, _ := cache.LookupSent(ctx, "m1"); ok {
		t.Fatalf("expected record to expire")
	}
}

func TestRedisCache_StoreSent_ContextCanceled(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreSent(ctx, SentRecord{MessageID: "1", RemoteMessageID: "x"}); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}

func TestNoop(t *testing.T) {
	var c MessageCache = Noop{}
	if err := c.StoreSent(context.Background(), SentRecord{}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok, _ := c.LookupSent(context.Background(), "x"); ok {
		t.Fatalf("noop must never hit")
	}
}
