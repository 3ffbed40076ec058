package anubis

import (
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
)

func TestInMemoryPrincipalCache_ExpiresEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)
	cache := newInMemoryPrincipalCache(time.Minute, 10)
	cache.now = func() time.Time { return now }

	cache.Set("k1", user.Principal{UserID: "u-1"})
	principal, ok := cache.Get("k1")
	if !ok || principal.UserID != "u-1" {
		t.Fatalf("expected cache hit for u-1, got %+v ok=%v", principal, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := cache.Get("k1"); ok {
		t.Fatalf("expected cache miss after expiry")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be removed, len=%d", cache.Len())
	}
}

func TestInMemoryPrincipalCache_BoundedSize(t *testing.T) {
	t.Parallel()

	cache := newInMemoryPrincipalCache(time.Minute, 2)
	cache.Set("k1", user.Principal{UserID: "u-1"})
	cache.Set("k2", user.Principal{UserID: "u-2"})
	cache.Set("k3", user.Principal{UserID: "u-3"})

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get("k3"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}
}

func TestInMemoryPrincipalCache_ZeroTTLDisablesCaching(t *testing.T) {
	t.Parallel()

	cache := newInMemoryPrincipalCache(0, 10)
	cache.Set("k1", user.Principal{UserID: "u-1"})
	if _, ok := cache.Get("k1"); ok {
		t.Fatalf("expected no caching with zero ttl")
	}
}
