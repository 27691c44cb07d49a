package checkin

import (
	"testing"
	"time"
)

func TestTokenStoreGetHidesExpired(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	s := NewTokenStore()
	s.Put("c1", "2025-01-20", Token{Nonce: "n1", ExpiresAt: now.Add(90 * time.Second)})

	if _, ok := s.Get("c1", "2025-01-20", now); !ok {
		t.Fatal("live token should be visible")
	}
	// The expiry instant itself is still valid.
	if _, ok := s.Get("c1", "2025-01-20", now.Add(90*time.Second)); !ok {
		t.Fatal("token at expiry boundary should be visible")
	}
	if _, ok := s.Get("c1", "2025-01-20", now.Add(90*time.Second+time.Nanosecond)); ok {
		t.Fatal("expired token should be absent")
	}
	// Lazy eviction: the expired read deleted the entry.
	if _, ok := s.Get("c1", "2025-01-20", now); ok {
		t.Fatal("expired entry should have been evicted")
	}
}

func TestTokenStorePutReplaces(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	s := NewTokenStore()
	s.Put("c1", "2025-01-20", Token{Nonce: "old", ExpiresAt: now.Add(time.Hour)})
	s.Put("c1", "2025-01-20", Token{Nonce: "new", ExpiresAt: now.Add(time.Hour)})

	got, ok := s.Get("c1", "2025-01-20", now)
	if !ok || got.Nonce != "new" {
		t.Fatalf("want replacement token, got %+v ok=%v", got, ok)
	}
}

func TestTokenStoreKeysAreIndependent(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	s := NewTokenStore()
	s.Put("c1", "2025-01-20", Token{Nonce: "a", ExpiresAt: now.Add(time.Hour)})
	s.Put("c1", "2025-01-21", Token{Nonce: "b", ExpiresAt: now.Add(time.Hour)})
	s.Invalidate("c1", "2025-01-20")

	if _, ok := s.Get("c1", "2025-01-20", now); ok {
		t.Fatal("invalidated session should be absent")
	}
	if _, ok := s.Get("c1", "2025-01-21", now); !ok {
		t.Fatal("other session should be untouched")
	}
}

func TestTokenStorePrune(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	s := NewTokenStore()
	s.Put("c1", "2025-01-20", Token{ExpiresAt: now.Add(-time.Minute)})
	s.Put("c2", "2025-01-20", Token{ExpiresAt: now.Add(time.Minute)})

	if removed := s.Prune(now); removed != 1 {
		t.Fatalf("want 1 pruned, got %d", removed)
	}
	if _, ok := s.Get("c2", "2025-01-20", now); !ok {
		t.Fatal("live token should survive prune")
	}
}
