package checkin

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestIssuer(clock *fakeClock, policy Policy) *Issuer {
	i := NewIssuer(NewTokenStore(), NewHMACSigner("test-key"), policy)
	i.now = clock.Now
	return i
}

func TestIssueIsIdempotentWithinWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 20, 13, 55, 0, 0, time.UTC)}
	start := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	i := newTestIssuer(clock, Policy{ValidityWindow: 90 * time.Second})

	first := i.Issue("c1", "2025-01-20", start, "a1")
	clock.Advance(30 * time.Second)
	second := i.Issue("c1", "2025-01-20", start, "a1")

	if first != second {
		t.Fatalf("repeated issue should return the same token: %+v vs %+v", first, second)
	}
}

func TestIssueMintsAfterExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 20, 13, 55, 0, 0, time.UTC)}
	start := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	i := newTestIssuer(clock, Policy{ValidityWindow: 90 * time.Second})

	first := i.Issue("c1", "2025-01-20", start, "a1")
	clock.Advance(2 * time.Minute)
	second := i.Issue("c1", "2025-01-20", start, "a1")

	if first.Nonce == second.Nonce {
		t.Fatal("expired token must not be reused")
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatal("new token should carry a later expiry")
	}
}

func TestRefreshSupersedes(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 20, 13, 55, 0, 0, time.UTC)}
	start := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	i := newTestIssuer(clock, Policy{ValidityWindow: 10 * time.Minute})

	first := i.Issue("c1", "2025-01-20", start, "a1")
	second := i.Refresh("c1", "2025-01-20", start, "a1")

	if first.Nonce == second.Nonce {
		t.Fatal("refresh must mint a fresh nonce even while the old token is live")
	}
	current, ok := i.store.Get("c1", "2025-01-20", clock.Now())
	if !ok || current.Nonce != second.Nonce {
		t.Fatalf("store should hold only the refreshed token, got %+v ok=%v", current, ok)
	}
}

func TestIssuedTokenTagVerifies(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 20, 13, 55, 0, 0, time.UTC)}
	signer := NewHMACSigner("test-key")
	i := NewIssuer(NewTokenStore(), signer, Policy{ValidityWindow: 90 * time.Second})
	i.now = clock.Now

	tok := i.Issue("c1", "2025-01-20", clock.Now(), "a1")
	if !signer.Verify(tok) {
		t.Fatal("freshly issued token must carry a valid tag")
	}

	parsed, err := ParsePayload(tok.Payload())
	if err != nil {
		t.Fatalf("payload roundtrip failed: %v", err)
	}
	if !signer.Verify(parsed) {
		t.Fatal("tag must survive the payload roundtrip")
	}
}

func TestValidity(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 20, 13, 55, 0, 0, time.UTC)}
	start := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	i := newTestIssuer(clock, Policy{ValidityWindow: 90 * time.Second})

	if got := i.Validity("c1", "2025-01-20"); got != 0 {
		t.Fatalf("no token yet, want 0, got %d", got)
	}
	i.Issue("c1", "2025-01-20", start, "a1")
	clock.Advance(30 * time.Second)
	if got := i.Validity("c1", "2025-01-20"); got != 60 {
		t.Fatalf("want 60s remaining, got %d", got)
	}
	clock.Advance(2 * time.Minute)
	if got := i.Validity("c1", "2025-01-20"); got != 0 {
		t.Fatalf("expired, want 0, got %d", got)
	}
}
