package checkin

import (
	"sync"
	"time"
)

// SessionKey identifies one class session: a class on a calendar day.
type SessionKey struct {
	ClassID string
	Date    string
}

// TokenStore holds at most one current token per class session.
// All mutation is atomic per operation; keys are independent, so a single
// mutex over the map is enough under realistic class counts.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[SessionKey]Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[SessionKey]Token)}
}

// Get returns the current token for the session if it is still live at
// now. Expired entries are treated as absent and evicted lazily.
func (s *TokenStore) Get(classID, date string, now time.Time) (Token, bool) {
	key := SessionKey{ClassID: classID, Date: date}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[key]
	if !ok {
		return Token{}, false
	}
	if now.After(t.ExpiresAt) {
		delete(s.tokens, key)
		return Token{}, false
	}
	return t, true
}

// Put installs a token, unconditionally replacing any prior entry. This
// is how refresh kills outstanding copies regardless of their expiry.
func (s *TokenStore) Put(classID, date string, t Token) {
	s.mu.Lock()
	s.tokens[SessionKey{ClassID: classID, Date: date}] = t
	s.mu.Unlock()
}

// Invalidate removes the session's token. A scan landing between an
// Invalidate and the following Put sees no active token rather than two.
func (s *TokenStore) Invalidate(classID, date string) {
	s.mu.Lock()
	delete(s.tokens, SessionKey{ClassID: classID, Date: date})
	s.mu.Unlock()
}

// Prune drops every expired entry and reports how many were removed.
// Optional memory hygiene; correctness never depends on it.
func (s *TokenStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, t := range s.tokens {
		if now.After(t.ExpiresAt) {
			delete(s.tokens, key)
			removed++
		}
	}
	return removed
}
