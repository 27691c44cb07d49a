package checkin

import (
	"time"

	"github.com/google/uuid"
)

// Issuer mints class-session tokens, enforcing the single-active-token
// invariant through the store.
type Issuer struct {
	store  *TokenStore
	signer Signer
	policy Policy
	now    func() time.Time
}

// NewIssuer wires an issuer to its store and signing key.
func NewIssuer(store *TokenStore, signer Signer, policy Policy) *Issuer {
	return &Issuer{store: store, signer: signer, policy: policy, now: time.Now}
}

// Issue returns the session's live token unchanged when one exists, so
// repeated instructor requests do not churn nonces. Otherwise it mints,
// stores and returns a fresh one.
func (i *Issuer) Issue(classID, date string, classStart time.Time, academyID string) Token {
	now := i.now()
	if t, ok := i.store.Get(classID, date, now); ok {
		return t
	}
	return i.mint(classID, date, classStart, academyID, now)
}

// Refresh unconditionally invalidates any outstanding token before
// minting, for when an instructor suspects a leaked code. Every copy of
// the prior token dies the moment this returns.
func (i *Issuer) Refresh(classID, date string, classStart time.Time, academyID string) Token {
	i.store.Invalidate(classID, date)
	return i.mint(classID, date, classStart, academyID, i.now())
}

// Validity reports whole seconds left on the session's current token,
// zero when none is live.
func (i *Issuer) Validity(classID, date string) int {
	now := i.now()
	t, ok := i.store.Get(classID, date, now)
	if !ok {
		return 0
	}
	return i.policy.RemainingSeconds(t, now)
}

func (i *Issuer) mint(classID, date string, classStart time.Time, academyID string, now time.Time) Token {
	t := Token{
		ClassID:        classID,
		Date:           date,
		AcademyID:      academyID,
		IssuedAt:       now,
		ExpiresAt:      now.Add(i.policy.ValidityWindow),
		ClassStartTime: classStart,
		Nonce:          uuid.NewString(),
	}
	t.Tag = i.signer.Sign(t)
	i.store.Put(classID, date, t)
	return t
}
