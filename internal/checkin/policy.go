package checkin

import "time"

// Status classifies a successful check-in.
type Status string

const (
	StatusOnTime Status = "on_time"
	StatusLate   Status = "late"
)

// Policy holds the timing rules shared by the issuer and the verifier.
// Both windows come from configuration, never hard-coded literals.
type Policy struct {
	// ValidityWindow bounds a token's lifetime. Kept short so a
	// photographed code has a small blast radius.
	ValidityWindow time.Duration
	// GracePeriod is the tolerance after class start during which a
	// check-in still counts as on time.
	GracePeriod time.Duration
}

// IsExpired reports whether the token's lifetime has elapsed. The
// boundary instant itself is still valid.
func (p Policy) IsExpired(t Token, now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RemainingSeconds returns whole seconds of token lifetime left,
// clamped at zero.
func (p Policy) RemainingSeconds(t Token, now time.Time) int {
	left := int(t.ExpiresAt.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// Classify labels a scan relative to the scheduled class start. A scan
// at exactly start+grace is on time; anything later is late. Lateness is
// independent of token expiry: a live token can already classify late.
func (p Policy) Classify(t Token, scannedAt time.Time) Status {
	if scannedAt.After(t.ClassStartTime.Add(p.GracePeriod)) {
		return StatusLate
	}
	return StatusOnTime
}
