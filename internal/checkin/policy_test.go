package checkin

import (
	"testing"
	"time"
)

func TestPolicyRemainingSeconds(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	p := Policy{ValidityWindow: 90 * time.Second}
	tok := Token{ExpiresAt: now.Add(90 * time.Second)}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"fresh", now, 90},
		{"mid-window", now.Add(30 * time.Second), 60},
		{"at expiry", now.Add(90 * time.Second), 0},
		{"past expiry", now.Add(2 * time.Minute), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.RemainingSeconds(tok, tc.at); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestPolicyIsExpired(t *testing.T) {
	now := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	p := Policy{}
	tok := Token{ExpiresAt: now}

	if p.IsExpired(tok, now) {
		t.Fatal("expiry instant should still be valid")
	}
	if !p.IsExpired(tok, now.Add(time.Second)) {
		t.Fatal("past expiry should be expired")
	}
}

// The grace boundary is inclusive: a scan at exactly start+grace is on
// time, one second later is late.
func TestPolicyClassifyBoundary(t *testing.T) {
	start := time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC)
	p := Policy{GracePeriod: 5 * time.Minute}
	tok := Token{ClassStartTime: start, ExpiresAt: start.Add(time.Hour)}

	tests := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"before start", start.Add(-time.Minute), StatusOnTime},
		{"at start", start, StatusOnTime},
		{"inside grace", start.Add(2 * time.Minute), StatusOnTime},
		{"at grace boundary", start.Add(5 * time.Minute), StatusOnTime},
		{"one second past grace", start.Add(5*time.Minute + time.Second), StatusLate},
		{"well past grace", start.Add(time.Hour), StatusLate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Classify(tok, tc.at); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}
