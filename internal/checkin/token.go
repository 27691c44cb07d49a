package checkin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Token is the credential embedded in one class session's QR code.
type Token struct {
	ClassID        string    `json:"class_id"`
	Date           string    `json:"date"` // calendar day, YYYY-MM-DD, class-local
	AcademyID      string    `json:"academy_id"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	ClassStartTime time.Time `json:"class_start_time"`
	Nonce          string    `json:"nonce"`
	Tag            string    `json:"tag"`
}

// Payload serializes the token for transport. The QR image is rendered
// from this string by the client; the server never draws pixels.
func (t Token) Payload() string {
	raw, err := json.Marshal(t)
	if err != nil {
		// Token has no unmarshalable fields; this cannot happen.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParsePayload reconstructs a token from a scanned payload.
// Any decode failure or missing identifying field is ErrInvalidPayload.
func ParsePayload(payload string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Token{}, ErrInvalidPayload
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, ErrInvalidPayload
	}
	if t.ClassID == "" || t.Date == "" || t.Nonce == "" || t.Tag == "" || t.ExpiresAt.IsZero() {
		return Token{}, ErrInvalidPayload
	}
	return t, nil
}

// Signer computes and checks the authenticity tag over a token's fields.
// Kept abstract so the scheme can be swapped without touching the
// protocol logic.
type Signer interface {
	Sign(t Token) string
	Verify(t Token) bool
}

// HMACSigner tags tokens with HMAC-SHA256 under a shared key.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner creates a signer from the configured secret.
func NewHMACSigner(key string) *HMACSigner {
	return &HMACSigner{key: []byte(key)}
}

// Sign computes the tag over every field except the tag itself.
func (s *HMACSigner) Sign(t Token) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s|%s|%s|%d|%d|%d|%s",
		t.ClassID, t.Date, t.AcademyID,
		t.IssuedAt.Unix(), t.ExpiresAt.Unix(), t.ClassStartTime.Unix(),
		t.Nonce)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the tag and compares in constant time.
func (s *HMACSigner) Verify(t Token) bool {
	want, err := hex.DecodeString(t.Tag)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(s.Sign(t))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
