package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("i1", "a1", "academy-checkin", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "academy-checkin")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "i1" || claims.Role != RoleInstructor || claims.AcademyID != "a1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("i1", "a1", "academy-checkin", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other", "academy-checkin"); err == nil {
		t.Fatal("wrong key should fail")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("i1", "a1", "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "academy-checkin"); err == nil {
		t.Fatal("issuer mismatch should fail")
	}
}
