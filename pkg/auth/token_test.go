package auth

import (
	"testing"
	"time"
)

func TestTokenIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret-please-rotate", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "user" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a", time.Hour)
	b, _ := NewTokenIssuer("secret-b", time.Hour)
	token, err := a.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret-please-rotate", time.Hour)
	issuer.ttl = -2 * time.Minute
	token, err := issuer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokenVerifyRejectsGarbage(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret-please-rotate", time.Hour)
	if _, err := issuer.Verify("not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
