package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/user"
)

func testUser(approved bool) user.User {
	return user.User{
		ID:       "11111111-2222-3333-4444-555555555555",
		Email:    "someone@example.com",
		Role:     user.RoleUser,
		Approved: approved,
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken(testUser(true))
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}

	if claims.UserID != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected subject: %s", claims.UserID)
	}

	if claims.Role != user.RoleUser {
		t.Fatalf("unexpected role: %s", claims.Role)
	}

	if !claims.Approved {
		t.Fatalf("approved flag lost in transit")
	}
}

func TestAccessToken_FreezesApprovalAtIssuance(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken(testUser(false))
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	// the DB flag may flip later; the token keeps what it was minted with
	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}

	if claims.Approved {
		t.Fatalf("token claims approval the user did not have at issuance")
	}
}

func TestVerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, _, _, err := m.GenerateRefreshToken(testUser(true))
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	_, err = m.VerifyAccessToken(raw)
	if err == nil {
		t.Fatalf("expected type check to fail for a refresh token")
	}
}

func TestVerifyRefreshToken_CarriesJTI(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, jti, _, err := m.GenerateRefreshToken(testUser(true))
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	claims, err := m.VerifyRefreshToken(raw)
	if err != nil {
		t.Fatalf("VerifyRefreshToken error: %v", err)
	}

	if claims.JTI != jti {
		t.Fatalf("jti mismatch: got %s, want %s", claims.JTI, jti)
	}
}

func TestVerify_RejectsTamperedToken(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken(testUser(true))
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}

	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = m.VerifyAccessToken(tampered)
	if err == nil {
		t.Fatalf("expected signature verification to fail")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Minute, time.Hour)
	verifier := NewManager("secret-b", time.Minute, time.Hour)

	raw, err := issuer.GenerateAccessToken(testUser(true))
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	_, err = verifier.VerifyAccessToken(raw)
	if err == nil {
		t.Fatalf("expected verification with the wrong secret to fail")
	}
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	a := m.HashRefreshToken("some-raw-token")
	b := m.HashRefreshToken("some-raw-token")
	c := m.HashRefreshToken("other-raw-token")

	if a != b {
		t.Fatalf("same input hashed differently")
	}

	if a == c {
		t.Fatalf("different inputs collided")
	}

	if a == "some-raw-token" {
		t.Fatalf("hash must not equal the raw token")
	}
}
