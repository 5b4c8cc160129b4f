package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/acadnet/collab-gateway/internal/directory"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := directory.NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	identity, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.Subject != "user-1" {
		t.Errorf("Expected subject user-1, got %q", identity.Subject)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := directory.NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Expected error for expired token")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := directory.NewJWTVerifier(testSecret)
	token := signToken(t, "other-secret", jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Expected error for token signed with the wrong secret")
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	v := directory.NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Expected error for token without a sub claim")
	}
}

func TestVerifyGarbage(t *testing.T) {
	v := directory.NewJWTVerifier(testSecret)
	if _, err := v.Verify(context.Background(), "not-a-token"); err == nil {
		t.Error("Expected error for malformed token")
	}
}
