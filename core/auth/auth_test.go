package auth

import (
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"

	t.Run("ValidToken", func(t *testing.T) {
		token, err := GenerateToken(secret, time.Hour)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		claims, err := ParseToken(secret, token)
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}
		if claims.Subject != "admin" {
			t.Fatalf("unexpected subject %q", claims.Subject)
		}
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		token, _ := GenerateToken(secret, time.Hour)
		if _, err := ParseToken("other-secret", token); err == nil {
			t.Fatal("token signed with a different secret was accepted")
		}
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		token, _ := GenerateToken(secret, -time.Minute)
		if _, err := ParseToken(secret, token); err == nil {
			t.Fatal("expired token was accepted")
		}
	})
}
