package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatalf("hash must not equal plaintext")
	}
	if err := hasher.VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := hasher.VerifyPassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if err := hasher.VerifyPassword("", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty hash: want ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)
	if _, err := hasher.HashPassword(""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestHashTokenHandlesLongTokens(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)
	// Signed JWTs are far longer than bcrypt's 72-byte input limit.
	token := strings.Repeat("header.payload.signature", 20)

	hash, err := hasher.HashToken(token)
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if err := hasher.VerifyToken(hash, token); err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if err := hasher.VerifyToken(hash, token+"x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if err := hasher.VerifyToken("", token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing stored hash: want ErrUnauthorized, got %v", err)
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	hasher := NewHasher(999)
	if hasher.cost != DefaultHashCost {
		t.Fatalf("out-of-range cost must fall back to default, got %d", hasher.cost)
	}
}
