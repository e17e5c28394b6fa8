package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher performs slow, salted credential hashing with a configurable cost
// factor. The same primitive protects both stored passwords and the per-user
// refresh-token hash, so a presented refresh token costs an attacker exactly
// as much to brute-force as a password.
type Hasher struct {
	cost int
}

// DefaultHashCost mirrors bcrypt's default work factor.
const DefaultHashCost = bcrypt.DefaultCost

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside
// bcrypt's supported range fall back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &Hasher{cost: cost}
}

// HashPassword hashes a plaintext password.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash. The
// comparison runs in time bounded by the bcrypt work factor and never
// short-circuits on input length.
func (h *Hasher) VerifyPassword(hash, password string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// HashToken hashes an opaque token string, typically a signed refresh token.
// Tokens exceed bcrypt's 72-byte input limit, so they are reduced through
// sha256 before the slow hash is applied.
func (h *Hasher) HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token is empty", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword(digestToken(token), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken compares a presented token with a stored token hash.
func (h *Hasher) VerifyToken(hash, token string) error {
	if hash == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), digestToken(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

func digestToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
