// services/token.go - Single-use invitation credentials
package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	tokenBytes          = 32
	DefaultInviteExpiry = 7 * 24 * time.Hour
)

// IssuedToken is returned once; only Hash is ever stored.
type IssuedToken struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

type TokenIssuer struct {
	expiry time.Duration
	now    func() time.Time
}

func NewTokenIssuer(expiry time.Duration) *TokenIssuer {
	if expiry <= 0 {
		expiry = DefaultInviteExpiry
	}
	return &TokenIssuer{
		expiry: expiry,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue generates a 256-bit credential encoded as 64 hex characters.
func (t *TokenIssuer) Issue() (IssuedToken, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return IssuedToken{}, fmt.Errorf("failed to generate invite token: %w", err)
	}
	plaintext := hex.EncodeToString(b)
	return IssuedToken{
		Plaintext: plaintext,
		Hash:      HashToken(plaintext),
		ExpiresAt: t.now().Add(t.expiry),
	}, nil
}

// Validate reports whether presented hashes to hash and the expiry is still ahead.
func (t *TokenIssuer) Validate(hash *string, expiresAt *time.Time, presented string) bool {
	if hash == nil || *hash == "" || expiresAt == nil || presented == "" {
		return false
	}
	computed := HashToken(presented)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(*hash)) != 1 {
		return false
	}
	return t.now().Before(*expiresAt)
}

func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
