package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// Claims identifies the caller of a guest handler. Profile names the
// database profile the guest should act for.
type Claims struct {
	jwt.Claims `json:"-"`
	SessionID string `json:"session_id"`
	Expiry    int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
	Profile   string `json:"pro"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetIssuer() (string, error) {
	return "", nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Profile, nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// FromContext returns the claims stored by LoginRequired.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*Claims)
	return c, ok
}

// IssueToken signs claims with key using HS256.
func IssueToken(key []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// LoadJWTSecretKey reads the signing key at path, generating and storing a
// new random key if the file does not exist.
func LoadJWTSecretKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read JWT secret key: %w", err)
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random JWT secret key: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return nil, fmt.Errorf("failed to write JWT secret key: %w", err)
	}
	return b, nil
}
