package auth

import (
	"bidvault/internal/biddingerrors"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity resolves a bearer token to the id of the calling user
type Identity interface {
	Authenticate(token string) (string, error)
}

// Verifier validates and issues HS256 tokens whose subject is the user id
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier signing with secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Authenticate returns the user id carried by token. Any failure wraps ErrUnauthorized.
func (v *Verifier) Authenticate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("auth: %w - missing token", biddingerrors.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		return "", fmt.Errorf("auth: %w - %s", biddingerrors.ErrUnauthorized, reason)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("auth: %w - token has no subject", biddingerrors.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID valid for ttl
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth: %w - empty user id", biddingerrors.ErrInvalidRequest)
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
