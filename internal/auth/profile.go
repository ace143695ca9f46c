package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ProfileTokenExpiry = 365 * 24 * time.Hour
	profileIssuer      = "macdesigns"
)

var ErrInvalidProfile = errors.New("invalid profile token")

// ProfileTokens signs and verifies the browser-profile cookie. The profile is the
// unit the gate's lockout is keyed on.
type ProfileTokens struct {
	secret []byte
	expiry time.Duration
}

// NewProfileTokens creates a signer. An empty secret gets a random per-process key,
// which forgets every profile on restart.
func NewProfileTokens(secret string) (*ProfileTokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate profile secret: %w", err)
		}
	}
	return &ProfileTokens{secret: key, expiry: ProfileTokenExpiry}, nil
}

// NewProfileID mints a fresh profile identifier.
func NewProfileID() string {
	return uuid.NewString()
}

// Issue signs a token for profileID.
func (p *ProfileTokens) Issue(profileID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   profileID,
		Issuer:    profileIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign profile token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its profile id.
func (p *ProfileTokens) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(profileIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidProfile
	}
	if claims.Subject == "" {
		return "", ErrInvalidProfile
	}
	return claims.Subject, nil
}

// MaxAge is the cookie lifetime matching the token expiry.
func (p *ProfileTokens) MaxAge() int {
	return int(p.expiry / time.Second)
}
