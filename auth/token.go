/*
Package auth issues and verifies the bearer tokens of the HTTP API.

TOKENS:
  HS256 JWTs (golang-jwt/jwt/v5) carrying the user id, company id and role.
  The company id in the token is the only source of tenancy for a request:
  handlers never read it from the body or the URL.

PASSWORDS:
  bcrypt (golang.org/x/crypto), see password.go.

NOT BUILT:
  Refresh tokens, revocation, 2FA.
*/
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartgestao/smart-gestao/finance"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "smart-gestao"

// Claims is the JWT payload.
type Claims struct {
	UserID    string       `json:"uid"`
	CompanyID string       `json:"cid"`
	Role      finance.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and parses tokens with one HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for u and its expiry.
func (i *Issuer) Issue(u finance.User) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		UserID:    u.ID,
		CompanyID: u.CompanyID,
		Role:      u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, algorithm, issuer and expiry.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.CompanyID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing tenant claims", ErrInvalidToken)
	}
	return claims, nil
}
