package auth

import (
	"errors"
	"time"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity a bearer token was issued to.
//
// Tier and role are not carried. They are re-read from the store on every request.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer whose tokens expire after ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for the identity.
func (i *TokenIssuer) Issue(email string) (string, error) {
	const op = "auth.issue_token"

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", domain.Internal(err, op, "failed to sign token")
	}
	return signed, nil
}

// Verify parses a token and returns the identity it was issued to.
// Returns domain.EUNAUTHORIZED for malformed, tampered, or expired tokens.
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	const op = "auth.verify_token"

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.Wrap(err, domain.EUNAUTHORIZED, op, "token expired")
		}
		return "", domain.Wrap(err, domain.EUNAUTHORIZED, op, "invalid token")
	}
	if !token.Valid || claims.Email == "" {
		return "", domain.Unauthorized(op, "invalid token")
	}

	return claims.Email, nil
}
