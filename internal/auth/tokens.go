package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// Claims is the payload of the session cookie.
type Claims struct {
	Name      string `json:"name,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session cookies with HS256.
type Tokens struct {
	key    []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

func NewTokens(key string, expiry time.Duration) *Tokens {
	return &Tokens{key: []byte(key), expiry: expiry, issuer: "quote-compare", now: time.Now}
}

// Issue returns a signed token for username bound to sessionID.
func (t *Tokens) Issue(username, name, sessionID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.expiry)
	claims := Claims{
		Name:      name,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse verifies token and returns its claims. Any failure wraps
// common.ErrUnauthorized.
func (t *Tokens) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: session expired", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: incomplete token", common.ErrUnauthorized)
	}
	return &claims, nil
}
