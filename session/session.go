// Package session issues and checks the bearer tokens that scope batches and
// notifications to a logged-in farmer.
package session

import (
	"errors"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "shekor"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clock.NewClock()}
}

// Issue signs a token whose subject is the user's mobile number.
func (i *Issuer) Issue(mobile string) (*Token, error) {
	now := i.clock.Now()
	jti, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Issuer:    issuer,
		Subject:   mobile,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify returns the mobile number a valid token was issued for.
func (i *Issuer) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrExpiredToken
	}
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
