// Package auth выдаёт и проверяет токены доступа к административному API мира
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretSize минимальная длина секрета в байтах
	MinSecretSize = 32
	// DefaultTokenTTL время жизни токена по умолчанию
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrSecretTooShort = fmt.Errorf("secret key must be at least %d bytes", MinSecretSize)
	ErrInvalidToken   = errors.New("invalid token")
)

// Claims represents JWT claims
type Claims struct {
	Operator string `json:"operator"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenAuthority подписывает и проверяет токены операторов мира
type TokenAuthority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenAuthority создаёт authority с секретом HS256
func NewTokenAuthority(secret []byte, issuer string, ttl time.Duration) (*TokenAuthority, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenAuthority{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewTokenAuthorityFromBase64 создаёт authority из секрета в base64
func NewTokenAuthorityFromBase64(secret, issuer string, ttl time.Duration) (*TokenAuthority, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, err
	}
	return NewTokenAuthority(decoded, issuer, ttl)
}

// Issue creates a signed token for the operator
func (a *TokenAuthority) Issue(operator string, isAdmin bool) (string, error) {
	now := a.now()
	claims := &Claims{
		Operator: operator,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate checks token validity and returns its claims
func (a *TokenAuthority) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecureSecret generates a new secure secret key
func GenerateSecureSecret() string {
	b := make([]byte, MinSecretSize)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}
