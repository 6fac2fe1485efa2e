package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the account and session identity inside a token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token.
func (c *Claims) AccountID() string {
	return c.Subject
}

// TokenCodec signs and parses HS256 tokens.
type TokenCodec struct {
	secret []byte
	issuer string
}

// NewTokenCodec creates a codec with the given signing secret.
func NewTokenCodec(secret, issuer string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for the account/session pair.
func (tc *TokenCodec) Sign(accountID, sessionID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    tc.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parsedClaims is the validated view of a token.
type parsedClaims struct {
	AccountID string
	SessionID string
}

// Parse validates a token and extracts its claims.
func (tc *TokenCodec) Parse(tokenString string) (parsedClaims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.secret, nil
	}, jwt.WithIssuer(tc.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return parsedClaims{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return parsedClaims{}, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return parsedClaims{}, errors.New("token missing identity claims")
	}

	return parsedClaims{AccountID: claims.Subject, SessionID: claims.SessionID}, nil
}
