package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token not issued for this session")
)

// CallbackSigner mints and verifies the short-lived credential carried as the
// _token query parameter on callback URLs handed to the assistant. Tokens are
// HS256 JWTs bound to a session id, so they are URL-safe by construction and
// cannot be replayed across conversations. Tokens are stateless and
// time-bounded, not single-use: nothing is persisted between sign and verify.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCallbackSigner creates a signer with the shared secret and token lifetime.
func NewCallbackSigner(secret []byte, ttl time.Duration) *CallbackSigner {
	return &CallbackSigner{secret: secret, ttl: ttl}
}

// Sign mints a token for the given session id.
func (s *CallbackSigner) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates the token signature and expiry, and checks that the token
// was issued for the given session id. Any failure is a hard rejection: the
// caller must not touch conversation state afterwards.
func (s *CallbackSigner) Verify(tokenString, sessionID string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	if sub != sessionID {
		return ErrTokenMismatch
	}

	return nil
}
