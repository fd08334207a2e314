// Package identity resolves bearer credentials to user ids.
//
// Credential issuance is someone else's problem; this adapter only
// answers "verify token -> identity".
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every verification failure. Callers get no
// detail on why a credential was rejected.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves a bearer credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, bearer string) (string, error)
}

// JWTVerifier verifies HS256-signed tokens issued by the identity
// provider; the subject claim carries the user id.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier over the shared signing secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, bearer string) (string, error) {
	token, err := jwt.Parse(bearer, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthorized
	}
	return sub, nil
}
