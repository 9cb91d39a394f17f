// Package auth verifies bearer credentials issued by the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

// Verifier validates HMAC-signed JWTs and maps their claims onto the
// coordination layer's identity contract.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(ctx context.Context, credential string) (domain.Claims, error) {
	token, err := jwt.ParseWithClaims(credential, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claims{}, fmt.Errorf("%w: %v", domain.ErrAuthTokenExpired, err)
		}
		return domain.Claims{}, fmt.Errorf("%w: %v", domain.ErrAuthTokenInvalid, err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Claims{}, domain.ErrAuthTokenInvalid
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing sub", domain.ErrAuthTokenInvalid)
	}
	claims := domain.Claims{UserID: domain.UserID(sub)}
	claims.Email, _ = mc["email"].(string)
	claims.DisplayName, _ = mc["name"].(string)
	claims.Role, _ = mc["role"].(string)
	if claims.DisplayName == "" {
		claims.DisplayName = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
