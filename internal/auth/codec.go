package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/frahmantamala/account-registry/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "account-registry"

// NewJWTTokenCodec creates a codec signing with HS256.
func NewJWTTokenCodec(secret string) *JWTTokenCodec {
	return &JWTTokenCodec{
		Secret: []byte(secret),
		Issuer: defaultIssuer,
	}
}

// Encode wraps a ledger token. The exp claim is omitted for tokens that never expire.
func (c *JWTTokenCodec) Encode(t token.Token) (string, error) {
	claims := &Claims{
		AccountID: t.AccountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       t.Value,
			Subject:  strconv.FormatInt(t.AccountID, 10),
			Issuer:   c.Issuer,
			IssuedAt: jwt.NewNumericDate(t.IssuedAt),
		},
	}
	if !t.NeverExpires() {
		claims.ExpiresAt = jwt.NewNumericDate(t.ExpiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. It does not consult
// any ledger.
func (c *JWTTokenCodec) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(c.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrMalformedToken
	}
	if claims.Subject != strconv.FormatInt(claims.AccountID, 10) {
		return nil, fmt.Errorf("%w: subject does not match account", ErrMalformedToken)
	}
	return claims, nil
}
