package auth

import (
	"errors"
	"time"

	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/frahmantamala/account-registry/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

// Actor is an authenticated account as seen by the authorization checks. The
// permission set is a snapshot taken at authentication time.
type Actor struct {
	ID          int64
	Permissions permission.Set
	Token       token.Token
}

type Operation string

const (
	OperationCreate Operation = "create"
	OperationView   Operation = "view"
	OperationModify Operation = "modify"
)

// TokenCodec turns ledger tokens into wire strings and back.
type TokenCodec interface {
	Encode(t token.Token) (string, error)
	Decode(raw string) (*Claims, error)
}

// Claims represents JWT token claims. RegisteredClaims.ID carries the ledger value.
type Claims struct {
	AccountID int64 `json:"account_id"`
	jwt.RegisteredClaims
}

type JWTTokenCodec struct {
	Secret []byte
	Issuer string
}

type LoginResult struct {
	AccountID int64      `json:"account_id"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)
