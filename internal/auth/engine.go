package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/core/permission"
)

// Engine authenticates claimed identities against the registry and decides
// whether an actor may perform an operation.
type Engine struct {
	registry *account.Registry
	codec    TokenCodec
	checker  PermissionChecker
	logger   *slog.Logger
}

func NewEngine(registry *account.Registry, codec TokenCodec, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		codec:    codec,
		checker:  NewPermissionChecker(),
		logger:   logger,
	}
}

// Authenticate resolves actorID and checks raw against that account's ledger.
// The returned actor carries a copy of the account's permissions.
func (e *Engine) Authenticate(ctx context.Context, actorID int64, raw string) (*Actor, error) {
	h, ok := e.registry.GetByID(actorID)
	if !ok {
		e.logger.WarnContext(ctx, "authentication failed: unknown account", "actor_id", actorID)
		return nil, internal.ErrAuthenticationFailed
	}

	claims, decodeErr := e.codec.Decode(raw)

	var actor *Actor
	err := h.View(func(a account.Account) error {
		v, ok := a.(*account.Verified)
		if !ok {
			return internal.ErrAuthenticationFailed.WithMessage(fmt.Sprintf("account %d is not verified", actorID))
		}
		if decodeErr != nil {
			return internal.ErrInvalidToken.WithCause(decodeErr)
		}
		if claims.AccountID != actorID {
			return internal.ErrInvalidToken.WithMessage("token was issued to another account")
		}
		if !v.Tokens.Validate(claims.ID) {
			return internal.ErrInvalidToken
		}
		tok, _ := v.Tokens.Lookup(claims.ID)
		actor = &Actor{
			ID:          v.ID,
			Permissions: v.Attributes.Permissions,
			Token:       tok,
		}
		return nil
	})
	if err != nil {
		e.logger.WarnContext(ctx, "authentication failed", "actor_id", actorID, "error", err)
		return nil, err
	}
	return actor, nil
}

// Authorize returns ErrForbidden when actor lacks the permission op requires.
func (e *Engine) Authorize(ctx context.Context, actor *Actor, op Operation) error {
	if actor == nil {
		return internal.ErrAuthenticationFailed
	}
	if e.checker.CanPerform(actor, op) {
		return nil
	}
	required, _ := RequiredPermission(op)
	e.logger.WarnContext(ctx, "authorization denied",
		"actor_id", actor.ID,
		"operation", op,
		"required_permission", required.String())
	return internal.ErrForbidden.WithMessage(fmt.Sprintf("%s requires the %s permission", op, required))
}

// AuthenticateFor runs Authenticate followed by Authorize.
func (e *Engine) AuthenticateFor(ctx context.Context, creds internal.Credentials, op Operation) (*Actor, error) {
	actor, err := e.Authenticate(ctx, creds.AccountID, creds.Token)
	if err != nil {
		return nil, err
	}
	if err := e.Authorize(ctx, actor, op); err != nil {
		return nil, err
	}
	return actor, nil
}

// Contain truncates requested to what actor holds. It never fails.
func (e *Engine) Contain(actor *Actor, requested permission.Set) permission.Set {
	return e.checker.Contain(actor, requested)
}

// CanReach reports whether actor's permissions cover every permission of a target.
func (e *Engine) CanReach(actor *Actor, target permission.Set) bool {
	return e.checker.CanReach(actor, target)
}

// Revoke drops the actor's current token from its ledger.
func (e *Engine) Revoke(ctx context.Context, actor *Actor) error {
	h, ok := e.registry.GetByID(actor.ID)
	if !ok {
		return internal.ErrAuthenticationFailed
	}
	return h.View(func(a account.Account) error {
		v, ok := a.(*account.Verified)
		if !ok {
			return internal.ErrAuthenticationFailed
		}
		if !v.Tokens.Invalidate(actor.Token.Value) {
			return internal.ErrInvalidToken
		}
		e.logger.InfoContext(ctx, "token revoked", "actor_id", actor.ID)
		return nil
	})
}

// IsAuthError reports whether err is one of the authentication failures.
func IsAuthError(err error) bool {
	return errors.Is(err, internal.ErrAuthenticationFailed) || errors.Is(err, internal.ErrInvalidToken)
}
