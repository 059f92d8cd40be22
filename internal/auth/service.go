package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/core/events"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	Logout(ctx context.Context, creds internal.Credentials) error
}

// Service issues and revokes ledger tokens.
type Service struct {
	registry   *account.Registry
	engine     *Engine
	codec      TokenCodec
	publisher  events.Publisher
	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a new auth service. defaultTTL applies to accounts without
// their own token lifetime; zero issues tokens that never expire.
func NewService(registry *account.Registry, engine *Engine, codec TokenCodec, publisher events.Publisher, defaultTTL time.Duration, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		registry:   registry,
		engine:     engine,
		codec:      codec,
		publisher:  publisher,
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     logger,
	}
}

type loginCandidate struct {
	handle *account.Handle
	hash   string
}

// Login checks the password of every verified account registered under the
// email and issues a token for the first match.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var candidates []loginCandidate
	for _, h := range s.registry.Handles() {
		_ = h.View(func(a account.Account) error {
			if v, ok := a.(*account.Verified); ok && strings.EqualFold(v.Attributes.Email, dto.Email) {
				candidates = append(candidates, loginCandidate{handle: h, hash: v.Attributes.PasswordHash})
			}
			return nil
		})
	}

	for _, c := range candidates {
		if !VerifyPassword(c.hash, dto.Password) {
			continue
		}
		result, err := s.issue(ctx, c.handle)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "login succeeded", "account_id", result.AccountID)
		return result, nil
	}

	s.logger.WarnContext(ctx, "login failed", "candidates", len(candidates))
	return nil, internal.ErrInvalidCredentials
}

func (s *Service) issue(ctx context.Context, h *account.Handle) (*LoginResult, error) {
	var issued *LoginResult
	err := h.View(func(a account.Account) error {
		v, ok := a.(*account.Verified)
		if !ok {
			return internal.ErrInvalidCredentials
		}

		lifetime := v.Attributes.TokenLifetime
		if lifetime == 0 {
			lifetime = s.defaultTTL
		}
		var expiresAt time.Time
		if lifetime > 0 {
			expiresAt = s.now().Add(lifetime)
		}

		tok := v.Tokens.NewToken(v.ID, expiresAt)
		raw, err := s.codec.Encode(tok)
		if err != nil {
			v.Tokens.Invalidate(tok.Value)
			return internal.NewInternalError("failed to issue token", err)
		}

		issued = &LoginResult{AccountID: v.ID, Token: raw}
		if !tok.NeverExpires() {
			issued.ExpiresAt = &tok.ExpiresAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.NewAccountEvent(events.EventTypeTokenIssued, issued.AccountID, issued.AccountID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token event", "account_id", issued.AccountID, "error", err)
	}
	return issued, nil
}

// Logout revokes the token the request was authenticated with.
func (s *Service) Logout(ctx context.Context, creds internal.Credentials) error {
	actor, err := s.engine.Authenticate(ctx, creds.AccountID, creds.Token)
	if err != nil {
		return err
	}
	if err := s.engine.Revoke(ctx, actor); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.NewAccountEvent(events.EventTypeTokenRevoked, actor.ID, actor.ID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token event", "account_id", actor.ID, "error", err)
	}
	return nil
}
