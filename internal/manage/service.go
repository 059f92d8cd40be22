package manage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/auth"
	"github.com/frahmantamala/account-registry/internal/core/events"
	"github.com/frahmantamala/account-registry/internal/core/permission"
)

const (
	maxIDAttempts = 16
	// maxAccountID keeps IDs exact in clients that decode JSON numbers as float64.
	maxAccountID = 1<<53 - 1
)

// Authorizer is the part of the authorization engine batch operations need.
type Authorizer interface {
	AuthenticateFor(ctx context.Context, creds internal.Credentials, op auth.Operation) (*auth.Actor, error)
	Contain(actor *auth.Actor, requested permission.Set) permission.Set
	CanReach(actor *auth.Actor, target permission.Set) bool
}

type ServiceAPI interface {
	Create(ctx context.Context, creds internal.Credentials, desc CreateDescriptor) (int64, error)
	View(ctx context.Context, creds internal.Credentials, desc ViewDescriptor) ([]ViewResult, error)
	Modify(ctx context.Context, creds internal.Credentials, desc ModifyDescriptor) error
}

type Service struct {
	registry   *account.Registry
	authz      Authorizer
	publisher  events.Publisher
	bcryptCost int
	newID      func() int64
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(registry *account.Registry, authz Authorizer, publisher events.Publisher, bcryptCost int, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		registry:   registry,
		authz:      authz,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		newID:      randomID,
		now:        time.Now,
		logger:     logger,
	}
}

// randomID returns an external account ID in [1, maxAccountID].
func randomID() int64 {
	return rand.Int64N(maxAccountID) + 1
}

// Create stores a new verified account. Requested permissions the actor does
// not hold are dropped.
func (s *Service) Create(ctx context.Context, creds internal.Credentials, desc CreateDescriptor) (id int64, err error) {
	defer func() { observeOperation("create", err) }()

	actor, err := s.authz.AuthenticateFor(ctx, creds, auth.OperationCreate)
	if err != nil {
		return 0, err
	}

	req, verr := desc.validate()
	if verr != nil {
		return 0, verr
	}

	hash, err := auth.HashPassword(req.password, s.bcryptCost)
	if err != nil {
		return 0, internal.NewInternalError("failed to hash password", err)
	}

	attrs := req.attrs
	attrs.PasswordHash = hash
	attrs.Permissions = s.authz.Contain(actor, req.permissions)
	attrs.RegistrationTime = s.now()
	if ip := internal.ClientIPFromContext(ctx); ip != "" {
		attrs.RegistrationIP = &ip
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := s.newID()
		err = s.registry.Push(account.NewVerified(candidate, attrs.Clone()))
		if errors.Is(err, internal.ErrAccountExists) {
			continue
		}
		if err != nil {
			return 0, internal.NewInternalError("failed to store account", err)
		}

		s.logger.InfoContext(ctx, "account created",
			"actor_id", actor.ID,
			"account_id", candidate,
			"permissions", attrs.Permissions.String())
		s.publish(ctx, events.EventTypeAccountCreated, candidate, actor.ID)
		return candidate, nil
	}

	return 0, internal.NewInternalError("failed to allocate an account id", fmt.Errorf("%d attempts collided", maxIDAttempts))
}

// View resolves each target independently. Results follow the input order and
// one target's failure never affects another's result.
func (s *Service) View(ctx context.Context, creds internal.Credentials, desc ViewDescriptor) (results []ViewResult, err error) {
	defer func() { observeOperation("view", err) }()

	actor, err := s.authz.AuthenticateFor(ctx, creds, auth.OperationView)
	if err != nil {
		return nil, err
	}

	results = make([]ViewResult, 0, len(desc.Accounts))
	for _, id := range desc.Accounts {
		r := s.viewOne(actor, id)
		if r.Err != nil {
			viewTargetsTotal.WithLabelValues(string(r.Err.Error.Code)).Inc()
		} else {
			viewTargetsTotal.WithLabelValues("ok").Inc()
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) viewOne(actor *auth.Actor, id int64) ViewResult {
	h, ok := s.registry.GetByID(id)
	if !ok {
		return viewErr(id, internal.ErrAccountNotFound.WithMessage(fmt.Sprintf("account %d not found", id)))
	}

	var result ViewResult
	_ = h.View(func(a account.Account) error {
		switch acc := a.(type) {
		case *account.Verified:
			if !s.authz.CanReach(actor, acc.Attributes.Permissions) {
				result = viewErr(id, internal.ErrForbidden.WithMessage(fmt.Sprintf("account %d holds permissions beyond yours", id)))
				return nil
			}
			result = viewOk(newAccountView(acc))
		case *account.Unverified, *account.PendingDeletion:
			result = viewErr(id, internal.ErrAccountNotVerified.WithMessage(fmt.Sprintf("account %d is %s", id, acc.State())))
		}
		return nil
	})
	return result
}

// Modify applies every change to the target in one critical section. The call
// fails as a whole, leaving the target untouched, if any change is invalid or
// the target is out of the actor's reach.
func (s *Service) Modify(ctx context.Context, creds internal.Credentials, desc ModifyDescriptor) (err error) {
	defer func() { observeOperation("modify", err) }()

	actor, err := s.authz.AuthenticateFor(ctx, creds, auth.OperationModify)
	if err != nil {
		return err
	}

	if verr := desc.validate(); verr != nil {
		return verr
	}

	apply, err := s.prepare(actor, desc.Variants)
	if err != nil {
		return err
	}

	h, ok := s.registry.GetByID(desc.AccountID)
	if !ok {
		return internal.ErrAccountNotFound.WithMessage(fmt.Sprintf("account %d not found", desc.AccountID))
	}

	err = h.Update(func(a account.Account) error {
		switch acc := a.(type) {
		case *account.Verified:
			if !s.authz.CanReach(actor, acc.Attributes.Permissions) {
				s.logger.WarnContext(ctx, "modify denied: target out of reach",
					"actor_id", actor.ID,
					"account_id", acc.ID)
				return internal.ErrForbidden.WithMessage(fmt.Sprintf("account %d holds permissions beyond yours", acc.ID))
			}
			next := acc.Attributes.Clone()
			for _, fn := range apply {
				fn(&next)
			}
			acc.Attributes = next
			return nil
		case *account.Unverified, *account.PendingDeletion:
			return internal.ErrAccountNotVerified.WithMessage(fmt.Sprintf("account %d is %s", acc.AccountID(), acc.State()))
		}
		return internal.NewInternalError("unexpected account variant", fmt.Errorf("%T", a))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account modified",
		"actor_id", actor.ID,
		"account_id", desc.AccountID,
		"changes", len(apply))
	s.publish(ctx, events.EventTypeAccountModified, desc.AccountID, actor.ID)
	return nil
}

type applyFunc func(attrs *account.Attributes)

// prepare turns validated changes into functions applied under the target's
// lock. Slow work such as password hashing happens here, outside the lock.
func (s *Service) prepare(actor *auth.Actor, changes []Change) ([]applyFunc, error) {
	out := make([]applyFunc, 0, len(changes))
	for _, c := range changes {
		switch v := c.(type) {
		case EmailChange:
			out = append(out, func(a *account.Attributes) { a.Email = v.Email })
		case NameChange:
			out = append(out, func(a *account.Attributes) { a.Name = v.Name })
		case SchoolIDChange:
			out = append(out, func(a *account.Attributes) { a.SchoolID = v.SchoolID })
		case PhoneChange:
			out = append(out, func(a *account.Attributes) { a.Phone = v.Phone })
		case HouseChange:
			house, herr := parseHouse(v.House)
			if herr != nil {
				return nil, herr
			}
			out = append(out, func(a *account.Attributes) { a.House = house })
		case OrganizationChange:
			var org *string
			if v.Organization != nil {
				o := *v.Organization
				org = &o
			}
			out = append(out, func(a *account.Attributes) { a.Organization = org })
		case PermissionsChange:
			requested, perr := parsePermissions(v.Permissions)
			if perr != nil {
				return nil, perr
			}
			granted := s.authz.Contain(actor, requested)
			out = append(out, func(a *account.Attributes) { a.Permissions = granted })
		case PasswordChange:
			hash, err := auth.HashPassword(v.Password, s.bcryptCost)
			if err != nil {
				return nil, internal.NewInternalError("failed to hash password", err)
			}
			out = append(out, func(a *account.Attributes) { a.PasswordHash = hash })
		default:
			return nil, internal.NewValidationError(fmt.Sprintf("unsupported change %q", c.Kind()), internal.ErrCodeValidationFailed)
		}
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, eventType string, accountID, actorID int64) {
	if err := s.publisher.Publish(ctx, events.NewAccountEvent(eventType, accountID, actorID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account event",
			"event_type", eventType,
			"account_id", accountID,
			"error", err)
	}
}
