package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/core/events"
)

const syncTimeout = 10 * time.Second

// Syncer writes accounts back to the store when account events arrive.
type Syncer struct {
	registry *account.Registry
	store    *Store
	logger   *slog.Logger

	// mu orders snapshot and save so an older snapshot never overwrites a newer one.
	mu sync.Mutex
}

func NewSyncer(registry *account.Registry, store *Store, logger *slog.Logger) *Syncer {
	return &Syncer{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// Register subscribes the syncer to every account event on bus.
func (s *Syncer) Register(bus *events.EventBus) {
	bus.SubscribeAll(s.Handle, events.AccountEventTypes...)
}

func (s *Syncer) Handle(ctx context.Context, event events.Event) error {
	id, ok := events.AccountIDFrom(event)
	if !ok {
		return fmt.Errorf("event %s carries no account id", event.EventID())
	}
	return s.Sync(ctx, id)
}

// Sync persists the current state of account id, or deletes it from the store
// when it has left the registry.
func (s *Syncer) Sync(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := internal.WithTimeout(ctx, syncTimeout)
	defer cancel()

	h, ok := s.registry.GetByID(id)
	if !ok {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete account %d: %w", id, err)
		}
		s.logger.DebugContext(ctx, "account removed from store", "account_id", id)
		return nil
	}

	if err := s.store.Save(ctx, h.Snapshot()); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "account synced", "account_id", id)
	return nil
}

// SyncAll writes every account in the registry, e.g. after seeding.
func (s *Syncer) SyncAll(ctx context.Context) error {
	for _, h := range s.registry.Handles() {
		if err := s.Sync(ctx, h.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Restore loads every stored account into the registry.
func Restore(ctx context.Context, registry *account.Registry, store *Store) (int, error) {
	accounts, err := store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := registry.Load(accounts); err != nil {
		return 0, fmt.Errorf("rebuild registry: %w", err)
	}
	return len(accounts), nil
}
