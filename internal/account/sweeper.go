package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/account-registry/internal/core/events"
)

// Sweeper periodically drops expired tokens from every verified account.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSweeper publishes a tokens_pruned event for each account it prunes so
// persisted ledgers follow the in-memory ones. publisher may be nil.
func NewSweeper(registry *Registry, interval time.Duration, publisher events.Publisher, logger *slog.Logger) *Sweeper {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Sweeper{
		registry:  registry,
		interval:  interval,
		publisher: publisher,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("token sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("token sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token sweeper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Info("pruned expired tokens", "count", n)
			}
		}
	}
}

// Sweep prunes once and returns the number of tokens removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	total := 0
	for _, h := range s.registry.Handles() {
		pruned := 0
		_ = h.View(func(a Account) error {
			switch acc := a.(type) {
			case *Verified:
				if acc.Tokens != nil {
					pruned = acc.Tokens.Prune()
				}
			case *Unverified, *PendingDeletion:
			}
			return nil
		})
		if pruned == 0 {
			continue
		}

		total += pruned
		if err := s.publisher.Publish(ctx, events.NewAccountEvent(events.EventTypeTokensPruned, h.ID(), h.ID())); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish prune event", "account_id", h.ID(), "error", err)
		}
	}
	return total
}
