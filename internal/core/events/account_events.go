package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAccountCreated  = "account.created"
	EventTypeAccountModified = "account.modified"
	EventTypeTokenIssued     = "account.token_issued"
	EventTypeTokenRevoked    = "account.token_revoked"
	EventTypeTokensPruned    = "account.tokens_pruned"
)

// AccountEventTypes lists every event that changes stored account state.
var AccountEventTypes = []string{
	EventTypeAccountCreated,
	EventTypeAccountModified,
	EventTypeTokenIssued,
	EventTypeTokenRevoked,
	EventTypeTokensPruned,
}

// AccountEvent reports that the account AccountID changed, at the request of ActorID.
type AccountEvent struct {
	BaseEvent
	AccountID int64 `json:"account_id"`
	ActorID   int64 `json:"actor_id"`
}

func NewAccountEvent(eventType string, accountID, actorID int64) *AccountEvent {
	return &AccountEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"account_id": accountID,
				"actor_id":   actorID,
			},
		},
		AccountID: accountID,
		ActorID:   actorID,
	}
}

// AccountIDFrom extracts the affected account from an account event.
func AccountIDFrom(event Event) (int64, bool) {
	switch e := event.(type) {
	case *AccountEvent:
		return e.AccountID, true
	case AccountEvent:
		return e.AccountID, true
	}
	if data, ok := event.Payload().(map[string]interface{}); ok {
		if id, ok := data["account_id"].(int64); ok {
			return id, true
		}
	}
	return 0, false
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(_ context.Context, _ Event) error { return nil }
