// Package token keeps the per-account record of issued authentication tokens.
package token

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token is one issued credential. A zero ExpiresAt never expires.
type Token struct {
	Value     string    `json:"value"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}

func (t Token) NeverExpires() bool {
	return t.ExpiresAt.IsZero()
}

func (t Token) ExpiredAt(now time.Time) bool {
	return !t.NeverExpires() && !now.Before(t.ExpiresAt)
}

// Ledger owns the tokens of a single account. It carries its own lock so it can
// be validated while the owning account is only read-locked.
type Ledger struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

func NewLedgerWithClock(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		tokens: make(map[string]Token),
		now:    now,
	}
}

// NewToken issues and stores a new token for accountID.
func (l *Ledger) NewToken(accountID int64, expiresAt time.Time) Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Token{
		Value:     uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: expiresAt,
		IssuedAt:  l.now(),
	}
	l.tokens[t.Value] = t
	return t
}

// Validate reports whether value is held and unexpired. An expired value is
// dropped as a side effect.
func (l *Ledger) Validate(value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tokens[value]
	if !ok {
		return false
	}
	if t.ExpiredAt(l.now()) {
		delete(l.tokens, value)
		return false
	}
	return true
}

// Lookup returns the stored token without judging its validity.
func (l *Ledger) Lookup(value string) (Token, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tokens[value]
	return t, ok
}

// Invalidate removes value, reporting whether it was held.
func (l *Ledger) Invalidate(value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[value]; !ok {
		return false
	}
	delete(l.tokens, value)
	return true
}

// Prune drops every expired token and returns how many were removed.
func (l *Ledger) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for v, t := range l.tokens {
		if t.ExpiredAt(now) {
			delete(l.tokens, v)
			removed++
		}
	}
	return removed
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}

// Tokens returns a copy of the held tokens ordered by issue time.
func (l *Ledger) Tokens() []Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Token, 0, len(l.tokens))
	for _, t := range l.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].Value < out[j].Value
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

// Restore installs previously issued tokens, e.g. when loading from storage.
func (l *Ledger) Restore(tokens ...Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range tokens {
		l.tokens[t.Value] = t
	}
}

func (l *Ledger) Clone() *Ledger {
	cp := NewLedgerWithClock(l.now)
	cp.Restore(l.Tokens()...)
	return cp
}
