package account

import (
	"errors"
	"fmt"
	"sync"

	"github.com/frahmantamala/account-registry/internal"
)

const maxLookupAttempts = 3

var errNilAccount = errors.New("account is nil")

// Handle is a shared, independently locked reference to one stored account.
type Handle struct {
	id      int64
	mu      sync.RWMutex
	account Account
}

func (h *Handle) ID() int64 {
	return h.id
}

// View runs fn under the handle's shared lock. fn must not retain a.
func (h *Handle) View(fn func(a Account) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.account)
}

// Update runs fn under the handle's exclusive lock. fn may mutate a in place
// but must not change its ID; a returned error leaves any mutation fn already
// made in place, so callers validate before mutating.
func (h *Handle) Update(fn func(a Account) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.account)
}

// Replace swaps the stored variant, e.g. when the verification workflow
// promotes an account. The ID must be unchanged.
func (h *Handle) Replace(a Account) error {
	if a == nil {
		return errNilAccount
	}
	if a.AccountID() != h.id {
		return fmt.Errorf("replace account %d with account %d", h.id, a.AccountID())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.account = a
	return nil
}

// Snapshot returns a deep copy taken under the shared lock.
func (h *Handle) Snapshot() Account {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Clone(h.account)
}

// Registry owns every account. Slots hold handles in insertion order and are
// never reused once vacated; index maps external IDs to slots.
//
// Writers take indexMu then slotsMu. Readers take each briefly in turn and never
// hold either while waiting on a handle lock.
type Registry struct {
	indexMu sync.RWMutex
	index   map[int64]int

	slotsMu sync.RWMutex
	slots   []*Handle
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[int64]int),
	}
}

// Push stores a new account. A duplicate ID is rejected with ErrAccountExists.
func (r *Registry) Push(a Account) error {
	if a == nil {
		return errNilAccount
	}
	id := a.AccountID()

	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	if _, exists := r.index[id]; exists {
		return internal.ErrAccountExists.WithMessage(fmt.Sprintf("account %d already exists", id))
	}

	r.slotsMu.Lock()
	r.slots = append(r.slots, &Handle{id: id, account: a})
	slot := len(r.slots) - 1
	r.slotsMu.Unlock()

	r.index[id] = slot
	return nil
}

// GetByID resolves id to its handle. The index and slot locks are taken in
// turn, so a concurrent Load can leave a stale slot number in between; a slot
// holding another ID is never returned and the lookup is retried.
func (r *Registry) GetByID(id int64) (*Handle, bool) {
	for attempt := 0; attempt < maxLookupAttempts; attempt++ {
		r.indexMu.RLock()
		slot, ok := r.index[id]
		r.indexMu.RUnlock()
		if !ok {
			return nil, false
		}

		r.slotsMu.RLock()
		var h *Handle
		if slot < len(r.slots) {
			h = r.slots[slot]
		}
		r.slotsMu.RUnlock()

		if h != nil && h.id == id {
			return h, true
		}
	}
	return nil, false
}

func (r *Registry) Contains(id int64) bool {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// Remove vacates the account's slot and its index entry together.
func (r *Registry) Remove(id int64) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	slot, ok := r.index[id]
	if !ok {
		return internal.ErrAccountNotFound.WithMessage(fmt.Sprintf("account %d not found", id))
	}

	r.slotsMu.Lock()
	r.slots[slot] = nil
	r.slotsMu.Unlock()

	delete(r.index, id)
	return nil
}

// Load replaces the registry content with accounts, rebuilding the index. The
// registry is left untouched when accounts contains a duplicate ID.
func (r *Registry) Load(accounts []Account) error {
	index := make(map[int64]int, len(accounts))
	slots := make([]*Handle, 0, len(accounts))
	for _, a := range accounts {
		if a == nil {
			return errNilAccount
		}
		id := a.AccountID()
		if _, dup := index[id]; dup {
			return internal.ErrAccountExists.WithMessage(fmt.Sprintf("account %d appears twice", id))
		}
		index[id] = len(slots)
		slots = append(slots, &Handle{id: id, account: a})
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()

	r.index = index
	r.slots = slots
	return nil
}

// Handles returns the live handles in slot order.
func (r *Registry) Handles() []*Handle {
	r.slotsMu.RLock()
	defer r.slotsMu.RUnlock()

	out := make([]*Handle, 0, len(r.slots))
	for _, h := range r.slots {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Snapshot deep-copies every account, locking each handle in turn.
func (r *Registry) Snapshot() []Account {
	handles := r.Handles()
	out := make([]Account, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Snapshot())
	}
	return out
}

func (r *Registry) Len() int {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	return len(r.index)
}
