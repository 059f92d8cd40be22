package account_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/core/events"
	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/frahmantamala/account-registry/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAccount(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Account Registry Suite")
}

func verified(id int64, perms ...permission.Permission) *account.Verified {
	return account.NewVerified(id, account.Attributes{
		Email:            fmt.Sprintf("user%d@i.pkuschool.edu.cn", id),
		Name:             "Jiening Yu",
		SchoolID:         2522320,
		Phone:            16601550826,
		Permissions:      permission.NewSet(perms...),
		RegistrationTime: time.Now(),
		PasswordHash:     "hash",
	})
}

func idOf(h *account.Handle) int64 {
	var id int64
	_ = h.View(func(a account.Account) error {
		id = a.AccountID()
		return nil
	})
	return id
}

var _ = Describe("Registry", func() {
	var registry *account.Registry

	BeforeEach(func() {
		registry = account.NewRegistry()
	})

	Describe("Push and GetByID", func() {
		It("should resolve every pushed id to the account holding that id", func() {
			ids := []int64{123456, 114514, 114513, 1, 99}
			for _, id := range ids {
				Expect(registry.Push(verified(id))).To(Succeed())
			}

			Expect(registry.Len()).To(Equal(len(ids)))
			for _, id := range ids {
				h, ok := registry.GetByID(id)
				Expect(ok).To(BeTrue())
				Expect(h.ID()).To(Equal(id))
				Expect(idOf(h)).To(Equal(id))
			}
		})

		It("should report absent ids", func() {
			_, ok := registry.GetByID(42)
			Expect(ok).To(BeFalse())
			Expect(registry.Contains(42)).To(BeFalse())
		})

		It("should reject a duplicate id without overwriting", func() {
			original := verified(7, permission.ViewAccounts)
			Expect(registry.Push(original)).To(Succeed())

			err := registry.Push(verified(7, permission.OP))
			Expect(errors.Is(err, internal.ErrAccountExists)).To(BeTrue())

			h, _ := registry.GetByID(7)
			_ = h.View(func(a account.Account) error {
				Expect(a.(*account.Verified).HasPermission(permission.OP)).To(BeFalse())
				return nil
			})
			Expect(registry.Len()).To(Equal(1))
		})

		It("should store non-verified variants as they are", func() {
			Expect(registry.Push(&account.Unverified{ID: 5, Email: "x@y.z"})).To(Succeed())
			Expect(registry.Push(&account.PendingDeletion{ID: 6})).To(Succeed())

			h, ok := registry.GetByID(5)
			Expect(ok).To(BeTrue())
			Expect(h.Snapshot().State()).To(Equal(account.StateUnverified))

			h, ok = registry.GetByID(6)
			Expect(ok).To(BeTrue())
			Expect(h.Snapshot().State()).To(Equal(account.StatePendingDeletion))
		})
	})

	Describe("Remove", func() {
		It("should clear both the slot and the index entry", func() {
			Expect(registry.Push(verified(1))).To(Succeed())
			Expect(registry.Push(verified(2))).To(Succeed())

			Expect(registry.Remove(1)).To(Succeed())

			_, ok := registry.GetByID(1)
			Expect(ok).To(BeFalse())
			Expect(registry.Len()).To(Equal(1))
			Expect(registry.Handles()).To(HaveLen(1))

			h, ok := registry.GetByID(2)
			Expect(ok).To(BeTrue())
			Expect(idOf(h)).To(Equal(int64(2)))
		})

		It("should allow the id to be pushed again", func() {
			Expect(registry.Push(verified(1))).To(Succeed())
			Expect(registry.Remove(1)).To(Succeed())
			Expect(registry.Push(verified(1))).To(Succeed())

			h, ok := registry.GetByID(1)
			Expect(ok).To(BeTrue())
			Expect(idOf(h)).To(Equal(int64(1)))
		})

		It("should report an unknown id", func() {
			err := registry.Remove(404)
			Expect(errors.Is(err, internal.ErrAccountNotFound)).To(BeTrue())
		})
	})

	Describe("Load", func() {
		It("should rebuild the index from a stored account set", func() {
			stored := []account.Account{verified(10), &account.Unverified{ID: 11}, verified(12)}
			Expect(registry.Load(stored)).To(Succeed())

			Expect(registry.Len()).To(Equal(3))
			for _, id := range []int64{10, 11, 12} {
				h, ok := registry.GetByID(id)
				Expect(ok).To(BeTrue())
				Expect(idOf(h)).To(Equal(id))
			}
		})

		It("should reject duplicates and keep the previous content", func() {
			Expect(registry.Push(verified(1))).To(Succeed())

			err := registry.Load([]account.Account{verified(2), verified(2)})
			Expect(errors.Is(err, internal.ErrAccountExists)).To(BeTrue())

			Expect(registry.Contains(1)).To(BeTrue())
			Expect(registry.Contains(2)).To(BeFalse())
		})
	})

	Describe("Handle", func() {
		It("should refuse to replace an account with a different id", func() {
			Expect(registry.Push(&account.Unverified{ID: 3})).To(Succeed())
			h, _ := registry.GetByID(3)

			Expect(h.Replace(verified(4))).NotTo(Succeed())
			Expect(h.Replace(verified(3))).To(Succeed())
			Expect(h.Snapshot().State()).To(Equal(account.StateVerified))
		})

		It("should hand out snapshots independent of the stored account", func() {
			Expect(registry.Push(verified(3, permission.ViewAccounts))).To(Succeed())
			h, _ := registry.GetByID(3)

			snap := h.Snapshot().(*account.Verified)
			snap.Attributes.Name = "changed"

			_ = h.View(func(a account.Account) error {
				Expect(a.(*account.Verified).Attributes.Name).To(Equal("Jiening Yu"))
				return nil
			})
		})

		It("should not block readers of one account while another is written", func() {
			Expect(registry.Push(verified(1))).To(Succeed())
			Expect(registry.Push(verified(2))).To(Succeed())
			a, _ := registry.GetByID(1)
			b, _ := registry.GetByID(2)

			release := make(chan struct{})
			writing := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				_ = a.Update(func(account.Account) error {
					close(writing)
					<-release
					return nil
				})
			}()
			<-writing

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				Expect(idOf(b)).To(Equal(int64(2)))
				close(done)
			}()
			Eventually(done).Should(BeClosed())
			close(release)
		})
	})

	It("should keep the index consistent under concurrent pushes and lookups", func() {
		var wg sync.WaitGroup
		for i := int64(0); i < 200; i++ {
			wg.Add(2)
			go func(id int64) {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(registry.Push(verified(id))).To(Succeed())
			}(i)
			go func(id int64) {
				defer wg.Done()
				if h, ok := registry.GetByID(id); ok {
					_ = h.View(func(a account.Account) error {
						if a.AccountID() != id {
							panic("index points at the wrong account")
						}
						return nil
					})
				}
			}(i)
		}
		wg.Wait()

		Expect(registry.Len()).To(Equal(200))
		for i := int64(0); i < 200; i++ {
			h, ok := registry.GetByID(i)
			Expect(ok).To(BeTrue())
			Expect(idOf(h)).To(Equal(i))
		}
	})
})

type prunedRecorder struct {
	mu  sync.Mutex
	ids []int64
}

func (r *prunedRecorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.EventType() == events.EventTypeTokensPruned {
		id, _ := events.AccountIDFrom(e)
		r.ids = append(r.ids, id)
	}
	return nil
}

var _ = Describe("Sweeper", func() {
	It("should prune expired tokens across verified accounts", func() {
		registry := account.NewRegistry()
		a := verified(1)
		b := verified(2)
		a.Tokens.NewToken(1, time.Now().Add(-time.Minute))
		live := a.Tokens.NewToken(1, time.Time{})
		b.Tokens.NewToken(2, time.Now().Add(-time.Second))
		Expect(registry.Push(a)).To(Succeed())
		Expect(registry.Push(b)).To(Succeed())
		Expect(registry.Push(&account.Unverified{ID: 3})).To(Succeed())

		recorder := &prunedRecorder{}
		sweeper := account.NewSweeper(registry, time.Minute, recorder, logger.Discard())
		Expect(sweeper.Sweep(context.Background())).To(Equal(2))
		Expect(a.Tokens.Validate(live.Value)).To(BeTrue())
		Expect(b.Tokens.Len()).To(BeZero())
		Expect(recorder.ids).To(ConsistOf(int64(1), int64(2)))

		Expect(sweeper.Sweep(context.Background())).To(BeZero())
		Expect(recorder.ids).To(HaveLen(2))
	})
})
