package token_test

import (
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/account-registry/internal/token"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestToken(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Token Ledger Suite")
}

var _ = Describe("Ledger", func() {
	var (
		now    time.Time
		ledger *token.Ledger
	)

	BeforeEach(func() {
		now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		ledger = token.NewLedgerWithClock(func() time.Time { return now })
	})

	It("should issue distinct tokens bound to the account", func() {
		a := ledger.NewToken(123456, time.Time{})
		b := ledger.NewToken(123456, time.Time{})

		Expect(a.Value).NotTo(Equal(b.Value))
		Expect(a.AccountID).To(Equal(int64(123456)))
		Expect(ledger.Len()).To(Equal(2))
		Expect(ledger.Validate(a.Value)).To(BeTrue())
		Expect(ledger.Validate(b.Value)).To(BeTrue())
	})

	It("should treat a zero expiration as never expiring", func() {
		t := ledger.NewToken(1, time.Time{})
		now = now.Add(100 * 365 * 24 * time.Hour)

		Expect(ledger.Validate(t.Value)).To(BeTrue())
	})

	It("should accept a token only while now precedes its expiration", func() {
		t := ledger.NewToken(1, now.Add(time.Hour))
		Expect(ledger.Validate(t.Value)).To(BeTrue())

		now = now.Add(time.Hour)
		Expect(ledger.Validate(t.Value)).To(BeFalse())
	})

	It("should reject an expired token while an unexpired sibling stays valid", func() {
		expired := ledger.NewToken(1, now.Add(-time.Second))
		live := ledger.NewToken(1, now.Add(time.Hour))

		Expect(ledger.Validate(expired.Value)).To(BeFalse())
		Expect(ledger.Validate(live.Value)).To(BeTrue())
	})

	It("should prune an expired token lazily on validation", func() {
		t := ledger.NewToken(1, now.Add(-time.Second))

		Expect(ledger.Validate(t.Value)).To(BeFalse())
		_, held := ledger.Lookup(t.Value)
		Expect(held).To(BeFalse())
	})

	It("should reject unknown values", func() {
		ledger.NewToken(1, time.Time{})
		Expect(ledger.Validate("not-a-token")).To(BeFalse())
	})

	It("should invalidate a token", func() {
		t := ledger.NewToken(1, time.Time{})

		Expect(ledger.Invalidate(t.Value)).To(BeTrue())
		Expect(ledger.Validate(t.Value)).To(BeFalse())
		Expect(ledger.Invalidate(t.Value)).To(BeFalse())
	})

	It("should prune only expired tokens", func() {
		ledger.NewToken(1, now.Add(-time.Minute))
		ledger.NewToken(1, now.Add(-time.Second))
		keep := ledger.NewToken(1, now.Add(time.Minute))
		forever := ledger.NewToken(1, time.Time{})

		Expect(ledger.Prune()).To(Equal(2))
		Expect(ledger.Len()).To(Equal(2))
		Expect(ledger.Validate(keep.Value)).To(BeTrue())
		Expect(ledger.Validate(forever.Value)).To(BeTrue())
	})

	It("should restore tokens into an independent clone", func() {
		t := ledger.NewToken(1, time.Time{})
		clone := ledger.Clone()

		Expect(clone.Validate(t.Value)).To(BeTrue())
		clone.Invalidate(t.Value)
		Expect(ledger.Validate(t.Value)).To(BeTrue())
	})

	It("should be safe for concurrent issue and validation", func() {
		var wg sync.WaitGroup
		values := make(chan string, 64)
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				t := ledger.NewToken(1, time.Time{})
				Expect(ledger.Validate(t.Value)).To(BeTrue())
				values <- t.Value
			}()
		}
		wg.Wait()
		close(values)

		Expect(values).To(HaveLen(64))
		Expect(ledger.Len()).To(Equal(64))
	})
})
