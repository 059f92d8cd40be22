package account

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry index", func() {
	It("should never resolve an id to a slot holding another account", func() {
		registry := NewRegistry()
		Expect(registry.Push(&Unverified{ID: 1})).To(Succeed())
		Expect(registry.Push(&Unverified{ID: 2})).To(Succeed())

		// index left pointing at slot numbers from a previous layout
		registry.indexMu.Lock()
		registry.index[1], registry.index[2] = 1, 0
		registry.indexMu.Unlock()

		for _, id := range []int64{1, 2} {
			h, ok := registry.GetByID(id)
			Expect(ok).To(BeFalse())
			Expect(h).To(BeNil())
		}
	})

	It("should skip a vacated slot", func() {
		registry := NewRegistry()
		Expect(registry.Push(&Unverified{ID: 1})).To(Succeed())

		registry.slotsMu.Lock()
		registry.slots[0] = nil
		registry.slotsMu.Unlock()

		_, ok := registry.GetByID(1)
		Expect(ok).To(BeFalse())
	})
})
