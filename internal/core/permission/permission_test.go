package permission_test

import (
	"encoding/json"
	"testing"

	"github.com/frahmantamala/account-registry/internal/core/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Suite")
}

var _ = Describe("Permission Set", func() {
	Describe("Has", func() {
		It("should report membership", func() {
			s := permission.NewSet(permission.ManageAccounts, permission.ViewAccounts)

			Expect(s.Has(permission.ManageAccounts)).To(BeTrue())
			Expect(s.Has(permission.ViewAccounts)).To(BeTrue())
			Expect(s.Has(permission.OP)).To(BeFalse())
		})

		It("should treat the zero value as empty", func() {
			var s permission.Set
			for _, p := range permission.All() {
				Expect(s.Has(p)).To(BeFalse())
			}
			Expect(s.IsEmpty()).To(BeTrue())
		})
	})

	Describe("IsSubsetOf", func() {
		It("should hold for equal sets and the empty set", func() {
			s := permission.NewSet(permission.Post, permission.Review)

			Expect(s.IsSubsetOf(s)).To(BeTrue())
			Expect(permission.Set(0).IsSubsetOf(s)).To(BeTrue())
		})

		It("should fail when a member is missing from the other set", func() {
			actor := permission.NewSet(permission.ManageAccounts)
			requested := permission.NewSet(permission.ManageAccounts, permission.OP)

			Expect(requested.IsSubsetOf(actor)).To(BeFalse())
			Expect(actor.IsSubsetOf(requested)).To(BeTrue())
		})
	})

	Describe("Intersect", func() {
		It("should never exceed either operand", func() {
			actor := permission.NewSet(permission.ManageAccounts, permission.ViewAccounts)
			requested := permission.NewSet(permission.ManageAccounts, permission.OP)

			got := requested.Intersect(actor)
			Expect(got).To(Equal(permission.NewSet(permission.ManageAccounts)))
			Expect(got.IsSubsetOf(actor)).To(BeTrue())
		})
	})

	Describe("parsing", func() {
		It("should parse known names", func() {
			s, err := permission.ParseSet([]string{"manage_accounts", "OP"})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(permission.NewSet(permission.ManageAccounts, permission.OP)))
		})

		It("should reject unknown names", func() {
			_, err := permission.ParseSet([]string{"superuser"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("JSON", func() {
		It("should encode as a sorted list of names", func() {
			s := permission.NewSet(permission.ManageAccounts, permission.OP)
			data, err := json.Marshal(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(`["op","manage_accounts"]`))
		})

		It("should decode and deduplicate", func() {
			var s permission.Set
			Expect(json.Unmarshal([]byte(`["view_accounts","view_accounts"]`), &s)).To(Succeed())
			Expect(s.Len()).To(Equal(1))
			Expect(s.Has(permission.ViewAccounts)).To(BeTrue())
		})
	})
})
