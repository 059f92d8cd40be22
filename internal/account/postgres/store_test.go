package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/account-registry/internal/account"
	accountPostgres "github.com/frahmantamala/account-registry/internal/account/postgres"
	accountDatamodel "github.com/frahmantamala/account-registry/internal/core/datamodel/account"
	"github.com/frahmantamala/account-registry/internal/core/events"
	"github.com/frahmantamala/account-registry/internal/core/permission"
	applogger "github.com/frahmantamala/account-registry/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAccountPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Account Postgres Suite")
}

func openDB() *gorm.DB {
	// Use SQLite in-memory database for testing
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())

	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	Expect(db.AutoMigrate(accountDatamodel.Models()...)).To(Succeed())
	return db
}

func verifiedAccount(id int64) *account.Verified {
	house := account.HouseZhiZhi
	ip := "127.0.0.1"
	v := account.NewVerified(id, account.Attributes{
		Email:            "yujiening2025@i.pkuschool.edu.cn",
		Name:             "Jiening Yu",
		SchoolID:         2522320,
		House:            &house,
		Phone:            16601550826,
		Permissions:      permission.NewSet(permission.ManageAccounts, permission.ViewAccounts),
		RegistrationTime: time.Now().UTC().Truncate(time.Second),
		RegistrationIP:   &ip,
		PasswordHash:     "$2a$10$digest",
		TokenLifetime:    time.Hour,
	})
	return v
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		db    *gorm.DB
		store *accountPostgres.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openDB()
		store = accountPostgres.NewStore(db)
	})

	It("should round trip every account variant", func() {
		v := verifiedAccount(123456)
		forever := v.Tokens.NewToken(v.ID, time.Time{})
		bounded := v.Tokens.NewToken(v.ID, time.Now().Add(time.Hour).UTC().Truncate(time.Second))

		org := "PKU"
		pending := &account.PendingDeletion{
			ID: 7,
			Attributes: account.Attributes{
				Email:        "gone@i.pkuschool.edu.cn",
				Organization: &org,
				Permissions:  permission.NewSet(permission.Post),
			},
			RequestedAt: time.Now().UTC().Truncate(time.Second),
		}
		unverified := &account.Unverified{
			ID:     42,
			Email:  "new@i.pkuschool.edu.cn",
			Verify: account.VerifyState{Kind: account.VerifyPending, Marker: "abc"},
		}

		Expect(store.Save(ctx, v)).To(Succeed())
		Expect(store.Save(ctx, pending)).To(Succeed())
		Expect(store.Save(ctx, unverified)).To(Succeed())

		loaded, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(3))

		Expect(loaded[0].AccountID()).To(Equal(int64(7)))
		p := loaded[0].(*account.PendingDeletion)
		Expect(p.Attributes.Organization).To(HaveValue(Equal("PKU")))
		Expect(p.Attributes.Permissions).To(Equal(permission.NewSet(permission.Post)))
		Expect(p.RequestedAt).To(BeTemporally("~", pending.RequestedAt, time.Second))

		u := loaded[1].(*account.Unverified)
		Expect(u.Email).To(Equal("new@i.pkuschool.edu.cn"))
		Expect(u.Verify).To(Equal(unverified.Verify))

		got := loaded[2].(*account.Verified)
		Expect(got.Attributes.Name).To(Equal("Jiening Yu"))
		Expect(got.Attributes.House).To(HaveValue(Equal(account.HouseZhiZhi)))
		Expect(got.Attributes.RegistrationIP).To(HaveValue(Equal("127.0.0.1")))
		Expect(got.Attributes.Permissions).To(Equal(v.Attributes.Permissions))
		Expect(got.Attributes.TokenLifetime).To(Equal(time.Hour))
		Expect(got.Tokens.Len()).To(Equal(2))
		Expect(got.Tokens.Validate(forever.Value)).To(BeTrue())

		restored, ok := got.Tokens.Lookup(bounded.Value)
		Expect(ok).To(BeTrue())
		Expect(restored.ExpiresAt).To(BeTemporally("~", bounded.ExpiresAt, time.Second))
	})

	It("should replace permissions and tokens on save", func() {
		v := verifiedAccount(1)
		tok := v.Tokens.NewToken(1, time.Time{})
		Expect(store.Save(ctx, v)).To(Succeed())

		v.Attributes.Permissions = permission.NewSet(permission.Review)
		v.Tokens.Invalidate(tok.Value)
		Expect(store.Save(ctx, v)).To(Succeed())

		loaded, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		got := loaded[0].(*account.Verified)
		Expect(got.Attributes.Permissions).To(Equal(permission.NewSet(permission.Review)))
		Expect(got.Tokens.Len()).To(BeZero())
	})

	It("should delete an account with its rows", func() {
		Expect(store.Save(ctx, verifiedAccount(1))).To(Succeed())
		Expect(store.Delete(ctx, 1)).To(Succeed())

		loaded, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeEmpty())

		var count int64
		Expect(db.Model(&accountDatamodel.AccountPermission{}).Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
	})
})

var _ = Describe("Syncer", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		store    *accountPostgres.Store
		registry *account.Registry
		syncer   *accountPostgres.Syncer
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = openDB()
		store = accountPostgres.NewStore(db)
		registry = account.NewRegistry()
		syncer = accountPostgres.NewSyncer(registry, store, applogger.Discard())
	})

	It("should persist accounts named by published events", func() {
		bus := events.NewEventBus(applogger.Discard())
		syncer.Register(bus)

		Expect(registry.Push(verifiedAccount(5))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewAccountEvent(events.EventTypeAccountCreated, 5, 1))).To(Succeed())

		loaded, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].AccountID()).To(Equal(int64(5)))
	})

	It("should delete token rows the sweeper pruned", func() {
		bus := events.NewEventBus(applogger.Discard())
		syncer.Register(bus)

		v := verifiedAccount(5)
		v.Tokens.NewToken(5, time.Now().Add(-time.Minute))
		live := v.Tokens.NewToken(5, time.Now().Add(time.Hour))
		Expect(registry.Push(v)).To(Succeed())
		Expect(syncer.Sync(ctx, 5)).To(Succeed())

		var count int64
		Expect(db.Model(&accountDatamodel.AccountToken{}).Count(&count).Error).To(Succeed())
		Expect(count).To(Equal(int64(2)))

		sweeper := account.NewSweeper(registry, time.Minute, bus, applogger.Discard())
		Expect(sweeper.Sweep(ctx)).To(Equal(1))
		Expect(bus.Drain(ctx)).To(Succeed())

		var values []string
		Expect(db.Model(&accountDatamodel.AccountToken{}).Pluck("value", &values).Error).To(Succeed())
		Expect(values).To(ConsistOf(live.Value))
	})

	It("should drop accounts that left the registry", func() {
		Expect(registry.Push(verifiedAccount(5))).To(Succeed())
		Expect(syncer.Sync(ctx, 5)).To(Succeed())

		Expect(registry.Remove(5)).To(Succeed())
		Expect(syncer.Sync(ctx, 5)).To(Succeed())

		loaded, err := store.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeEmpty())
	})

	It("should restore a registry from the store", func() {
		Expect(registry.Push(verifiedAccount(5))).To(Succeed())
		Expect(registry.Push(&account.Unverified{ID: 6, Email: "x@y.z"})).To(Succeed())
		Expect(syncer.SyncAll(ctx)).To(Succeed())

		fresh := account.NewRegistry()
		n, err := accountPostgres.Restore(ctx, fresh, store)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		h, ok := fresh.GetByID(5)
		Expect(ok).To(BeTrue())
		Expect(h.Snapshot().State()).To(Equal(account.StateVerified))
		Expect(fresh.Contains(6)).To(BeTrue())
	})
})
