package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/account/postgres"
	"github.com/frahmantamala/account-registry/internal/auth"
	"github.com/frahmantamala/account-registry/internal/core/common/validation"
	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/spf13/cobra"
)

var (
	seedID       int64
	seedEmail    string
	seedName     string
	seedPassword string
)

// seedCmd bootstraps an operator holding every permission. Batch create can
// only hand out permissions its caller holds, so the first operator has to
// come from outside the API.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with an operator account",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if !cfg.Database.Enabled() {
			log.Fatal("seed: database.source is not configured")
		}
		if appErr := validation.Merge(
			validation.ValidateEmail(seedEmail),
			validation.ValidateName(seedName),
			validation.ValidatePassword(seedPassword),
		); appErr != nil {
			log.Fatalf("seed: %s", appErr.GetDetailedMessage())
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		ctx := context.Background()
		store := postgres.NewStore(db)

		existing, err := store.LoadAll(ctx)
		if err != nil {
			log.Fatalf("failed to load accounts: %v", err)
		}
		for _, a := range existing {
			v, ok := a.(*account.Verified)
			if ok && strings.EqualFold(v.Attributes.Email, seedEmail) {
				fmt.Println("operator already exists:", seedEmail, "id", v.ID)
				return
			}
			if a.AccountID() == seedID {
				log.Fatalf("account id %d is already taken", seedID)
			}
		}

		hash, err := auth.HashPassword(seedPassword, cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		operator := account.NewVerified(seedID, account.Attributes{
			Email:            seedEmail,
			Name:             seedName,
			Permissions:      permission.NewSet(permission.All()...),
			RegistrationTime: time.Now(),
			PasswordHash:     hash,
		})
		if err := store.Save(ctx, operator); err != nil {
			log.Fatalf("failed to insert operator: %v", err)
		}

		fmt.Println("Seeded operator:", seedEmail, "id", seedID)
	},
}

func init() {
	seedCmd.Flags().Int64Var(&seedID, "id", 1, "account id of the operator")
	seedCmd.Flags().StringVar(&seedEmail, "email", "admin@i.pkuschool.edu.cn", "operator email")
	seedCmd.Flags().StringVar(&seedName, "name", "Administrator", "operator name")
	seedCmd.Flags().StringVar(&seedPassword, "password", "change-me-now", "operator password")
}
