package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/account-registry/internal/account"
	accountDatamodel "github.com/frahmantamala/account-registry/internal/core/datamodel/account"
	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/frahmantamala/account-registry/internal/token"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists registry accounts. The registry stays authoritative at runtime;
// the store only serves startup loading and write-behind.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save writes the full state of a, replacing its permissions and tokens.
func (s *Store) Save(ctx context.Context, a account.Account) error {
	row, perms, tokens := toRows(a)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("save account %d: %w", row.ID, err)
		}
		if err := tx.Where("account_id = ?", row.ID).Delete(&accountDatamodel.AccountPermission{}).Error; err != nil {
			return fmt.Errorf("clear permissions of %d: %w", row.ID, err)
		}
		if err := tx.Where("account_id = ?", row.ID).Delete(&accountDatamodel.AccountToken{}).Error; err != nil {
			return fmt.Errorf("clear tokens of %d: %w", row.ID, err)
		}
		if len(perms) > 0 {
			if err := tx.Create(&perms).Error; err != nil {
				return fmt.Errorf("save permissions of %d: %w", row.ID, err)
			}
		}
		if len(tokens) > 0 {
			if err := tx.Create(&tokens).Error; err != nil {
				return fmt.Errorf("save tokens of %d: %w", row.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&accountDatamodel.AccountToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&accountDatamodel.AccountPermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&accountDatamodel.Account{}).Error
	})
}

// LoadAll reads every stored account, ordered by ID.
func (s *Store) LoadAll(ctx context.Context) ([]account.Account, error) {
	db := s.db.WithContext(ctx)

	var rows []accountDatamodel.Account
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	var permRows []accountDatamodel.AccountPermission
	if err := db.Find(&permRows).Error; err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	perms := make(map[int64]permission.Set, len(rows))
	for _, p := range permRows {
		parsed, err := permission.Parse(p.Permission)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", p.AccountID, err)
		}
		perms[p.AccountID] = perms[p.AccountID].Add(parsed)
	}

	var tokenRows []accountDatamodel.AccountToken
	if err := db.Find(&tokenRows).Error; err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	tokens := make(map[int64][]token.Token, len(rows))
	for _, t := range tokenRows {
		tok := token.Token{Value: t.Value, AccountID: t.AccountID, IssuedAt: t.IssuedAt}
		if t.ExpiresAt != nil {
			tok.ExpiresAt = *t.ExpiresAt
		}
		tokens[t.AccountID] = append(tokens[t.AccountID], tok)
	}

	out := make([]account.Account, 0, len(rows))
	for _, r := range rows {
		a, err := fromRow(r, perms[r.ID], tokens[r.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func toRows(a account.Account) (accountDatamodel.Account, []accountDatamodel.AccountPermission, []accountDatamodel.AccountToken) {
	row := accountDatamodel.Account{ID: a.AccountID(), State: string(a.State())}

	var (
		perms  permission.Set
		tokens []token.Token
	)
	switch acc := a.(type) {
	case *account.Verified:
		fillAttributes(&row, acc.Attributes)
		row.VerifyKind = string(acc.Verify.Kind)
		row.VerifyMarker = acc.Verify.Marker
		perms = acc.Attributes.Permissions
		if acc.Tokens != nil {
			tokens = acc.Tokens.Tokens()
		}
	case *account.Unverified:
		row.Email = acc.Email
		row.RegistrationTime = acc.CreatedAt
		row.VerifyKind = string(acc.Verify.Kind)
		row.VerifyMarker = acc.Verify.Marker
	case *account.PendingDeletion:
		fillAttributes(&row, acc.Attributes)
		requested := acc.RequestedAt
		row.DeletionRequested = &requested
		perms = acc.Attributes.Permissions
	}

	permRows := make([]accountDatamodel.AccountPermission, 0, perms.Len())
	for _, name := range perms.Names() {
		permRows = append(permRows, accountDatamodel.AccountPermission{AccountID: row.ID, Permission: name})
	}

	tokenRows := make([]accountDatamodel.AccountToken, 0, len(tokens))
	for _, t := range tokens {
		tr := accountDatamodel.AccountToken{Value: t.Value, AccountID: row.ID, IssuedAt: t.IssuedAt}
		if !t.NeverExpires() {
			expires := t.ExpiresAt
			tr.ExpiresAt = &expires
		}
		tokenRows = append(tokenRows, tr)
	}

	return row, permRows, tokenRows
}

func fillAttributes(row *accountDatamodel.Account, attrs account.Attributes) {
	row.Email = attrs.Email
	row.Name = attrs.Name
	row.SchoolID = attrs.SchoolID
	if attrs.House != nil {
		h := string(*attrs.House)
		row.House = &h
	}
	row.Phone = attrs.Phone
	row.Organization = attrs.Organization
	row.RegistrationTime = attrs.RegistrationTime
	row.RegistrationIP = attrs.RegistrationIP
	row.PasswordHash = attrs.PasswordHash
	row.TokenLifetimeSecs = int64(attrs.TokenLifetime / time.Second)
}

func attributesOf(row accountDatamodel.Account, perms permission.Set) (account.Attributes, error) {
	attrs := account.Attributes{
		Email:            row.Email,
		Name:             row.Name,
		SchoolID:         row.SchoolID,
		Phone:            row.Phone,
		Organization:     row.Organization,
		Permissions:      perms,
		RegistrationTime: row.RegistrationTime,
		RegistrationIP:   row.RegistrationIP,
		PasswordHash:     row.PasswordHash,
		TokenLifetime:    time.Duration(row.TokenLifetimeSecs) * time.Second,
	}
	if row.House != nil {
		h, err := account.ParseHouse(*row.House)
		if err != nil {
			return account.Attributes{}, fmt.Errorf("account %d: %w", row.ID, err)
		}
		attrs.House = &h
	}
	return attrs, nil
}

func fromRow(row accountDatamodel.Account, perms permission.Set, tokens []token.Token) (account.Account, error) {
	verify := account.VerifyState{Kind: account.VerifyKind(row.VerifyKind), Marker: row.VerifyMarker}
	if verify.Kind == "" {
		verify.Kind = account.VerifyNone
	}

	switch account.State(row.State) {
	case account.StateVerified:
		attrs, err := attributesOf(row, perms)
		if err != nil {
			return nil, err
		}
		v := account.NewVerified(row.ID, attrs)
		v.Verify = verify
		v.Tokens.Restore(tokens...)
		return v, nil
	case account.StateUnverified:
		return &account.Unverified{ID: row.ID, Email: row.Email, Verify: verify, CreatedAt: row.RegistrationTime}, nil
	case account.StatePendingDeletion:
		attrs, err := attributesOf(row, perms)
		if err != nil {
			return nil, err
		}
		p := &account.PendingDeletion{ID: row.ID, Attributes: attrs}
		if row.DeletionRequested != nil {
			p.RequestedAt = *row.DeletionRequested
		}
		return p, nil
	}
	return nil, fmt.Errorf("account %d has unknown state %q", row.ID, row.State)
}
