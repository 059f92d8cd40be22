package manage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/core/common/validation"
	"github.com/frahmantamala/account-registry/internal/core/permission"
)

// CreateDescriptor is the body of a create request.
type CreateDescriptor struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	SchoolID     int64    `json:"school_id"`
	Phone        int64    `json:"phone"`
	House        *string  `json:"house"`
	Organization *string  `json:"organization"`
	Password     string   `json:"password"`
	Permissions  []string `json:"permissions"`
}

// createRequest is a CreateDescriptor after validation.
type createRequest struct {
	attrs       account.Attributes
	password    string
	permissions permission.Set
}

func (d CreateDescriptor) validate() (*createRequest, *internal.AppError) {
	house, houseErr := parseHouse(d.House)
	perms, permErr := parsePermissions(d.Permissions)

	if err := validation.Merge(
		validation.ValidateEmail(d.Email),
		validation.ValidateName(d.Name),
		validation.ValidateSchoolID(d.SchoolID),
		validation.ValidatePhone(d.Phone),
		validation.ValidateOrganization(d.Organization),
		validation.ValidatePassword(d.Password),
		houseErr,
		permErr,
	); err != nil {
		return nil, err
	}

	return &createRequest{
		attrs: account.Attributes{
			Email:        d.Email,
			Name:         d.Name,
			SchoolID:     d.SchoolID,
			House:        house,
			Phone:        d.Phone,
			Organization: d.Organization,
		},
		password:    d.Password,
		permissions: perms,
	}, nil
}

type CreateResponse struct {
	Status    string `json:"status"`
	AccountID int64  `json:"account_id"`
}

// ViewDescriptor lists the accounts to view, in the order results are wanted.
type ViewDescriptor struct {
	Accounts []int64 `json:"accounts"`
}

// AccountView is what a view returns for one account. The password digest is
// never part of it.
type AccountView struct {
	ID                int64          `json:"id"`
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	SchoolID          int64          `json:"school_id"`
	House             *account.House `json:"house"`
	Phone             int64          `json:"phone"`
	Organization      *string        `json:"organization"`
	Permissions       permission.Set `json:"permissions"`
	RegistrationTime  time.Time      `json:"registration_time"`
	RegistrationIP    *string        `json:"registration_ip"`
	TokenLifetimeSecs int64          `json:"token_lifetime_secs"`
}

func newAccountView(v *account.Verified) AccountView {
	attrs := v.Attributes.Clone()
	return AccountView{
		ID:                v.ID,
		Email:             attrs.Email,
		Name:              attrs.Name,
		SchoolID:          attrs.SchoolID,
		House:             attrs.House,
		Phone:             attrs.Phone,
		Organization:      attrs.Organization,
		Permissions:       attrs.Permissions,
		RegistrationTime:  attrs.RegistrationTime,
		RegistrationIP:    attrs.RegistrationIP,
		TokenLifetimeSecs: int64(attrs.TokenLifetime / time.Second),
	}
}

// ViewError is the failure of one view target.
type ViewError struct {
	ID    int64              `json:"id"`
	Error *internal.AppError `json:"error"`
}

// ViewResult is exactly one of Ok or Err.
type ViewResult struct {
	Ok  *AccountView `json:"ok,omitempty"`
	Err *ViewError   `json:"err,omitempty"`
}

func viewOk(v AccountView) ViewResult {
	return ViewResult{Ok: &v}
}

func viewErr(id int64, err *internal.AppError) ViewResult {
	return ViewResult{Err: &ViewError{ID: id, Error: err}}
}

type ViewResponse struct {
	Status  string       `json:"status"`
	Results []ViewResult `json:"results"`
}

// Change is one modification of an account's attributes.
type Change interface {
	// Kind is the JSON key identifying the change.
	Kind() string
	validate() *internal.AppError
}

type EmailChange struct{ Email string }
type NameChange struct{ Name string }
type SchoolIDChange struct{ SchoolID int64 }
type PhoneChange struct{ Phone int64 }
type HouseChange struct{ House *string }
type OrganizationChange struct{ Organization *string }
type PermissionsChange struct{ Permissions []string }
type PasswordChange struct{ Password string }

func (EmailChange) Kind() string        { return "email" }
func (NameChange) Kind() string         { return "name" }
func (SchoolIDChange) Kind() string     { return "school_id" }
func (PhoneChange) Kind() string        { return "phone" }
func (HouseChange) Kind() string        { return "house" }
func (OrganizationChange) Kind() string { return "organization" }
func (PermissionsChange) Kind() string  { return "permissions" }
func (PasswordChange) Kind() string     { return "password" }

func (c EmailChange) validate() *internal.AppError    { return validation.ValidateEmail(c.Email) }
func (c NameChange) validate() *internal.AppError     { return validation.ValidateName(c.Name) }
func (c SchoolIDChange) validate() *internal.AppError { return validation.ValidateSchoolID(c.SchoolID) }
func (c PhoneChange) validate() *internal.AppError    { return validation.ValidatePhone(c.Phone) }
func (c OrganizationChange) validate() *internal.AppError {
	return validation.ValidateOrganization(c.Organization)
}
func (c PasswordChange) validate() *internal.AppError { return validation.ValidatePassword(c.Password) }

func (c HouseChange) validate() *internal.AppError {
	_, err := parseHouse(c.House)
	return err
}

func (c PermissionsChange) validate() *internal.AppError {
	_, err := parsePermissions(c.Permissions)
	return err
}

// ModifyDescriptor targets one account with an ordered list of changes. On the
// wire each change is an object with a single key naming its kind, e.g.
// {"name": "Tianyang He"} or {"house": null}.
type ModifyDescriptor struct {
	AccountID int64
	Variants  []Change
}

type modifyWire struct {
	AccountID int64                        `json:"account_id"`
	Variants  []map[string]json.RawMessage `json:"variants"`
}

func (d ModifyDescriptor) MarshalJSON() ([]byte, error) {
	wire := modifyWire{AccountID: d.AccountID, Variants: make([]map[string]json.RawMessage, 0, len(d.Variants))}
	for _, c := range d.Variants {
		raw, err := json.Marshal(changeValue(c))
		if err != nil {
			return nil, err
		}
		wire.Variants = append(wire.Variants, map[string]json.RawMessage{c.Kind(): raw})
	}
	return json.Marshal(wire)
}

func (d *ModifyDescriptor) UnmarshalJSON(data []byte) error {
	var wire modifyWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	changes := make([]Change, 0, len(wire.Variants))
	for i, entry := range wire.Variants {
		if len(entry) != 1 {
			return fmt.Errorf("variant %d must have exactly one key, got %d", i, len(entry))
		}
		for kind, raw := range entry {
			c, err := decodeChange(kind, raw)
			if err != nil {
				return fmt.Errorf("variant %d: %w", i, err)
			}
			changes = append(changes, c)
		}
	}

	d.AccountID = wire.AccountID
	d.Variants = changes
	return nil
}

func changeValue(c Change) interface{} {
	switch v := c.(type) {
	case EmailChange:
		return v.Email
	case NameChange:
		return v.Name
	case SchoolIDChange:
		return v.SchoolID
	case PhoneChange:
		return v.Phone
	case HouseChange:
		return v.House
	case OrganizationChange:
		return v.Organization
	case PermissionsChange:
		return v.Permissions
	case PasswordChange:
		return v.Password
	}
	return nil
}

func decodeChange(kind string, raw json.RawMessage) (Change, error) {
	var (
		c   Change
		err error
	)
	switch kind {
	case "email":
		var v EmailChange
		err = json.Unmarshal(raw, &v.Email)
		c = v
	case "name":
		var v NameChange
		err = json.Unmarshal(raw, &v.Name)
		c = v
	case "school_id":
		var v SchoolIDChange
		err = json.Unmarshal(raw, &v.SchoolID)
		c = v
	case "phone":
		var v PhoneChange
		err = json.Unmarshal(raw, &v.Phone)
		c = v
	case "house":
		var v HouseChange
		err = json.Unmarshal(raw, &v.House)
		c = v
	case "organization":
		var v OrganizationChange
		err = json.Unmarshal(raw, &v.Organization)
		c = v
	case "permissions":
		var v PermissionsChange
		err = json.Unmarshal(raw, &v.Permissions)
		c = v
	case "password":
		var v PasswordChange
		err = json.Unmarshal(raw, &v.Password)
		c = v
	default:
		return nil, fmt.Errorf("unknown change %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return c, nil
}

func (d ModifyDescriptor) validate() *internal.AppError {
	if len(d.Variants) == 0 {
		return internal.NewValidationFieldError("variants", "at least one change is required", internal.ErrCodeValidationFailed)
	}
	results := make([]*internal.AppError, 0, len(d.Variants))
	for _, c := range d.Variants {
		results = append(results, c.validate())
	}
	return validation.Merge(results...)
}

func parseHouse(name *string) (*account.House, *internal.AppError) {
	if name == nil {
		return nil, nil
	}
	h, err := account.ParseHouse(*name)
	if err != nil {
		return nil, internal.NewValidationFieldError("house", err.Error(), internal.ErrCodeInvalidHouse)
	}
	return &h, nil
}

func parsePermissions(names []string) (permission.Set, *internal.AppError) {
	set, err := permission.ParseSet(names)
	if err != nil {
		return 0, internal.NewValidationFieldError("permissions", err.Error(), internal.ErrCodeInvalidPermission)
	}
	return set, nil
}
