package account

import (
	"fmt"
	"time"

	"github.com/frahmantamala/account-registry/internal/core/permission"
	"github.com/frahmantamala/account-registry/internal/token"
)

type State string

const (
	StateVerified        State = "verified"
	StateUnverified      State = "unverified"
	StatePendingDeletion State = "pending_deletion"
)

// Account is one of *Verified, *Unverified or *PendingDeletion. The set is
// closed; consumers are expected to switch over all three.
type Account interface {
	AccountID() int64
	State() State
	clone() Account
}

// Clone returns a deep copy of a. Ledgers are copied, not shared.
func Clone(a Account) Account {
	if a == nil {
		return nil
	}
	return a.clone()
}

type House string

const (
	HouseGeWu     House = "GeWu"
	HouseZhiZhi   House = "ZhiZhi"
	HouseChengYi  House = "ChengYi"
	HouseZhengXin House = "ZhengXin"
	HouseMingDe   House = "MingDe"
	HouseXinMin   House = "XinMin"
)

var houses = []House{HouseGeWu, HouseZhiZhi, HouseChengYi, HouseZhengXin, HouseMingDe, HouseXinMin}

func (h House) Valid() bool {
	for _, known := range houses {
		if h == known {
			return true
		}
	}
	return false
}

func ParseHouse(s string) (House, error) {
	h := House(s)
	if !h.Valid() {
		return "", fmt.Errorf("unknown house %q", s)
	}
	return h, nil
}

type VerifyKind string

const (
	VerifyNone    VerifyKind = "none"
	VerifyPending VerifyKind = "pending"
)

// VerifyState is owned by the verification workflow; this package only stores it.
type VerifyState struct {
	Kind   VerifyKind `json:"kind"`
	Marker string     `json:"marker,omitempty"`
}

type Attributes struct {
	Email            string
	Name             string
	SchoolID         int64
	House            *House
	Phone            int64
	Organization     *string
	Permissions      permission.Set
	RegistrationTime time.Time
	RegistrationIP   *string
	PasswordHash     string
	// TokenLifetime bounds tokens issued at login; zero defers to the
	// configured default.
	TokenLifetime time.Duration
}

func (a Attributes) Clone() Attributes {
	cp := a
	if a.House != nil {
		h := *a.House
		cp.House = &h
	}
	if a.Organization != nil {
		o := *a.Organization
		cp.Organization = &o
	}
	if a.RegistrationIP != nil {
		ip := *a.RegistrationIP
		cp.RegistrationIP = &ip
	}
	return cp
}

type Verified struct {
	ID         int64
	Attributes Attributes
	Tokens     *token.Ledger
	Verify     VerifyState
}

func NewVerified(id int64, attrs Attributes) *Verified {
	return &Verified{
		ID:         id,
		Attributes: attrs,
		Tokens:     token.NewLedger(),
		Verify:     VerifyState{Kind: VerifyNone},
	}
}

func (v *Verified) AccountID() int64 { return v.ID }
func (v *Verified) State() State     { return StateVerified }

func (v *Verified) HasPermission(p permission.Permission) bool {
	return v.Attributes.Permissions.Has(p)
}

func (v *Verified) clone() Account {
	cp := *v
	cp.Attributes = v.Attributes.Clone()
	if v.Tokens != nil {
		cp.Tokens = v.Tokens.Clone()
	}
	return &cp
}

type Unverified struct {
	ID        int64
	Email     string
	Verify    VerifyState
	CreatedAt time.Time
}

func (u *Unverified) AccountID() int64 { return u.ID }
func (u *Unverified) State() State     { return StateUnverified }

func (u *Unverified) clone() Account {
	cp := *u
	return &cp
}

type PendingDeletion struct {
	ID          int64
	Attributes  Attributes
	RequestedAt time.Time
}

func (p *PendingDeletion) AccountID() int64 { return p.ID }
func (p *PendingDeletion) State() State     { return StatePendingDeletion }

func (p *PendingDeletion) clone() Account {
	cp := *p
	cp.Attributes = p.Attributes.Clone()
	return &cp
}
