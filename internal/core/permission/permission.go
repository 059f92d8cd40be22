// Package permission defines the closed set of capability tags an account can
// hold and a compact value type for sets of them.
package permission

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// Permission is a single capability tag.
type Permission uint8

const (
	OP Permission = iota
	Post
	Review
	ViewSimpleAccounts
	ViewAccounts
	ManageAccounts
	Maintain

	numPermissions
)

var names = [numPermissions]string{
	OP:                 "op",
	Post:               "post",
	Review:             "review",
	ViewSimpleAccounts: "view_simple_accounts",
	ViewAccounts:       "view_accounts",
	ManageAccounts:     "manage_accounts",
	Maintain:           "maintain",
}

// All returns every defined permission in declaration order.
func All() []Permission {
	out := make([]Permission, 0, numPermissions)
	for p := Permission(0); p < numPermissions; p++ {
		out = append(out, p)
	}
	return out
}

func (p Permission) Valid() bool {
	return p < numPermissions
}

func (p Permission) String() string {
	if !p.Valid() {
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
	return names[p]
}

// Parse looks a permission up by its wire name.
func Parse(name string) (Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for p, n := range names {
		if n == name {
			return Permission(p), nil
		}
	}
	return 0, fmt.Errorf("unknown permission %q", name)
}

func (p Permission) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", p)
	}
	return json.Marshal(p.String())
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Set is an unordered set of permissions. The zero value is the empty set.
type Set uint32

func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// ParseSet parses wire names into a set, rejecting unknown names.
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		p, err := Parse(n)
		if err != nil {
			return 0, err
		}
		s = s.Add(p)
	}
	return s, nil
}

func (s Set) Add(p Permission) Set {
	if !p.Valid() {
		return s
	}
	return s | 1<<p
}

func (s Set) Remove(p Permission) Set {
	return s &^ (1 << p)
}

func (s Set) Has(p Permission) bool {
	return p.Valid() && s&(1<<p) != 0
}

// IsSubsetOf reports whether every permission in s is also in other.
func (s Set) IsSubsetOf(other Set) bool {
	return s&^other == 0
}

func (s Set) Intersect(other Set) Set {
	return s & other
}

func (s Set) IsEmpty() bool {
	return s == 0
}

func (s Set) Len() int {
	return bits.OnesCount32(uint32(s))
}

// Slice returns the members in declaration order.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, s.Len())
	for p := Permission(0); p < numPermissions; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) Names() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
