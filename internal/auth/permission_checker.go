package auth

import "github.com/frahmantamala/account-registry/internal/core/permission"

// requiredPermissions maps each batch operation to the permission an actor must hold.
var requiredPermissions = map[Operation]permission.Permission{
	OperationCreate: permission.ManageAccounts,
	OperationModify: permission.ManageAccounts,
	OperationView:   permission.ViewAccounts,
}

// RequiredPermission reports which permission op needs.
func RequiredPermission(op Operation) (permission.Permission, bool) {
	p, ok := requiredPermissions[op]
	return p, ok
}

type PermissionChecker interface {
	CanPerform(actor *Actor, op Operation) bool
	CanReach(actor *Actor, target permission.Set) bool
	Contain(actor *Actor, requested permission.Set) permission.Set
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) CanPerform(actor *Actor, op Operation) bool {
	if actor == nil {
		return false
	}
	required, ok := RequiredPermission(op)
	if !ok {
		return false
	}
	return actor.Permissions.Has(required)
}

// CanReach reports whether actor may act on an account holding target: the
// target must not hold anything the actor lacks.
func (c *DefaultPermissionChecker) CanReach(actor *Actor, target permission.Set) bool {
	if actor == nil {
		return false
	}
	return target.IsSubsetOf(actor.Permissions)
}

// Contain drops every requested permission the actor does not itself hold.
func (c *DefaultPermissionChecker) Contain(actor *Actor, requested permission.Set) permission.Set {
	if actor == nil {
		return 0
	}
	return requested.Intersect(actor.Permissions)
}
