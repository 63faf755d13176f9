// Package policy holds the authorization decisions. Every decision is a pure
// function of the actor and the target; handlers resolve the actor once at
// the request boundary and pass it in explicitly.
package policy

import (
	"caltrack/internal/model"
)

// Capability is one grant a role carries. Roles are flat capability sets, not
// a hierarchy: Admin holds everything UserManager holds plus Admin.
type Capability string

const (
	// CapManage allows viewing and updating other users' profiles and
	// listing all users.
	CapManage Capability = "manage"
	// CapAdmin allows creating and deleting meals on behalf of any user.
	CapAdmin Capability = "admin"
)

var roleCapabilities = map[string][]Capability{
	model.RoleRegularUser: {},
	model.RoleUserManager: {CapManage},
	model.RoleAdmin:       {CapManage, CapAdmin},
}

// Has reports whether the actor's role grants the capability. Unknown roles
// grant nothing.
func Has(actor model.User, cap Capability) bool {
	for _, c := range roleCapabilities[actor.Role] {
		if c == cap {
			return true
		}
	}
	return false
}

// CanViewUser reports whether actor may view the profile of user targetID.
func CanViewUser(actor model.User, targetID uint) bool {
	return actor.ID == targetID || Has(actor, CapManage)
}

// CanListUsers reports whether actor may list all users.
func CanListUsers(actor model.User) bool {
	return Has(actor, CapManage)
}

// CanUpdateUser reports whether actor may update the profile fields of user
// targetID.
func CanUpdateUser(actor model.User, targetID uint) bool {
	return actor.ID == targetID || Has(actor, CapManage)
}

// CanCreateMealFor reports whether actor may log a meal owned by ownerID.
func CanCreateMealFor(actor model.User, ownerID uint) bool {
	return actor.ID == ownerID || Has(actor, CapAdmin)
}

// CanDeleteMeal reports whether actor may delete the meal.
func CanDeleteMeal(actor model.User, meal model.Meal) bool {
	return actor.ID == meal.UserID || Has(actor, CapAdmin)
}
