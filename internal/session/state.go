package session

import (
	"github.com/wolfeidau/billstock/internal/auth"
	"github.com/wolfeidau/billstock/internal/models"
)

// State is an immutable snapshot of the session.
type State struct {
	User *models.User
	// Loading is true while Init has not finished or any operation is in flight.
	Loading bool
	Error   string
}

func (s State) IsAuthenticated() bool {
	return s.User != nil
}

func (s State) IsAdmin() bool {
	return s.hasRole(models.RoleAdmin)
}

func (s State) IsStaff() bool {
	return s.hasRole(models.RoleStaff)
}

func (s State) IsOwner() bool {
	return s.hasRole(models.RoleOwner)
}

// HasPermission reports whether the user satisfies role; admins satisfy all.
func (s State) HasPermission(role string) bool {
	return auth.HasPermission(s.User, role)
}

func (s State) hasRole(role string) bool {
	return s.User != nil && s.User.Role == role
}
