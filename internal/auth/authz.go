package auth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wolfeidau/billstock/internal/models"
)

var (
	// ErrNotAuthenticated is returned when a role check runs without a user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInsufficientRole is returned when the user lacks every allowed role.
	ErrInsufficientRole = errors.New("insufficient role")
)

// HasPermission checks whether user satisfies requiredRole. The admin role
// satisfies every check.
func HasPermission(user *models.User, requiredRole string) bool {
	if user == nil {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}
	return user.Role == requiredRole
}

// HasAnyRole checks whether user satisfies one of roles. An empty list allows
// any authenticated user.
func HasAnyRole(user *models.User, roles []string) bool {
	if user == nil {
		return false
	}
	if len(roles) == 0 || user.Role == models.RoleAdmin {
		return true
	}
	return slices.Contains(roles, user.Role)
}

// RequireRole returns an error if user does not satisfy one of roles.
func RequireRole(user *models.User, roles ...string) error {
	if user == nil {
		return ErrNotAuthenticated
	}
	if !HasAnyRole(user, roles) {
		return fmt.Errorf("%w: role %q not in %v", ErrInsufficientRole, user.Role, roles)
	}
	return nil
}
