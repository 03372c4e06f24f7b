package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wolfeidau/billstock/internal/models"
)

func TestState_Permissions(t *testing.T) {
	staff := State{User: &models.User{ID: 2, Role: models.RoleStaff}}
	admin := State{User: &models.User{ID: 1, Role: models.RoleAdmin}}
	owner := State{User: &models.User{ID: 3, Role: models.RoleOwner}}
	anon := State{}

	assert.False(t, staff.HasPermission(models.RoleAdmin))
	assert.True(t, staff.HasPermission(models.RoleStaff))
	assert.True(t, admin.HasPermission(models.RoleStaff))
	assert.True(t, admin.HasPermission(models.RoleOwner))
	assert.False(t, owner.HasPermission(models.RoleStaff))
	assert.False(t, anon.HasPermission(models.RoleStaff))

	assert.True(t, staff.IsStaff())
	assert.False(t, staff.IsAdmin())
	assert.True(t, admin.IsAdmin())
	assert.True(t, owner.IsOwner())

	assert.True(t, staff.IsAuthenticated())
	assert.False(t, anon.IsAuthenticated())
	assert.False(t, anon.IsAdmin())
}
