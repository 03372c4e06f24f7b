package login

import "github.com/wolfeidau/billstock/internal/models"

// RegisterAppRoutes installs the billing application's route table: the
// account pages are public, /admin is admin only and everything else needs a
// signed in user of any role.
func RegisterAppRoutes(g *Guard) {
	for _, p := range []string{"/register", "/forgot-password", "/reset-password"} {
		g.Handle(p, Public())
	}
	g.Handle("/admin", AllowRoles(models.RoleAdmin))
}
