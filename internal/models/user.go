package models

// Roles recognised by the billing backend.
const (
	RoleAdmin = "admin" // Satisfies every permission check
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// User is the denormalized profile snapshot cached alongside the session token.
// The cached copy may be stale between profile fetches.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Role      string     `json:"role"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

// Clone returns a copy so callers can't mutate shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.CreatedAt != nil {
		created := *u.CreatedAt
		clone.CreatedAt = &created
	}
	if u.UpdatedAt != nil {
		updated := *u.UpdatedAt
		clone.UpdatedAt = &updated
	}
	return &clone
}
