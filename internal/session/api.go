package session

import "github.com/wolfeidau/billstock/internal/models"

// Backend endpoints, relative to the server URL.
const (
	pathLogin          = "/auth/login"
	pathRegister       = "/auth/register"
	pathProfile        = "/auth/profile"
	pathChangePassword = "/auth/change-password"
	pathUsers          = "/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

// RegisterRequest creates a new account. Role defaults to staff server side.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ProfileUpdate holds the user fields to change; empty fields are left as is.
type ProfileUpdate struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse is the {message, user} envelope from register and update.
type UserResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// MessageResponse is the {message} envelope from password changes.
type MessageResponse struct {
	Message string `json:"message"`
}
