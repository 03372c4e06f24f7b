package models

import "time"

// Session is the persisted pairing of a session token and the user it was issued to.
// Both halves are written and cleared together.
type Session struct {
	Token   string    `json:"token"`
	User    *User     `json:"user,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Valid returns true when both the token and the user are present.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User != nil
}
