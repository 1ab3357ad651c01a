package domain

import "strings"

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether both fields are set.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Complete reports whether every field is set.
func (r Registration) Complete() bool {
	return strings.TrimSpace(r.Username) != "" && strings.TrimSpace(r.Email) != "" && r.Password != ""
}
