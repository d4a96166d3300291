package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account the auth core reads to verify credentials. It is owned by user
// management; the auth core never mutates it.
type User struct {
	ID                string
	Username          string // unique, matched exactly
	Email             string
	DisplayName       string
	PasswordHash      string // bcrypt or PHC argon2id
	Roles             []string
	Active            bool
	BillingCustomerID string // payment reference; never leaves the service
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile is the sanitized view of a User returned to clients.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles"`
}

// Profile strips credential and billing fields.
func (u *User) Profile() Profile {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Roles:       roles,
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return nil
}
