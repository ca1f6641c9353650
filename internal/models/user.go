package models

import (
	"strings"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
)

// User is an account. BLGU users are bound to one barangay.
type User struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"` // never exposed
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	BarangayID   *string `json:"barangayId"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// RegisterRequest contains the fields needed to create a new account.
// Every self-registered account starts as blgu_user; other roles are granted
// through user management.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// UpdateRoleRequest is used by the MLGOO to change a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// Validate checks that the role is one of the allowed values.
func (r *UpdateRoleRequest) Validate() map[string]string {
	errors := map[string]string{}
	if !ctxkeys.ValidRoles[r.Role] {
		errors["role"] = "Role must be one of blgu_user, assessor, validator, mlgoo_dilg, super_admin"
	}
	return errors
}

// AssignBarangayRequest binds a user to a barangay; null unbinds.
type AssignBarangayRequest struct {
	BarangayID *string `json:"barangayId"`
}

// Validate checks that all required registration fields are present.
func (r *RegisterRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		errors["email"] = "A valid email is required"
	}
	if len(r.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}

	return errors
}

// LoginRequest contains the credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that login credentials are present.
func (r *LoginRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

// AuthResponse is sent back after successful login/registration.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
