package models

import (
	"strings"

	"complaintdesk/internal/session"
)

// LoginRequest contains the credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that login credentials are present.
func (r *LoginRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !strings.Contains(r.Email, "@") {
		errors["email"] = "Email is not valid"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

// RefreshRequest carries a refresh token when the client does not use the
// refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is sent back after a successful login or refresh.
type AuthResponse struct {
	User             *session.Principal `json:"user"`
	Home             string             `json:"home"`
	AccessToken      string             `json:"accessToken"`
	AccessExpiresAt  string             `json:"accessExpiresAt"`
	RefreshToken     string             `json:"refreshToken,omitempty"`
	RefreshExpiresAt string             `json:"refreshExpiresAt"`
	Notice           string             `json:"notice,omitempty"`
}
