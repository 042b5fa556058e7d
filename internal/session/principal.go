// Package session owns the authenticated principal and the credential that
// bounds its lifetime. A principal is only ever returned while its access
// credential is valid; expiry is checked on every read.
package session

import (
	"errors"
	"fmt"

	"complaintdesk/internal/roles"
)

var (
	ErrNotFound       = errors.New("session: not found")
	ErrSessionExpired = errors.New("session: expired")
	ErrInvalidToken   = errors.New("session: invalid token")
	ErrInvalidInput   = errors.New("session: invalid principal")
)

// Principal is the authenticated identity and role context of a session.
type Principal struct {
	UserID     string     `json:"userId"`
	Role       roles.Role `json:"role"`
	Status     string     `json:"status"`
	CompanyID  string     `json:"companyId,omitempty"`
	Region     string     `json:"region,omitempty"`
	Department string     `json:"department,omitempty"`
	Level      int        `json:"level,omitempty"`
	Name       string     `json:"name,omitempty"`
	Email      string     `json:"email,omitempty"`
}

// Validate checks the invariants a principal must satisfy at ingestion.
func (p *Principal) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unrecognized role", ErrInvalidInput)
	}
	if p.Role.RequiresCompany() && p.CompanyID == "" {
		return fmt.Errorf("%w: role %s requires a company", ErrInvalidInput, p.Role)
	}
	return nil
}

// IsPendingEmployer reports whether the principal is an employer still
// waiting for platform approval.
func (p *Principal) IsPendingEmployer() bool {
	return p != nil && p.Role == roles.Employer && p.Status == roles.StatusPending
}
