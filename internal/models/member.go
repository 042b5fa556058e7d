package models

import (
	"strings"

	"complaintdesk/internal/licensing"
)

// MemberRequest creates or updates a Sub-Admin, Supervisor or Agent.
type MemberRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Region       string `json:"region"`
	Department   string `json:"department"`
	Level        int    `json:"level"`
	SupervisorID string `json:"supervisorId"`
}

// Validate checks the fields required for kind. creating is false for
// updates, where the password may be left empty to keep the current one.
func (r *MemberRequest) Validate(kind licensing.Kind, creating bool) map[string]string {
	errors := map[string]string{}

	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Region = strings.TrimSpace(r.Region)
	r.Department = strings.TrimSpace(r.Department)

	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !strings.Contains(r.Email, "@") {
		errors["email"] = "Email is not valid"
	}
	if creating && len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	}
	if r.Region == "" {
		errors["region"] = "Region is required"
	}

	switch kind {
	case licensing.Supervisors:
		if r.Department == "" {
			errors["department"] = "Department is required"
		}
	case licensing.Agents:
		if r.Department == "" {
			errors["department"] = "Department is required"
		}
		if r.Level < 1 {
			errors["level"] = "Level must be 1 or higher"
		}
	}

	return errors
}
