package roles

import "strings"

// Account statuses. Only meaningful for Employer principals, where
// StatusPending gates the whole dashboard behind the approval page.
const (
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusInactive = "inactive"
	StatusRejected = "rejected"
)

// NormalizeStatus lower-cases the raw status and applies role defaults:
// non-Employer roles with no status are active, an Employer with no status is
// pending until the remote API says otherwise.
func NormalizeStatus(role Role, raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s != "" {
		return s
	}
	if role == Employer {
		return StatusPending
	}
	return StatusActive
}
