// Package licensing does seat accounting for the organization members an
// employer tenant may create. Each Sub-Admin, Supervisor or Agent consumes
// one seat of its kind.
package licensing

import (
	"errors"
	"fmt"

	"complaintdesk/internal/roles"
)

var (
	ErrNoSeats     = errors.New("licensing: no seats left")
	ErrUnknownKind = errors.New("licensing: unknown member kind")
)

// Kind is a licensed member kind. The values double as the URL segment and
// the remote API path segment (/employers/{kind}/...).
type Kind string

const (
	SubAdmins   Kind = "subadmins"
	Supervisors Kind = "supervisors"
	Agents      Kind = "agents"
)

// Kinds lists the licensed kinds in hierarchy order.
var Kinds = []Kind{SubAdmins, Supervisors, Agents}

// ParseKind returns the kind named by s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Role is the account role a member of this kind is created with.
func (k Kind) Role() roles.Role {
	switch k {
	case SubAdmins:
		return roles.SubAdmin
	case Supervisors:
		return roles.Supervisor
	case Agents:
		return roles.Agent
	}
	return roles.Unknown
}

// Label is the singular display name.
func (k Kind) Label() string {
	switch k {
	case SubAdmins:
		return "Sub-Admin"
	case Supervisors:
		return "Supervisor"
	case Agents:
		return "Agent"
	}
	return string(k)
}

// Usage is the seat count of one kind.
type Usage struct {
	Kind      Kind `json:"kind"`
	Total     int  `json:"total"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

func newUsage(k Kind, total, used int) Usage {
	if total < 0 {
		total = 0
	}
	if used < 0 {
		used = 0
	}
	remaining := total - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Kind: k, Total: total, Used: used, Remaining: remaining}
}

// Summary is the license position of one employer tenant.
type Summary struct {
	CompanyID string  `json:"companyId"`
	Usage     []Usage `json:"usage"`
}

// NewSummary builds a Summary from per-kind totals and used counts. Kinds
// missing from totals have no seats.
func NewSummary(companyID string, totals, used map[Kind]int) Summary {
	s := Summary{CompanyID: companyID}
	for _, k := range Kinds {
		s.Usage = append(s.Usage, newUsage(k, totals[k], used[k]))
	}
	return s
}

// Of returns the usage of one kind.
func (s Summary) Of(k Kind) Usage {
	for _, u := range s.Usage {
		if u.Kind == k {
			return u
		}
	}
	return Usage{Kind: k}
}

// CanCreate reports whether one more member of kind k fits the license.
func (s Summary) CanCreate(k Kind) error {
	if _, err := ParseKind(string(k)); err != nil {
		return err
	}
	if u := s.Of(k); u.Remaining <= 0 {
		return fmt.Errorf("%w: %d of %d %s seats in use", ErrNoSeats, u.Used, u.Total, k.Label())
	}
	return nil
}

// Exhausted reports whether every kind is fully used.
func (s Summary) Exhausted() bool {
	for _, u := range s.Usage {
		if u.Remaining > 0 {
			return false
		}
	}
	return true
}
