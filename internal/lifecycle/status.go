// Package lifecycle holds the complaint status vocabulary and the legal
// transitions between statuses. It has no dependency on HTTP, storage or the
// remote API: every function is a pure check over the values passed in.
//
// The checks are a pre-filter. The remote API owns complaint state and may
// still refuse a transition this package allows.
package lifecycle

import (
	"fmt"
	"strings"
)

// ── Complaint Status ─────────────────────────────────────────────

// Status is the closed set of complaint statuses. The string values are the
// ones the remote API and the dashboard badges use.
type Status string

const (
	StatusPending    Status = "pending"     // filed, in the unassigned pool
	StatusAssigned   Status = "assigned"    // owned by an agent, or forwarded to a higher pool
	StatusInProgress Status = "in_progress" // agent is working it
	StatusToSubAdmin Status = "to_subadmin" // forwarded to the region's sub-admin
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusInProgress,
	StatusToSubAdmin,
	StatusResolved,
	StatusClosed,
	StatusRejected,
}

// ParseStatus normalizes a status string from the remote API. Casing,
// surrounding space and "in progress" / "in-progress" spellings are accepted.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, known := range Statuses {
		if Status(s) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrIllegalState, raw)
}

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// Label is the human-readable badge text.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusToSubAdmin:
		return "With Sub-Admin"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ── Assignment ───────────────────────────────────────────────────

// Assignment says who currently holds a complaint. Exactly one holds at any
// time.
type Assignment int

const (
	Unassigned Assignment = iota
	AssignedAgent
	AssignedSubAdmin
)

func (a Assignment) String() string {
	switch a {
	case AssignedAgent:
		return "agent"
	case AssignedSubAdmin:
		return "subadmin"
	}
	return "unassigned"
}
