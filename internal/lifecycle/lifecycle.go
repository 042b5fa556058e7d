package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"complaintdesk/internal/roles"
)

var (
	ErrIllegalState   = errors.New("lifecycle: action not allowed from current status")
	ErrTerminalState  = errors.New("lifecycle: complaint is closed to further actions")
	ErrNotOwner       = errors.New("lifecycle: complaint is assigned to someone else")
	ErrRegionMismatch = errors.New("lifecycle: complaint belongs to another region")
	ErrWrongRole      = errors.New("lifecycle: role may not perform this action")
	ErrPoolMismatch   = errors.New("lifecycle: complaint is outside the agent's pool")
)

// ── Actions ──────────────────────────────────────────────────────

// Action is a complaint mutation a dashboard user can request.
type Action string

const (
	ActionClaim           Action = "claim"
	ActionStart           Action = "start"
	ActionResolve         Action = "resolve"
	ActionReject          Action = "reject"
	ActionForwardLevel    Action = "forward_level"
	ActionForwardSubAdmin Action = "forward_subadmin"
)

// Actions lists every action in the order dashboards show them.
var Actions = []Action{
	ActionClaim,
	ActionStart,
	ActionResolve,
	ActionReject,
	ActionForwardLevel,
	ActionForwardSubAdmin,
}

// ParseAction returns the Action named by s.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ── Entities ─────────────────────────────────────────────────────

// Complaint mirrors the fields of a server-owned complaint that the
// transition rules read.
type Complaint struct {
	ID                 string     `json:"id"`
	CitizenID          string     `json:"citizenId"`
	CompanyID          string     `json:"companyId,omitempty"`
	Department         string     `json:"department"`
	Region             string     `json:"region"`
	Category           string     `json:"category"`
	Description        string     `json:"description"`
	Status             Status     `json:"status"`
	CreatedOn          time.Time  `json:"createdOn"`
	Level              int        `json:"level,omitempty"`
	AgentID            string     `json:"agentId,omitempty"`
	SubAdminID         string     `json:"subAdminId,omitempty"`
	ForwardedByAgentID string     `json:"forwardedByAgentId,omitempty"`
	ForwardedOn        *time.Time `json:"forwardedOn,omitempty"`
	ForwardedNotes     string     `json:"forwardedNotes,omitempty"`
	ResolvedOn         *time.Time `json:"resolvedOn,omitempty"`
	ResolutionNotes    string     `json:"resolutionNotes,omitempty"`
	AttachmentURL      string     `json:"attachmentUrl,omitempty"`
}

// PoolLevel is the agent level whose pool currently holds the complaint.
// Complaints without an explicit level sit in the level 1 pool.
func (c Complaint) PoolLevel() int {
	if c.Level < 1 {
		return 1
	}
	return c.Level
}

// Assignment derives the current holder from the status. An assigned
// complaint with no agent was forwarded up a level and waits in that pool.
func (c Complaint) Assignment() Assignment {
	switch c.Status {
	case StatusAssigned:
		if c.AgentID == "" {
			return Unassigned
		}
		return AssignedAgent
	case StatusInProgress:
		return AssignedAgent
	case StatusToSubAdmin:
		return AssignedSubAdmin
	}
	return Unassigned
}

// Actor is the user requesting a transition.
type Actor struct {
	ID         string
	Role       roles.Role
	Region     string
	Department string
	Level      int
}

func (a Actor) level() int {
	if a.Level < 1 {
		return 1
	}
	return a.Level
}

// Request is an action plus its arguments.
type Request struct {
	Action      Action
	TargetLevel int // forward_level only
}

// ── Transition Table ─────────────────────────────────────────────

type edge struct {
	from   Status
	action Action
}

type rule struct {
	to    Status
	actor roles.Role
}

var transitions = map[edge]rule{
	{StatusPending, ActionClaim}:              {StatusAssigned, roles.Agent},
	{StatusAssigned, ActionClaim}:             {StatusAssigned, roles.Agent}, // forwarded pool only
	{StatusAssigned, ActionStart}:             {StatusInProgress, roles.Agent},
	{StatusAssigned, ActionResolve}:           {StatusResolved, roles.Agent},
	{StatusInProgress, ActionResolve}:         {StatusResolved, roles.Agent},
	{StatusAssigned, ActionReject}:            {StatusRejected, roles.Agent},
	{StatusInProgress, ActionReject}:          {StatusRejected, roles.Agent},
	{StatusAssigned, ActionForwardLevel}:      {StatusAssigned, roles.Agent},
	{StatusInProgress, ActionForwardLevel}:    {StatusAssigned, roles.Agent},
	{StatusAssigned, ActionForwardSubAdmin}:   {StatusToSubAdmin, roles.Agent},
	{StatusInProgress, ActionForwardSubAdmin}: {StatusToSubAdmin, roles.Agent},
	{StatusToSubAdmin, ActionResolve}:         {StatusResolved, roles.SubAdmin},
}

// ── Validation ───────────────────────────────────────────────────

// ValidateTransition checks whether actor may apply action to c and returns
// the status the complaint would move to. A forward_level request through
// this function targets the next level up; use Validate to name a level.
func ValidateTransition(c Complaint, action Action, actor Actor) (Status, error) {
	req := Request{Action: action}
	if action == ActionForwardLevel {
		req.TargetLevel = c.PoolLevel() + 1
	}
	return Validate(c, req, actor)
}

// Validate checks a request against the transition table. Checks run in a
// fixed order so the first failing rule is the one reported: terminal
// status, missing edge (claiming a held complaint counts as one), actor
// role, ownership, region, agent pool, then the forward target.
func Validate(c Complaint, req Request, actor Actor) (Status, error) {
	if c.Status.Terminal() {
		return "", fmt.Errorf("%w: status %s", ErrTerminalState, c.Status)
	}

	r, ok := transitions[edge{c.Status, req.Action}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s complaint", ErrIllegalState, req.Action, c.Status)
	}

	holder := c.Assignment()
	if req.Action == ActionClaim && holder != Unassigned {
		return "", fmt.Errorf("%w: cannot claim a held %s complaint", ErrIllegalState, c.Status)
	}

	if actor.ID == "" || actor.Role != r.actor {
		return "", fmt.Errorf("%w: %s requires %s", ErrWrongRole, req.Action, r.actor)
	}

	switch holder {
	case Unassigned:
		if c.AgentID != "" && c.AgentID != actor.ID {
			return "", ErrNotOwner
		}
		if c.Status == StatusAssigned && req.Action != ActionClaim {
			return "", fmt.Errorf("%w: complaint waits in the level %d pool", ErrNotOwner, c.PoolLevel())
		}
	case AssignedAgent:
		if c.AgentID != actor.ID {
			return "", ErrNotOwner
		}
	case AssignedSubAdmin:
		if c.SubAdminID != "" && c.SubAdminID != actor.ID {
			return "", ErrNotOwner
		}
	}

	if needsRegion(c.Status, req.Action) && !sameName(c.Region, actor.Region) {
		return "", fmt.Errorf("%w: complaint %s, actor %s", ErrRegionMismatch, c.Region, actor.Region)
	}

	if req.Action == ActionClaim {
		if c.Department != "" && !sameName(c.Department, actor.Department) {
			return "", fmt.Errorf("%w: department %s", ErrPoolMismatch, c.Department)
		}
		if c.PoolLevel() != actor.level() {
			return "", fmt.Errorf("%w: level %d pool", ErrPoolMismatch, c.PoolLevel())
		}
	}

	if req.Action == ActionForwardLevel && req.TargetLevel <= c.PoolLevel() {
		return "", fmt.Errorf("%w: target level %d is not above %d", ErrIllegalState, req.TargetLevel, c.PoolLevel())
	}

	return r.to, nil
}

// AvailableActions lists the actions actor may currently take on c. The
// result is empty for terminal complaints.
func AvailableActions(c Complaint, actor Actor) []Action {
	var out []Action
	for _, a := range Actions {
		if _, err := ValidateTransition(c, a, actor); err == nil {
			out = append(out, a)
		}
	}
	return out
}

func needsRegion(from Status, action Action) bool {
	return action == ActionClaim || (from == StatusToSubAdmin && action == ActionResolve)
}

// sameName compares region and department names case-insensitively, the way
// the remote API matches them.
func sameName(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
