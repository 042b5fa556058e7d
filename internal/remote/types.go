package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"complaintdesk/internal/licensing"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/session"
)

// FlexString decodes an identifier the API sends either as a JSON string or
// as a JSON number.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexTime decodes the API's timestamps, which come with or without a zone
// and sometimes as a bare date.
type FlexTime struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *FlexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("flex time: unrecognized timestamp %q", s)
}

func (t FlexTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// ── Accounts ─────────────────────────────────────────────────────

// User is the account block of a login or profile reply.
type User struct {
	ID         FlexString      `json:"userId"`
	Role       json.RawMessage `json:"role"`
	Status     string          `json:"status"`
	CompanyID  FlexString      `json:"companyId"`
	Region     string          `json:"region"`
	Department string          `json:"department"`
	Level      int             `json:"level"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
}

// Principal normalizes the account into a session principal. This is where
// legacy numeric role codes are translated; nothing downstream sees them.
func (u User) Principal() session.Principal {
	role := roles.ParseJSON(u.Role)
	return session.Principal{
		UserID:     u.ID.String(),
		Role:       role,
		Status:     roles.NormalizeStatus(role, u.Status),
		CompanyID:  u.CompanyID.String(),
		Region:     u.Region,
		Department: u.Department,
		Level:      u.Level,
		Name:       u.Name,
		Email:      u.Email,
	}
}

// LoginResult is the Data block of /auth/login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ── Complaints ───────────────────────────────────────────────────

// Complaint is a complaint as the API returns it.
type Complaint struct {
	ID                 FlexString `json:"id"`
	CitizenID          FlexString `json:"citizenId"`
	CompanyID          FlexString `json:"companyId"`
	Department         string     `json:"department"`
	Region             string     `json:"region"`
	Category           string     `json:"category"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	CreatedOn          FlexTime   `json:"createdOn"`
	Level              int        `json:"level"`
	AgentID            FlexString `json:"agentId"`
	SubAdminID         FlexString `json:"subAdminId"`
	ForwardedByAgentID FlexString `json:"forwardedByAgentId"`
	ForwardedOn        FlexTime   `json:"forwardedOn"`
	ForwardedNotes     string     `json:"forwardedNotes"`
	ResolvedOn         FlexTime   `json:"resolvedOn"`
	ResolutionNotes    string     `json:"resolutionNotes"`
	AttachmentURL      string     `json:"attachmentUrl"`
}

// Lifecycle converts the reply into the lifecycle model. An unknown status
// is an error: the complaint cannot be acted on safely.
func (c Complaint) Lifecycle() (lifecycle.Complaint, error) {
	status, err := lifecycle.ParseStatus(c.Status)
	if err != nil {
		return lifecycle.Complaint{}, fmt.Errorf("complaint %s: %w", c.ID, err)
	}
	agentID := c.AgentID.String()
	if agentID == "0" {
		agentID = ""
	}
	subAdminID := c.SubAdminID.String()
	if subAdminID == "0" {
		subAdminID = ""
	}
	return lifecycle.Complaint{
		ID:                 c.ID.String(),
		CitizenID:          c.CitizenID.String(),
		CompanyID:          c.CompanyID.String(),
		Department:         c.Department,
		Region:             c.Region,
		Category:           c.Category,
		Description:        c.Description,
		Status:             status,
		CreatedOn:          c.CreatedOn.Time,
		Level:              c.Level,
		AgentID:            agentID,
		SubAdminID:         subAdminID,
		ForwardedByAgentID: c.ForwardedByAgentID.String(),
		ForwardedOn:        c.ForwardedOn.ptr(),
		ForwardedNotes:     c.ForwardedNotes,
		ResolvedOn:         c.ResolvedOn.ptr(),
		ResolutionNotes:    c.ResolutionNotes,
		AttachmentURL:      c.AttachmentURL,
	}, nil
}

// ComplaintFilter narrows /complaints/list. Empty fields are not filtered.
type ComplaintFilter struct {
	CompanyID  string `json:"CompanyId,omitempty"`
	CitizenID  string `json:"CitizenId,omitempty"`
	AgentID    string `json:"AgentId,omitempty"`
	SubAdminID string `json:"SubAdminId,omitempty"`
	Region     string `json:"Region,omitempty"`
	Department string `json:"Department,omitempty"`
	Level      int    `json:"Level,omitempty"`
	Status     string `json:"Status,omitempty"`
}

// NewComplaint is the payload of /complaints/file.
type NewComplaint struct {
	CitizenID     string `json:"CitizenId"`
	Department    string `json:"Department"`
	Region        string `json:"Region"`
	Category      string `json:"Category"`
	Description   string `json:"Description"`
	AttachmentURL string `json:"AttachmentUrl,omitempty"`
}

// Mutation is the payload of the complaint mutation operations.
type Mutation struct {
	ComplaintID string `json:"ComplaintId"`
	ActorID     string `json:"ActorId"`
	Notes       string `json:"Notes,omitempty"`
	TargetLevel int    `json:"TargetLevel,omitempty"`
	Target      string `json:"Target,omitempty"`
}

// ── Organization ─────────────────────────────────────────────────

// Member is a Sub-Admin, Supervisor or Agent record.
type Member struct {
	ID           FlexString `json:"id"`
	CompanyID    FlexString `json:"companyId"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Region       string     `json:"region"`
	Department   string     `json:"department"`
	Level        int        `json:"level,omitempty"`
	SupervisorID FlexString `json:"supervisorId,omitempty"`
	Status       string     `json:"status"`
}

// SaveMember is the payload of /employers/{kind}/save. An empty ID creates.
type SaveMember struct {
	ID           string `json:"Id,omitempty"`
	CompanyID    string `json:"CompanyId"`
	Name         string `json:"Name"`
	Email        string `json:"Email"`
	Phone        string `json:"Phone,omitempty"`
	Password     string `json:"Password,omitempty"`
	Region       string `json:"Region,omitempty"`
	Department   string `json:"Department,omitempty"`
	Level        int    `json:"Level,omitempty"`
	SupervisorID string `json:"SupervisorId,omitempty"`
}

// Licenses is the Data block of /employers/licenses.
type Licenses struct {
	CompanyID        FlexString `json:"companyId"`
	TotalSubAdmins   int        `json:"totalSubAdmins"`
	UsedSubAdmins    int        `json:"usedSubAdmins"`
	TotalSupervisors int        `json:"totalSupervisors"`
	UsedSupervisors  int        `json:"usedSupervisors"`
	TotalAgents      int        `json:"totalAgents"`
	UsedAgents       int        `json:"usedAgents"`
}

// Summary converts the reply to a license summary.
func (l Licenses) Summary(companyID string) licensing.Summary {
	if id := l.CompanyID.String(); id != "" {
		companyID = id
	}
	return licensing.NewSummary(companyID,
		map[licensing.Kind]int{
			licensing.SubAdmins:   l.TotalSubAdmins,
			licensing.Supervisors: l.TotalSupervisors,
			licensing.Agents:      l.TotalAgents,
		},
		map[licensing.Kind]int{
			licensing.SubAdmins:   l.UsedSubAdmins,
			licensing.Supervisors: l.UsedSupervisors,
			licensing.Agents:      l.UsedAgents,
		},
	)
}
