package models

import (
	"strings"
	"time"

	"complaintdesk/internal/lifecycle"
)

const maxDescription = 2000

// FileComplaintRequest is a citizen's new complaint. The attachment, when
// present, arrives as a multipart file next to these fields.
type FileComplaintRequest struct {
	Department  string `json:"department"`
	Region      string `json:"region"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Validate checks that all required complaint fields are present.
func (r *FileComplaintRequest) Validate() map[string]string {
	errors := map[string]string{}

	r.Department = strings.TrimSpace(r.Department)
	r.Region = strings.TrimSpace(r.Region)
	r.Category = strings.TrimSpace(r.Category)
	r.Description = strings.TrimSpace(r.Description)

	if r.Department == "" {
		errors["department"] = "Department is required"
	}
	if r.Region == "" {
		errors["region"] = "Region is required"
	}
	if r.Category == "" {
		errors["category"] = "Category is required"
	}
	switch {
	case r.Description == "":
		errors["description"] = "Description is required"
	case len(r.Description) > maxDescription:
		errors["description"] = "Description must be at most 2000 characters"
	}

	return errors
}

// ActionRequest is the body of a complaint action.
type ActionRequest struct {
	Notes       string `json:"notes"`
	TargetLevel int    `json:"targetLevel"`
}

// Validate checks the fields the given action needs. Resolving, rejecting
// and forwarding to the sub-admin all record a note.
func (r *ActionRequest) Validate(action lifecycle.Action) map[string]string {
	errors := map[string]string{}

	r.Notes = strings.TrimSpace(r.Notes)
	switch action {
	case lifecycle.ActionResolve:
		if r.Notes == "" {
			errors["notes"] = "Resolution notes are required"
		}
	case lifecycle.ActionReject:
		if r.Notes == "" {
			errors["notes"] = "A reason for rejecting is required"
		}
	case lifecycle.ActionForwardSubAdmin:
		if r.Notes == "" {
			errors["notes"] = "Forwarding notes are required"
		}
	case lifecycle.ActionForwardLevel:
		if r.TargetLevel < 0 {
			errors["targetLevel"] = "Target level must be positive"
		}
	}

	return errors
}

// ComplaintView is a complaint plus what the current user may do with it.
type ComplaintView struct {
	ID                 string     `json:"id"`
	CitizenID          string     `json:"citizenId"`
	CompanyID          string     `json:"companyId,omitempty"`
	Department         string     `json:"department"`
	Region             string     `json:"region"`
	Category           string     `json:"category"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	StatusLabel        string     `json:"statusLabel"`
	Assignment         string     `json:"assignment"`
	Level              int        `json:"level"`
	CreatedOn          time.Time  `json:"createdOn"`
	AgentID            string     `json:"agentId,omitempty"`
	SubAdminID         string     `json:"subAdminId,omitempty"`
	ForwardedByAgentID string     `json:"forwardedByAgentId,omitempty"`
	ForwardedOn        *time.Time `json:"forwardedOn,omitempty"`
	ForwardedNotes     string     `json:"forwardedNotes,omitempty"`
	ResolvedOn         *time.Time `json:"resolvedOn,omitempty"`
	ResolutionNotes    string     `json:"resolutionNotes,omitempty"`
	AttachmentURL      string     `json:"attachmentUrl,omitempty"`
	Actions            []string   `json:"actions"`
}

// NewComplaintView builds the view of c with the given available actions.
func NewComplaintView(c lifecycle.Complaint, actions []lifecycle.Action) ComplaintView {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return ComplaintView{
		ID:                 c.ID,
		CitizenID:          c.CitizenID,
		CompanyID:          c.CompanyID,
		Department:         c.Department,
		Region:             c.Region,
		Category:           c.Category,
		Description:        c.Description,
		Status:             string(c.Status),
		StatusLabel:        c.Status.Label(),
		Assignment:         c.Assignment().String(),
		Level:              c.PoolLevel(),
		CreatedOn:          c.CreatedOn,
		AgentID:            c.AgentID,
		SubAdminID:         c.SubAdminID,
		ForwardedByAgentID: c.ForwardedByAgentID,
		ForwardedOn:        c.ForwardedOn,
		ForwardedNotes:     c.ForwardedNotes,
		ResolvedOn:         c.ResolvedOn,
		ResolutionNotes:    c.ResolutionNotes,
		AttachmentURL:      c.AttachmentURL,
		Actions:            names,
	}
}
