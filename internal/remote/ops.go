package remote

import (
	"context"
	"fmt"

	"complaintdesk/internal/licensing"
	"complaintdesk/internal/lifecycle"
)

// Operation paths.
const (
	OpLogin          = "/auth/login"
	OpProfile        = "/auth/profile"
	OpComplaintList  = "/complaints/list"
	OpComplaintGet   = "/complaints/get"
	OpComplaintFile  = "/complaints/file"
	OpComplaintClaim = "/complaints/assign"
	OpComplaintStart = "/complaints/start"
	OpResolve        = "/complaints/resolve"
	OpReject         = "/complaints/reject"
	OpForward        = "/complaints/forward"
	OpLicenses       = "/employers/licenses"
)

// ForwardToSubAdmin is the Mutation.Target of a forward to the region's
// sub-admin.
const ForwardToSubAdmin = "subadmin"

// MemberOp returns the path of a member operation, e.g.
// MemberOp(licensing.Agents, "save") is "/employers/agents/save".
func MemberOp(kind licensing.Kind, verb string) string {
	return fmt.Sprintf("/employers/%s/%s", kind, verb)
}

// MutationOp maps a lifecycle action to its operation path.
func MutationOp(a lifecycle.Action) (string, bool) {
	switch a {
	case lifecycle.ActionClaim:
		return OpComplaintClaim, true
	case lifecycle.ActionStart:
		return OpComplaintStart, true
	case lifecycle.ActionResolve:
		return OpResolve, true
	case lifecycle.ActionReject:
		return OpReject, true
	case lifecycle.ActionForwardLevel, lifecycle.ActionForwardSubAdmin:
		return OpForward, true
	}
	return "", false
}

// Login exchanges credentials for a remote token and the account record.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	payload := map[string]string{"Email": email, "Password": password}
	if err := c.Do(ctx, OpLogin, "", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile re-reads the caller's account, e.g. to pick up an approval.
func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.Do(ctx, OpProfile, token, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComplaints returns the complaints matching f.
func (c *Client) ListComplaints(ctx context.Context, token string, f ComplaintFilter) ([]Complaint, error) {
	var out []Complaint
	if err := c.Do(ctx, OpComplaintList, token, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetComplaint returns one complaint.
func (c *Client) GetComplaint(ctx context.Context, token, id string) (*Complaint, error) {
	var out Complaint
	if err := c.Do(ctx, OpComplaintGet, token, map[string]string{"ComplaintId": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FileComplaint creates a complaint and returns it as stored.
func (c *Client) FileComplaint(ctx context.Context, token string, in NewComplaint) (*Complaint, error) {
	var out Complaint
	if err := c.Do(ctx, OpComplaintFile, token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MutateComplaint sends a lifecycle action and returns the complaint as the
// server left it.
func (c *Client) MutateComplaint(ctx context.Context, token string, a lifecycle.Action, m Mutation) (*Complaint, error) {
	op, ok := MutationOp(a)
	if !ok {
		return nil, fmt.Errorf("%w: no operation for action %q", lifecycle.ErrIllegalState, a)
	}
	if a == lifecycle.ActionForwardSubAdmin {
		m.Target = ForwardToSubAdmin
	}
	var out Complaint
	if err := c.Do(ctx, op, token, m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers lists the members of one kind in a company.
func (c *Client) ListMembers(ctx context.Context, token string, kind licensing.Kind, companyID string) ([]Member, error) {
	var out []Member
	if err := c.Do(ctx, MemberOp(kind, "list"), token, map[string]string{"CompanyId": companyID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMember creates or updates a member.
func (c *Client) SaveMember(ctx context.Context, token string, kind licensing.Kind, in SaveMember) (*Member, error) {
	var out Member
	if err := c.Do(ctx, MemberOp(kind, "save"), token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMember removes a member.
func (c *Client) DeleteMember(ctx context.Context, token string, kind licensing.Kind, companyID, id string) error {
	payload := map[string]string{"CompanyId": companyID, "Id": id}
	return c.Do(ctx, MemberOp(kind, "delete"), token, payload, nil)
}

// Licenses returns the license position of a company.
func (c *Client) Licenses(ctx context.Context, token, companyID string) (licensing.Summary, error) {
	var out Licenses
	if err := c.Do(ctx, OpLicenses, token, map[string]string{"CompanyId": companyID}, &out); err != nil {
		return licensing.Summary{}, err
	}
	return out.Summary(companyID), nil
}
