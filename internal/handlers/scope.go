package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/remote"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
)

// complaintFilter narrows the remote complaint list to what p may see.
// Platform admins see everything.
func complaintFilter(p *session.Principal) remote.ComplaintFilter {
	switch p.Role {
	case roles.Employer:
		return remote.ComplaintFilter{CompanyID: p.CompanyID}
	case roles.SubAdmin:
		return remote.ComplaintFilter{CompanyID: p.CompanyID, Region: p.Region}
	case roles.Supervisor, roles.Agent:
		return remote.ComplaintFilter{CompanyID: p.CompanyID, Region: p.Region, Department: p.Department}
	case roles.Citizen:
		return remote.ComplaintFilter{CitizenID: p.UserID}
	case roles.OfficerMaster:
		return remote.ComplaintFilter{Region: p.Region}
	}
	return remote.ComplaintFilter{}
}

// canSeeComplaint applies the same scope to a single complaint. Agents see
// their own complaints and the unassigned pool at their level.
func canSeeComplaint(p *session.Principal, c lifecycle.Complaint) bool {
	if p.Role.RequiresCompany() && c.CompanyID != "" && c.CompanyID != p.CompanyID {
		return false
	}

	switch p.Role {
	case roles.Admin, roles.SAdmin, roles.Employer:
		return true
	case roles.Citizen:
		return c.CitizenID == p.UserID
	case roles.Agent:
		if c.AgentID == p.UserID {
			return true
		}
		return c.Assignment() == lifecycle.Unassigned &&
			matchesScope(c.Region, p.Region) &&
			matchesScope(c.Department, p.Department) &&
			c.PoolLevel() == max(p.Level, 1)
	case roles.SubAdmin, roles.OfficerMaster:
		return matchesScope(c.Region, p.Region)
	case roles.Supervisor:
		return matchesScope(c.Region, p.Region) && matchesScope(c.Department, p.Department)
	}
	return false
}

func matchesScope(value, scope string) bool {
	return scope == "" || strings.EqualFold(value, scope)
}

// actorOf builds the lifecycle actor for p.
func actorOf(p *session.Principal) lifecycle.Actor {
	return lifecycle.Actor{
		ID:         p.UserID,
		Role:       p.Role,
		Region:     p.Region,
		Department: p.Department,
		Level:      p.Level,
	}
}

// checkCompanyAccess verifies that the given companyID is within the user's scope.
func checkCompanyAccess(ctx context.Context, companyID string) bool {
	if ctxkeys.IsGlobalScope(ctx) {
		return true
	}
	scope := ctxkeys.GetCompanyScope(ctx)
	return scope != "" && scope == companyID
}

// companyFor resolves the tenant a member or license request targets.
// Employers are pinned to their own company; platform admins name one with
// ?companyId=.
func companyFor(r *http.Request) (string, error) {
	ctx := r.Context()
	requested := r.URL.Query().Get("companyId")

	if ctxkeys.IsGlobalScope(ctx) {
		if requested == "" {
			return "", fmt.Errorf("companyId is required")
		}
		return requested, nil
	}

	own := ctxkeys.GetCompanyScope(ctx)
	if own == "" {
		return "", routing.ErrUnauthorized
	}
	if requested != "" && !checkCompanyAccess(ctx, requested) {
		return "", routing.ErrUnauthorized
	}
	return own, nil
}
