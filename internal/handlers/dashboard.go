package handlers

import (
	"context"
	"net/http"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
)

// DashboardHandler serves the view data of every guarded page. By the time
// a request gets here the page guard has allowed it.
type DashboardHandler struct {
	Deps
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(deps Deps) *DashboardHandler {
	return &DashboardHandler{Deps: deps}
}

// StatusCount is one bar of the complaint status chart.
type StatusCount struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// View returns the role-scoped dashboard summary for the requested page.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	p := ctxkeys.GetPrincipal(r.Context())

	data := map[string]interface{}{
		"path":   r.URL.Path,
		"home":   routing.CanonicalHome(p),
		"user":   p,
		"notice": middleware.PopNotice(w, r),
	}

	// The approval page shows nothing else.
	if p.IsPendingEmployer() {
		JSON(w, http.StatusOK, map[string]interface{}{"data": data})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()
	token := h.remoteToken(ctx)

	counts, err := h.statusCounts(ctx, p, token)
	if err != nil {
		h.fail(w, r, "dashboard", err)
		return
	}
	data["complaints"] = counts

	if p.Role == roles.Employer {
		summary, err := h.Remote.Licenses(ctx, token, p.CompanyID)
		if err != nil {
			h.fail(w, r, "dashboard", err)
			return
		}
		data["licenses"] = summary
		if summary.Exhausted() {
			data["notice"] = "All licenses are in use."
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// statusCounts tallies the complaints p can see by status, in lifecycle
// order.
func (h *DashboardHandler) statusCounts(ctx context.Context, p *session.Principal, token string) ([]StatusCount, error) {
	list, err := h.Remote.ListComplaints(ctx, token, complaintFilter(p))
	if err != nil {
		return nil, err
	}

	tally := make(map[lifecycle.Status]int, len(lifecycle.Statuses))
	for _, rc := range list {
		c, err := rc.Lifecycle()
		if err != nil {
			continue
		}
		if canSeeComplaint(p, c) {
			tally[c.Status]++
		}
	}

	out := make([]StatusCount, 0, len(lifecycle.Statuses))
	for _, s := range lifecycle.Statuses {
		out = append(out, StatusCount{Status: string(s), Label: s.Label(), Count: tally[s]})
	}
	return out, nil
}
