package handlers

import (
	"net/http"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/obs"
	"complaintdesk/internal/routing"
)

// NavigationHandler exposes the route resolver to the single-page client so
// its route guards ask the same question the page guard does.
type NavigationHandler struct{}

func NewNavigationHandler() *NavigationHandler {
	return &NavigationHandler{}
}

// Decide answers GET /api/navigation/decide?path=/agent/dashboard.
func (h *NavigationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		JSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	p := ctxkeys.GetPrincipal(r.Context())
	d := routing.Authorize(p, path)
	obs.ObserveDecision(d.Kind.String())

	body := map[string]interface{}{
		"decision": d.Kind.String(),
		"location": d.Location,
	}
	if d.Kind == routing.KindReject {
		body["location"] = routing.LoginPath
	}
	if d.Reason != nil {
		body["reason"] = d.Reason.Error()
	}
	if notice := middleware.DecisionNotice(d, path); notice != "" {
		body["notice"] = notice
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": body})
}

// Home returns the canonical landing page of the current user, or the login
// page without a session.
func (h *NavigationHandler) Home(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]string{"home": routing.CanonicalHome(ctxkeys.GetPrincipal(r.Context()))},
	})
}

// Notice pops the queued notice.
func (h *NavigationHandler) Notice(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]string{"notice": middleware.PopNotice(w, r)},
	})
}
