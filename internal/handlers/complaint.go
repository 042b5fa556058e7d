package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/models"
	"complaintdesk/internal/obs"
	"complaintdesk/internal/remote"
	"complaintdesk/internal/storage"
)

// ComplaintHandler lists, files and moves complaints. Every mutation is
// pre-flighted through the lifecycle rules; the remote API stays the
// authority and its reply is what the client gets back.
type ComplaintHandler struct {
	Deps
	store     storage.Store
	maxUpload int64
	now       func() time.Time
}

// NewComplaintHandler creates a ComplaintHandler. store may be nil, in
// which case attachments are refused. maxUpload <= 0 means 10 MB.
func NewComplaintHandler(deps Deps, store storage.Store, maxUpload int64) *ComplaintHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &ComplaintHandler{Deps: deps, store: store, maxUpload: maxUpload, now: time.Now}
}

// ── List ───────────────────────────────────────────────────────

// List returns the complaints the current user can see, each with the
// actions they may take. Optional ?status= narrows the list.
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ctxkeys.GetPrincipal(r.Context())

	filter := complaintFilter(p)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := lifecycle.ParseStatus(raw)
		if err != nil {
			JSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", raw))
			return
		}
		filter.Status = string(status)
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	list, err := h.Remote.ListComplaints(ctx, h.remoteToken(ctx), filter)
	if err != nil {
		h.fail(w, r, "complaints.list", err)
		return
	}

	actor := actorOf(p)
	views := make([]models.ComplaintView, 0, len(list))
	for _, rc := range list {
		c, err := rc.Lifecycle()
		if err != nil {
			h.log("complaints").WithError(err).Warn("skipping complaint")
			continue
		}
		if !canSeeComplaint(p, c) {
			continue
		}
		views = append(views, models.NewComplaintView(c, lifecycle.AvailableActions(c, actor)))
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":  views,
		"total": len(views),
	})
}

// ── Get ────────────────────────────────────────────────────────

// Get returns one complaint. Complaints outside the user's scope are
// reported as not found.
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	p := ctxkeys.GetPrincipal(r.Context())
	JSON(w, http.StatusOK, map[string]interface{}{
		"data": models.NewComplaintView(c, lifecycle.AvailableActions(c, actorOf(p))),
	})
}

// Actions returns only the actions the user may take on a complaint.
func (h *ComplaintHandler) Actions(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	p := ctxkeys.GetPrincipal(r.Context())
	view := models.NewComplaintView(c, lifecycle.AvailableActions(c, actorOf(p)))
	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"status":  view.Status,
			"actions": view.Actions,
		},
	})
}

// load fetches the complaint named by the {id} URL parameter and checks it
// is within scope. It writes the error response itself.
func (h *ComplaintHandler) load(w http.ResponseWriter, r *http.Request) (lifecycle.Complaint, bool) {
	id := chi.URLParam(r, "id")
	p := ctxkeys.GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	rc, err := h.Remote.GetComplaint(ctx, h.remoteToken(ctx), id)
	if err != nil {
		h.fail(w, r, "complaints.get", err)
		return lifecycle.Complaint{}, false
	}
	c, err := rc.Lifecycle()
	if err != nil {
		h.fail(w, r, "complaints.get", err)
		return lifecycle.Complaint{}, false
	}
	if !canSeeComplaint(p, c) {
		JSONError(w, http.StatusNotFound, "Complaint not found")
		return lifecycle.Complaint{}, false
	}
	return c, true
}

// ── File ───────────────────────────────────────────────────────

// File creates a complaint for the signed-in citizen. It accepts JSON, or
// multipart/form-data with the same fields plus an optional "file".
func (h *ComplaintHandler) File(w http.ResponseWriter, r *http.Request) {
	p := ctxkeys.GetPrincipal(r.Context())

	var req models.FileComplaintRequest
	var attachment *storage.FileInfo

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if !parseMultipart(w, r, h.maxUpload) {
			return
		}
		req = models.FileComplaintRequest{
			Department:  r.FormValue("department"),
			Region:      r.FormValue("region"),
			Category:    r.FormValue("category"),
			Description: r.FormValue("description"),
		}
	} else if err := decodeJSON(r, &req, false); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		if h.store == nil {
			JSONError(w, http.StatusBadRequest, "Attachments are not accepted.")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			JSONError(w, http.StatusBadRequest, "Could not read file.")
			return
		}
		attachment, err = saveAttachment(ctx, h.store, file, header, p.UserID, h.now())
		file.Close()
		if err != nil {
			var ue *uploadError
			if errors.As(err, &ue) {
				JSONError(w, http.StatusBadRequest, ue.msg)
				return
			}
			h.fail(w, r, "complaints.file", err)
			return
		}
	}

	in := remote.NewComplaint{
		CitizenID:   p.UserID,
		Department:  req.Department,
		Region:      req.Region,
		Category:    req.Category,
		Description: req.Description,
	}
	if attachment != nil {
		in.AttachmentURL = attachment.URL
	}

	rc, err := h.Remote.FileComplaint(ctx, h.remoteToken(ctx), in)
	if err != nil {
		if attachment != nil {
			if derr := h.store.Delete(context.WithoutCancel(ctx), attachment.Key); derr != nil {
				h.log("complaints").WithError(derr).WithField("key", attachment.Key).Warn("orphaned attachment")
			}
		}
		h.fail(w, r, "complaints.file", err)
		return
	}

	c, err := rc.Lifecycle()
	if err != nil {
		h.fail(w, r, "complaints.file", err)
		return
	}

	h.log("complaints").WithFields(logrus.Fields{
		"complaint_id": c.ID,
		"citizen_id":   p.UserID,
	}).Info("complaint filed")

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    models.NewComplaintView(c, nil),
		"message": "Complaint filed",
	})
}

// ── Act ────────────────────────────────────────────────────────

// Act applies the {action} URL parameter to a complaint. The transition is
// checked against the lifecycle rules before the remote API is called, and
// the complaint is returned as the server left it.
func (h *ComplaintHandler) Act(w http.ResponseWriter, r *http.Request) {
	action, ok := lifecycle.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		JSONError(w, http.StatusNotFound, "Unknown action")
		return
	}

	var req models.ActionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(action); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	c, ok := h.load(w, r)
	if !ok {
		return
	}

	p := ctxkeys.GetPrincipal(r.Context())
	target := req.TargetLevel
	if action == lifecycle.ActionForwardLevel && target == 0 {
		target = c.PoolLevel() + 1
	}

	next, err := lifecycle.Validate(c, lifecycle.Request{Action: action, TargetLevel: target}, actorOf(p))
	if err != nil {
		obs.ObserveRefusedTransition(string(action), refusalReason(err))
		h.log("complaints").WithFields(logrus.Fields{
			"complaint_id": c.ID,
			"action":       action,
			"user_id":      p.UserID,
		}).WithError(err).Info("transition refused")
		h.fail(w, r, "complaints."+string(action), err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	m := remote.Mutation{
		ComplaintID: c.ID,
		ActorID:     p.UserID,
		Notes:       req.Notes,
	}
	if action == lifecycle.ActionForwardLevel {
		m.TargetLevel = target
	}

	token := h.remoteToken(ctx)
	rc, err := h.Remote.MutateComplaint(ctx, token, action, m)
	if err != nil {
		h.fail(w, r, "complaints."+string(action), err)
		return
	}
	// Some operations reply without the complaint.
	if rc == nil || rc.ID == "" {
		if rc, err = h.Remote.GetComplaint(ctx, token, c.ID); err != nil {
			h.fail(w, r, "complaints.get", err)
			return
		}
	}

	updated, err := rc.Lifecycle()
	if err != nil {
		h.fail(w, r, "complaints."+string(action), err)
		return
	}
	if updated.Status != next {
		h.log("complaints").WithFields(logrus.Fields{
			"complaint_id": c.ID,
			"expected":     next,
			"actual":       updated.Status,
		}).Warn("server state differs from local rules")
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":   models.NewComplaintView(updated, lifecycle.AvailableActions(updated, actorOf(p))),
		"notice": fmt.Sprintf("Complaint is now %s.", strings.ToLower(updated.Status.Label())),
	})
}

// refusalReason is the metric label of a refused transition.
func refusalReason(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrTerminalState):
		return "terminal"
	case errors.Is(err, lifecycle.ErrIllegalState):
		return "illegal_state"
	case errors.Is(err, lifecycle.ErrWrongRole):
		return "wrong_role"
	case errors.Is(err, lifecycle.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, lifecycle.ErrRegionMismatch):
		return "region"
	case errors.Is(err, lifecycle.ErrPoolMismatch):
		return "pool"
	}
	return "other"
}
