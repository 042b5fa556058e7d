package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"complaintdesk/internal/licensing"
	"complaintdesk/internal/models"
	"complaintdesk/internal/remote"
)

// OrgHandler manages the Sub-Admins, Supervisors and Agents of an employer
// tenant. The {kind} URL parameter selects which.
type OrgHandler struct {
	Deps
}

// NewOrgHandler creates an OrgHandler.
func NewOrgHandler(deps Deps) *OrgHandler {
	return &OrgHandler{Deps: deps}
}

// target parses {kind} and resolves the tenant. It writes the error
// response itself.
func (h *OrgHandler) target(w http.ResponseWriter, r *http.Request) (licensing.Kind, string, bool) {
	kind, err := licensing.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, "org", err)
		return "", "", false
	}
	companyID, err := companyFor(r)
	if err != nil {
		if status, notice, ok := refusal(err); ok {
			jsonNotice(w, status, "Company not in scope", notice)
			return "", "", false
		}
		JSONError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return kind, companyID, true
}

// List returns the members of one kind.
func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, companyID, ok := h.target(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	members, err := h.Remote.ListMembers(ctx, h.remoteToken(ctx), kind, companyID)
	if err != nil {
		h.fail(w, r, "org.list", err)
		return
	}
	if members == nil {
		members = []remote.Member{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":  members,
		"total": len(members),
	})
}

// Create adds a member after checking that a license seat is free.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, companyID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req models.MemberRequest
	if err := decodeJSON(r, &req, false); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(kind, true); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()
	token := h.remoteToken(ctx)

	summary, err := h.Remote.Licenses(ctx, token, companyID)
	if err != nil {
		h.fail(w, r, "org.create", err)
		return
	}
	if err := summary.CanCreate(kind); err != nil {
		h.fail(w, r, "org.create", err)
		return
	}

	member, err := h.Remote.SaveMember(ctx, token, kind, saveMember(req, companyID, ""))
	if err != nil {
		h.fail(w, r, "org.create", err)
		return
	}

	h.log("org").WithFields(logrus.Fields{
		"kind":       kind,
		"company_id": companyID,
		"member_id":  member.ID,
	}).Info("member created")

	usage := summary.Of(kind)
	usage.Used++
	if usage.Remaining > 0 {
		usage.Remaining--
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    member,
		"license": usage,
		"message": kind.Label() + " created successfully",
	})
}

// Update changes a member. It does not consume a license.
func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	kind, companyID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req models.MemberRequest
	if err := decodeJSON(r, &req, false); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(kind, false); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	member, err := h.Remote.SaveMember(ctx, h.remoteToken(ctx), kind, saveMember(req, companyID, chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "org.update", err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    member,
		"message": kind.Label() + " updated successfully",
	})
}

// Delete removes a member, freeing its license seat.
func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, companyID, ok := h.target(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	if err := h.Remote.DeleteMember(ctx, h.remoteToken(ctx), kind, companyID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "org.delete", err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"message": kind.Label() + " deleted successfully",
	})
}

func saveMember(req models.MemberRequest, companyID, id string) remote.SaveMember {
	return remote.SaveMember{
		ID:           id,
		CompanyID:    companyID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		Region:       req.Region,
		Department:   req.Department,
		Level:        req.Level,
		SupervisorID: req.SupervisorID,
	}
}

// ── Licenses ───────────────────────────────────────────────────

// LicenseHandler reports seat usage of a tenant.
type LicenseHandler struct {
	Deps
}

// NewLicenseHandler creates a LicenseHandler.
func NewLicenseHandler(deps Deps) *LicenseHandler {
	return &LicenseHandler{Deps: deps}
}

// Get returns totals, used and remaining seats per member kind.
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFor(r)
	if err != nil {
		if status, notice, ok := refusal(err); ok {
			jsonNotice(w, status, "Company not in scope", notice)
			return
		}
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	summary, err := h.Remote.Licenses(ctx, h.remoteToken(ctx), companyID)
	if err != nil {
		h.fail(w, r, "licenses", err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":      summary,
		"exhausted": summary.Exhausted(),
	})
}
