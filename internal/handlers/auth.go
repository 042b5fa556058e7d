package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/models"
	"complaintdesk/internal/remote"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
)

// AuthHandler signs users in against the remote API and manages the
// gateway session that follows.
type AuthHandler struct {
	Deps
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(deps Deps) *AuthHandler {
	return &AuthHandler{Deps: deps}
}

// Login exchanges credentials with the remote API, normalizes the account
// into a principal and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	res, err := h.Remote.Login(ctx, req.Email, req.Password)
	if err != nil {
		var f *remote.Failure
		if errors.Is(err, remote.ErrUnauthenticated) || (errors.As(err, &f) && f.Rejected()) {
			jsonNotice(w, http.StatusUnauthorized, "Invalid email or password", "Invalid email or password.")
			return
		}
		h.fail(w, r, "login", err)
		return
	}

	p := res.User.Principal()
	if err := p.Validate(); err != nil {
		h.log("auth").WithError(err).WithField("user_id", p.UserID).Warn("account cannot sign in")
		jsonNotice(w, http.StatusUnauthorized, "Account cannot sign in", "Your account is not set up for this dashboard.")
		return
	}

	cred, err := h.Sessions.Start(ctx, p, res.Token)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	h.log("auth").WithFields(logrus.Fields{
		"user_id": p.UserID,
		"role":    p.Role,
	}).Info("signed in")

	middleware.SetSessionCookies(w, cred, h.SecureCookies)
	resp := authResponse(&p, cred)
	if p.IsPendingEmployer() {
		resp.Notice = middleware.NoticePending
	}
	JSON(w, http.StatusOK, resp)
}

// Refresh rotates the session's credentials. The refresh token comes from
// the refresh cookie or, failing that, the request body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(middleware.RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req models.RefreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			JSONError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		token = req.RefreshToken
	}

	cred, err := h.Sessions.Refresh(r.Context(), token)
	if err != nil {
		middleware.ClearSessionCookies(w, h.SecureCookies)
		jsonNotice(w, http.StatusUnauthorized, "Session expired", middleware.NoticeSignIn)
		return
	}

	p := h.Sessions.Principal(r.Context(), cred.SessionID)
	if p == nil {
		middleware.ClearSessionCookies(w, h.SecureCookies)
		jsonNotice(w, http.StatusUnauthorized, "Session expired", middleware.NoticeSignIn)
		return
	}

	middleware.SetSessionCookies(w, cred, h.SecureCookies)
	JSON(w, http.StatusOK, authResponse(p, cred))
}

// Logout ends the session. It succeeds without a session too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := ctxkeys.GetSessionID(r.Context()); sid != "" {
		if err := h.Sessions.Invalidate(r.Context(), sid); err != nil {
			h.fail(w, r, "logout", err)
			return
		}
	}
	middleware.ClearSessionCookies(w, h.SecureCookies)
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Signed out",
		"home":    routing.LoginPath,
	})
}

// Me returns the current principal. A pending employer's account is
// re-read so an approval takes effect without signing in again.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := ctxkeys.GetPrincipal(r.Context())
	if p == nil {
		jsonNotice(w, http.StatusUnauthorized, "Session expired", middleware.NoticeSignIn)
		return
	}

	notice := ""
	if p.IsPendingEmployer() {
		updated, err := h.recheckApproval(r)
		if err != nil {
			if errors.Is(err, remote.ErrUnauthenticated) {
				h.fail(w, r, "profile", err)
				return
			}
			h.log("auth").WithError(err).Warn("approval re-check failed")
		}
		if updated != nil {
			p = updated
			if p.Status == roles.StatusApproved || p.Status == roles.StatusActive {
				notice = middleware.NoticeApproved
			}
		}
	}
	if notice == "" {
		notice = middleware.PopNotice(w, r)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"user":   p,
			"home":   routing.CanonicalHome(p),
			"notice": notice,
		},
	})
}

// recheckApproval re-reads the account and stores the new principal when
// the employer is no longer pending. It returns nil while still pending.
func (h *AuthHandler) recheckApproval(r *http.Request) (*session.Principal, error) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()

	user, err := h.Remote.Profile(ctx, h.remoteToken(ctx))
	if err != nil {
		return nil, err
	}
	next := user.Principal()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.IsPendingEmployer() {
		return nil, nil
	}

	if err := h.Sessions.UpdatePrincipal(ctx, ctxkeys.GetSessionID(ctx), next); err != nil {
		return nil, err
	}
	h.log("auth").WithFields(logrus.Fields{
		"user_id": next.UserID,
		"status":  next.Status,
	}).Info("employer status changed")
	return &next, nil
}

func authResponse(p *session.Principal, cred session.Credential) models.AuthResponse {
	return models.AuthResponse{
		User:             p,
		Home:             routing.CanonicalHome(p),
		AccessToken:      cred.AccessToken,
		AccessExpiresAt:  cred.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:     cred.RefreshToken,
		RefreshExpiresAt: cred.RefreshExpiresAt.UTC().Format(time.RFC3339),
	}
}
