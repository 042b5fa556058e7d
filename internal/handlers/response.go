package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/licensing"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/remote"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
)

// remoteTimeout bounds every handler's calls to the remote API.
const remoteTimeout = 10 * time.Second

// RemoteAPI is the part of the remote client the handlers call.
type RemoteAPI interface {
	Login(ctx context.Context, email, password string) (*remote.LoginResult, error)
	Profile(ctx context.Context, token string) (*remote.User, error)
	ListComplaints(ctx context.Context, token string, f remote.ComplaintFilter) ([]remote.Complaint, error)
	GetComplaint(ctx context.Context, token, id string) (*remote.Complaint, error)
	FileComplaint(ctx context.Context, token string, in remote.NewComplaint) (*remote.Complaint, error)
	MutateComplaint(ctx context.Context, token string, a lifecycle.Action, m remote.Mutation) (*remote.Complaint, error)
	ListMembers(ctx context.Context, token string, kind licensing.Kind, companyID string) ([]remote.Member, error)
	SaveMember(ctx context.Context, token string, kind licensing.Kind, in remote.SaveMember) (*remote.Member, error)
	DeleteMember(ctx context.Context, token string, kind licensing.Kind, companyID, id string) error
	Licenses(ctx context.Context, token, companyID string) (licensing.Summary, error)
}

// SessionStore is the part of the session manager the handlers call.
type SessionStore interface {
	Start(ctx context.Context, p session.Principal, remoteToken string) (session.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (session.Credential, error)
	Principal(ctx context.Context, sessionID string) *session.Principal
	RemoteToken(ctx context.Context, sessionID string) string
	UpdatePrincipal(ctx context.Context, sessionID string, p session.Principal) error
	Invalidate(ctx context.Context, sessionID string) error
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Sessions      SessionStore
	Remote        RemoteAPI
	Logger        *logrus.Logger
	SecureCookies bool
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// jsonNotice writes an error with the notice the user should see.
func jsonNotice(w http.ResponseWriter, status int, message, notice string) {
	JSON(w, status, map[string]string{"error": message, "notice": notice})
}

func validationFailed(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":   "Validation failed",
		"details": errs,
	})
}

// decodeJSON decodes the request body into v. An empty body leaves v
// untouched when optional is set.
func decodeJSON(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// remoteToken returns the remote bearer of the current session.
func (d Deps) remoteToken(ctx context.Context) string {
	return d.Sessions.RemoteToken(ctx, ctxkeys.GetSessionID(ctx))
}

func (d Deps) log(component string) *logrus.Entry {
	return d.Logger.WithField("component", component)
}

// Notices for refused actions.
const (
	noticeTerminal    = "This complaint is already closed."
	noticeIllegal     = "That action is not available for this complaint."
	noticeNotOwner    = "This complaint is assigned to someone else."
	noticeRegion      = "This complaint belongs to another region."
	noticeWrongRole   = "Your role cannot perform this action."
	noticePool        = "This complaint is outside your department or level."
	noticeNoSeats     = "No licenses remaining. Ask the platform admin for more seats."
	noticeUnavailable = "The service is unavailable. Please try again shortly."
)

// refusal maps a domain error to its HTTP status and notice. ok is false
// for errors outside the taxonomy.
func refusal(err error) (status int, notice string, ok bool) {
	switch {
	case errors.Is(err, lifecycle.ErrTerminalState):
		return http.StatusConflict, noticeTerminal, true
	case errors.Is(err, lifecycle.ErrIllegalState):
		return http.StatusConflict, noticeIllegal, true
	case errors.Is(err, lifecycle.ErrNotOwner):
		return http.StatusForbidden, noticeNotOwner, true
	case errors.Is(err, lifecycle.ErrRegionMismatch):
		return http.StatusForbidden, noticeRegion, true
	case errors.Is(err, lifecycle.ErrWrongRole):
		return http.StatusForbidden, noticeWrongRole, true
	case errors.Is(err, lifecycle.ErrPoolMismatch):
		return http.StatusForbidden, noticePool, true
	case errors.Is(err, licensing.ErrNoSeats):
		return http.StatusConflict, noticeNoSeats, true
	case errors.Is(err, licensing.ErrUnknownKind):
		return http.StatusNotFound, "Unknown member type.", true
	case errors.Is(err, routing.ErrUnauthorized):
		return http.StatusForbidden, middleware.NoticeForbidden, true
	}
	return 0, "", false
}

// fail writes the response for err. A remote 401 ends the session. Remote
// failures keep it and are never retried here.
func (d Deps) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := d.log("handlers").WithField("op", op)

	if errors.Is(err, remote.ErrUnauthenticated) {
		if sid := ctxkeys.GetSessionID(r.Context()); sid != "" {
			if ierr := d.Sessions.Invalidate(r.Context(), sid); ierr != nil {
				log.WithError(ierr).Warn("invalidate session")
			}
		}
		middleware.ClearSessionCookies(w, d.SecureCookies)
		log.Info("remote session expired, signed out")
		jsonNotice(w, http.StatusUnauthorized, "Session expired", middleware.NoticeSignIn)
		return
	}

	var f *remote.Failure
	if errors.As(err, &f) {
		if f.Rejected() {
			msg := f.Message
			if msg == "" {
				msg = "The request was refused."
			}
			jsonNotice(w, http.StatusUnprocessableEntity, msg, msg)
			return
		}
		log.WithError(err).Warn("remote call failed")
		msg := f.Message
		if msg == "" {
			msg = noticeUnavailable
		}
		jsonNotice(w, http.StatusBadGateway, msg, noticeUnavailable)
		return
	}

	if status, notice, ok := refusal(err); ok {
		jsonNotice(w, status, err.Error(), notice)
		return
	}

	log.WithError(err).Error("request failed")
	JSONError(w, http.StatusInternalServerError, "Internal server error")
}
