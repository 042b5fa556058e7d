package middleware

import (
	"encoding/base64"
	"net/http"

	"complaintdesk/internal/routing"
)

// NoticeCookie carries one human-readable message to the next page the user
// lands on. It is read once and then cleared.
const NoticeCookie = "notice"

// User-facing notices.
const (
	NoticeSignIn    = "Please sign in to continue."
	NoticeForbidden = "You do not have access to that page."
	NoticePending   = "Your employer account is awaiting approval."
	NoticeApproved  = "Your employer account is approved."
)

// SetNotice queues msg for the next page load. A later call replaces an
// earlier one so the user sees a single notice.
func SetNotice(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     NoticeCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopNotice returns the queued notice, if any, and clears it.
func PopNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(NoticeCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: NoticeCookie, Value: "", Path: "/", MaxAge: -1})

	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

// DecisionNotice is the notice shown for a guard decision on requestedPath.
// Allow has none.
func DecisionNotice(d routing.Decision, requestedPath string) string {
	switch d.Kind {
	case routing.KindReject:
		return NoticeSignIn
	case routing.KindRedirect:
		if d.Location == routing.EmployerPending {
			return NoticePending
		}
		if d.Location == routing.EmployerHome && routing.IsPendingPage(requestedPath) {
			return NoticeApproved
		}
		return NoticeForbidden
	}
	return ""
}
